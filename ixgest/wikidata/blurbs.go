package wikidata

import (
	"context"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/logger"
)

// RunBlurbs fills blurbs from knowledge-base descriptions for enabled
// entities. Manual blurbs are kept unless Options.OverwriteManual is set.
func (p *Processor) RunBlurbs(ctx context.Context) (*Result, error) {
	res := p.newResult(TaskBlurbs)

	targets, err := p.store.BlurbTargets(ctx, p.opts.OverwriteManual)
	if err != nil {
		return p.finish(res, err)
	}

	size := p.opts.BatchSize
	if size > maxDescriptionIDs {
		size = maxDescriptionIDs
	}

	p.progress.EmitStage(TaskBlurbs, "Fetching descriptions")
	for start := 0; start < len(targets); start += size {
		if err := ctx.Err(); err != nil {
			return p.finish(res, errors.Wrap(err, "blurbs run cancelled"))
		}
		end := min(start+size, len(targets))
		chunk := targets[start:end]

		applied := 0
		for row, err := range p.source.Descriptions(ctx, chunk) {
			if err != nil {
				if p.skipRow(res, err) {
					continue
				}
				return p.finish(res, errors.Wrapf(err, "descriptions %d-%d", start, end))
			}
			res.RowsFetched++
			if p.opts.DryRun {
				applied++
				continue
			}

			changed, err := p.store.SetScrapedBlurb(ctx, row.EntityID, row.Description, p.opts.OverwriteManual)
			if err != nil {
				if errors.IsUnknownEntityError(err) || errors.Is(err, errors.ErrInvalidRequest) {
					res.RowsSkipped++
					p.logger.Debugw("Skipping description", logger.FieldEntityID, row.EntityID, logger.FieldError, err)
					continue
				}
				return p.finish(res, err)
			}
			if changed {
				applied++
			}
		}
		res.Blurbs += applied
		res.EntitiesCommitted += applied
		p.progress.EmitProgress(len(chunk), map[string]interface{}{"type": "entities"})
	}
	return p.finish(res, nil)
}
