package wikidata

import (
	"context"
	"iter"

	"github.com/teranos/softwaremap/errors"
	kbwd "github.com/teranos/softwaremap/kb/wikidata"
	"github.com/teranos/softwaremap/store"
)

// batcher commits buffered rows every size rows and once more at the end.
// Rows in a failed flush are not committed; earlier flushes stay.
type batcher[T any] struct {
	size  int
	rows  []T
	flush func([]T) error
}

func (b *batcher[T]) add(row T) error {
	b.rows = append(b.rows, row)
	if len(b.rows) < b.size {
		return nil
	}
	return b.drain()
}

func (b *batcher[T]) drain() error {
	if len(b.rows) == 0 {
		return nil
	}
	err := b.flush(b.rows)
	b.rows = b.rows[:0]
	return err
}

// RunSoftware discovers software items and their classes. Only new entities
// and links are added; known labels are left alone. The class tree is
// fetched after the items.
func (p *Processor) RunSoftware(ctx context.Context) (*Result, error) {
	res := p.newResult(TaskSoftware)

	p.progress.EmitStage(TaskSoftware, "Discovering software items")
	items := &batcher[kbwd.SoftwareRow]{size: p.opts.BatchSize, flush: func(rows []kbwd.SoftwareRow) error {
		return p.commitSoftware(ctx, rows, res)
	}}
	if err := drainInto(ctx, p, res, p.source.Software(ctx), items); err != nil {
		return p.finish(res, err)
	}

	p.progress.EmitStage("classes", "Fetching the software class tree")
	edges := &batcher[kbwd.ClassRow]{size: p.opts.BatchSize, flush: func(rows []kbwd.ClassRow) error {
		return p.commitClasses(ctx, rows, res)
	}}
	return p.finish(res, drainInto(ctx, p, res, p.source.Classes(ctx), edges))
}

// drainInto feeds a row stream into b, skipping per-row errors
func drainInto[T any](ctx context.Context, p *Processor, res *Result, seq iter.Seq2[T, error], b *batcher[T]) error {
	for row, err := range seq {
		if err != nil {
			if p.skipRow(res, err) {
				continue
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "run cancelled")
		}
		res.RowsFetched++
		if err := b.add(row); err != nil {
			return err
		}
	}
	return b.drain()
}

func (p *Processor) commitSoftware(ctx context.Context, rows []kbwd.SoftwareRow, res *Result) error {
	defer p.progress.EmitProgress(len(rows), map[string]interface{}{"type": "software rows"})
	if p.opts.DryRun {
		return nil
	}

	created, links := 0, 0
	err := p.store.InTx(ctx, func(tx *store.Tx) error {
		for _, row := range rows {
			isNew, err := tx.InsertEntity(ctx, row.Entity)
			if err != nil {
				return err
			}
			if isNew {
				created++
			}
			linked, err := tx.AddClassMembership(ctx, row.Entity.ID, row.Class)
			if err != nil {
				return err
			}
			if linked {
				links++
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "commit software batch")
	}
	res.EntitiesCreated += created
	res.Relations += links
	res.EntitiesCommitted += len(rows)
	return nil
}

func (p *Processor) commitClasses(ctx context.Context, rows []kbwd.ClassRow, res *Result) error {
	defer p.progress.EmitProgress(len(rows), map[string]interface{}{"type": "class edges"})
	if p.opts.DryRun {
		return nil
	}

	links := 0
	err := p.store.InTx(ctx, func(tx *store.Tx) error {
		for _, row := range rows {
			linked, err := tx.AddClassEdge(ctx, row.Class, row.Parent)
			if err != nil {
				return err
			}
			if linked {
				links++
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "commit class batch")
	}
	res.Relations += links
	return nil
}

// RunGenres attaches genres to video games already in the store. Rows for
// unknown entities are skipped, never created.
func (p *Processor) RunGenres(ctx context.Context) (*Result, error) {
	res := p.newResult(TaskGenres)

	known, err := p.store.KnownEntities(ctx)
	if err != nil {
		return p.finish(res, err)
	}

	p.progress.EmitStage(TaskGenres, "Fetching video game genres")
	b := &batcher[kbwd.GenreRow]{size: p.opts.BatchSize, flush: func(rows []kbwd.GenreRow) error {
		return p.commitGenres(ctx, rows, res)
	}}

	for row, err := range p.source.Genres(ctx) {
		if err != nil {
			if p.skipRow(res, err) {
				continue
			}
			return p.finish(res, err)
		}
		if err := ctx.Err(); err != nil {
			return p.finish(res, errors.Wrap(err, "genres run cancelled"))
		}
		res.RowsFetched++
		if !known[row.EntityID] {
			res.RowsSkipped++
			continue
		}
		if err := b.add(row); err != nil {
			return p.finish(res, err)
		}
	}
	return p.finish(res, b.drain())
}

func (p *Processor) commitGenres(ctx context.Context, rows []kbwd.GenreRow, res *Result) error {
	defer p.progress.EmitProgress(len(rows), map[string]interface{}{"type": "genre links"})
	if p.opts.DryRun {
		return nil
	}

	links := 0
	err := p.store.InTx(ctx, func(tx *store.Tx) error {
		for _, row := range rows {
			linked, err := tx.AddGenre(ctx, row.EntityID, row.Genre)
			if err != nil {
				return err
			}
			if linked {
				links++
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "commit genre batch")
	}
	res.Relations += links
	res.EntitiesCommitted += len(rows)
	return nil
}
