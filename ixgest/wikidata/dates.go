package wikidata

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/kb"
	"github.com/teranos/softwaremap/logger"
	"github.com/teranos/softwaremap/reconcile"
	"github.com/teranos/softwaremap/store"
)

// entityGroup is every row fetched for one entity within a kind
type entityGroup struct {
	entity       kb.Entity
	observations []kb.DateObservation
}

// RunDates fetches each kind's observations and commits them per entity,
// re-reconciling the entity across all persisted kinds. nil kinds means all
// kinds in priority order.
//
// An endpoint failure abandons that kind's uncommitted rows and moves on to
// the next kind. Cancellation stops between entities.
func (p *Processor) RunDates(ctx context.Context, kinds []kb.PropertyKind) (*Result, error) {
	res := p.newResult(TaskDates)
	if len(kinds) == 0 {
		kinds = reconcile.Priority
	}

	var errs error
	for _, kind := range kinds {
		if err := ctx.Err(); err != nil {
			return p.finish(res, errors.CombineErrors(errs, errors.Wrap(err, "dates run cancelled")))
		}
		if !kind.Valid() {
			errs = errors.CombineErrors(errs, errors.NewInvalidRequestError("unknown property kind %q", kind))
			continue
		}

		p.progress.EmitStage(string(kind), "Fetching "+string(kind)+" dates")
		groups, err := p.fetchDates(ctx, kind, res)
		if err != nil {
			p.logger.Warnw("Abandoning kind", logger.FieldKind, kind, logger.FieldError, err)
			p.progress.EmitError(string(kind), err)
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "kind %s", kind))
			continue
		}

		committed := 0
		for _, g := range groups {
			if err := ctx.Err(); err != nil {
				return p.finish(res, errors.CombineErrors(errs, errors.Wrap(err, "dates run cancelled")))
			}
			if err := p.commitDates(ctx, g, res); err != nil {
				return p.finish(res, errors.CombineErrors(errs, err))
			}
			committed++
		}
		p.progress.EmitProgress(committed, map[string]interface{}{"type": "entities", "kind": string(kind)})
	}
	return p.finish(res, errs)
}

// fetchDates drains one kind's rows into per-entity groups, in first-seen order
func (p *Processor) fetchDates(ctx context.Context, kind kb.PropertyKind, res *Result) ([]*entityGroup, error) {
	var groups []*entityGroup
	index := make(map[string]*entityGroup)

	for row, err := range p.source.Dates(ctx, kind) {
		if err != nil {
			if p.skipRow(res, err) {
				continue
			}
			return nil, err
		}
		res.RowsFetched++

		g, ok := index[row.Entity.ID]
		if !ok {
			g = &entityGroup{entity: row.Entity}
			index[row.Entity.ID] = g
			groups = append(groups, g)
		}
		if g.entity.Label == "" {
			g.entity.Label = row.Entity.Label
		}
		g.observations = append(g.observations, row.Observation(kind))
	}
	return groups, nil
}

// commitDates writes one entity and its reconciled date atomically
func (p *Processor) commitDates(ctx context.Context, g *entityGroup, res *Result) error {
	log := p.logger.With(logger.FieldEntityID, g.entity.ID)

	if p.opts.DryRun {
		cd, rowErrs := p.reconciler.Reconcile(g.entity.ID, g.observations)
		p.countReconciled(res, cd, rowErrs, log)
		res.EntitiesCommitted++
		return nil
	}

	var (
		created  bool
		inserted int
		cd       *reconcile.CanonicalDate
		rowErrs  []error
	)
	err := p.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		if created, err = tx.UpsertEntity(ctx, g.entity); err != nil {
			return err
		}
		if inserted, err = tx.RecordObservations(ctx, g.observations); err != nil {
			return err
		}
		all, err := tx.Observations(ctx, g.entity.ID)
		if err != nil {
			return err
		}
		cd, rowErrs = p.reconciler.Reconcile(g.entity.ID, all)
		return tx.SetCanonicalDate(ctx, g.entity.ID, cd)
	})
	if err != nil {
		return errors.Wrapf(err, "commit entity %s", g.entity.ID)
	}

	if created {
		res.EntitiesCreated++
	}
	res.EntitiesCommitted++
	res.Observations += inserted
	p.countReconciled(res, cd, rowErrs, log)
	return nil
}

func (p *Processor) countReconciled(res *Result, cd *reconcile.CanonicalDate, rowErrs []error, log *zap.SugaredLogger) {
	for _, e := range rowErrs {
		res.RowsSkipped++
		log.Debugw("Discarded observation", logger.FieldError, e)
	}
	if cd == nil {
		return
	}
	res.CanonicalDates++
	if cd.Disputed {
		res.Disputed++
		log.Debugw("Disputed canonical date",
			logger.FieldKind, cd.Kind,
			"date", reconcile.FormatDate(cd.Date),
			logger.FieldCount, cd.Candidates)
	}
}
