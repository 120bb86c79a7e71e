package store

import (
	"context"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/kb"
)

// RecordObservations stores raw date observations. Re-recording an
// observation is a no-op. Returns how many were new.
func (o ops) RecordObservations(ctx context.Context, observations []kb.DateObservation) (int, error) {
	checked := make(map[string]bool)
	fetched := o.timestamp()
	inserted := 0

	for _, obs := range observations {
		if !checked[obs.EntityID] {
			if err := o.requireEntity(ctx, obs.EntityID); err != nil {
				return inserted, err
			}
			checked[obs.EntityID] = true
		}
		if !obs.Kind.Valid() {
			return inserted, errors.NewInvalidRequestError("unknown property kind %q", obs.Kind)
		}

		res, err := o.q.ExecContext(ctx,
			`INSERT INTO date_observations (entity_id, kind, raw, fetched_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(entity_id, kind, raw) DO NOTHING`,
			obs.EntityID, string(obs.Kind), obs.Raw, fetched)
		if err != nil {
			return inserted, errors.Wrapf(err, "record observation %s %s", obs.EntityID, obs.Kind)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, nil
}

// Observations returns every stored observation for the entity, all kinds
func (o ops) Observations(ctx context.Context, entityID string) ([]kb.DateObservation, error) {
	if err := o.requireEntity(ctx, entityID); err != nil {
		return nil, err
	}

	rows, err := o.q.QueryContext(ctx,
		`SELECT entity_id, kind, raw FROM date_observations WHERE entity_id = ? ORDER BY kind, raw`,
		entityID)
	if err != nil {
		return nil, errors.Wrapf(err, "list observations for %s", entityID)
	}
	defer rows.Close()

	var result []kb.DateObservation
	for rows.Next() {
		var obs kb.DateObservation
		var kind string
		if err := rows.Scan(&obs.EntityID, &kind, &obs.Raw); err != nil {
			return nil, errors.Wrap(err, "scan observation")
		}
		obs.Kind = kb.PropertyKind(kind)
		result = append(result, obs)
	}
	return result, errors.Wrap(rows.Err(), "iterate observations")
}
