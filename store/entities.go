package store

import (
	"context"
	"database/sql"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/kb"
)

// entityOrder sorts Q-numbers numerically
const entityOrder = "CAST(SUBSTR(e.id, 2) AS INTEGER), e.id"

// UpsertEntity creates the entity or refreshes its label. An empty label never
// replaces a known one. Reports whether the entity was created.
func (o ops) UpsertEntity(ctx context.Context, e kb.Entity) (bool, error) {
	created, err := o.InsertEntity(ctx, e)
	if err != nil || created || e.Label == "" {
		return created, err
	}

	_, err = o.q.ExecContext(ctx,
		`UPDATE entities SET label = ?, updated_at = ? WHERE id = ? AND label != ?`,
		e.Label, o.timestamp(), e.ID, e.Label)
	if err != nil {
		return false, errors.Wrapf(err, "update entity %s", e.ID)
	}
	return false, nil
}

// InsertEntity creates the entity if it is new and leaves existing rows alone
func (o ops) InsertEntity(ctx context.Context, e kb.Entity) (bool, error) {
	if !kb.ValidEntityID(e.ID) {
		return false, errors.NewInvalidRequestError("invalid entity ID %q", e.ID)
	}
	now := o.timestamp()
	res, err := o.q.ExecContext(ctx,
		`INSERT INTO entities (id, label, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		e.ID, e.Label, now, now)
	if err != nil {
		return false, errors.Wrapf(err, "insert entity %s", e.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

// EntityExists reports whether the entity has been observed
func (o ops) EntityExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := o.q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM entities WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, errors.Wrapf(err, "check entity %s", id)
	}
	return exists, nil
}

// requireEntity returns ErrUnknownEntity for an entity never observed
func (o ops) requireEntity(ctx context.Context, id string) error {
	exists, err := o.EntityExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return errors.NewUnknownEntityError(id)
	}
	return nil
}

// GetEntity returns the entity or ErrUnknownEntity
func (o ops) GetEntity(ctx context.Context, id string) (*kb.Entity, error) {
	var e kb.Entity
	err := o.q.QueryRowContext(ctx, `SELECT id, label FROM entities WHERE id = ?`, id).Scan(&e.ID, &e.Label)
	if err == sql.ErrNoRows {
		return nil, errors.NewUnknownEntityError(id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get entity %s", id)
	}
	return &e, nil
}

// KnownEntities returns the subset of ids present in the store
func (o ops) KnownEntities(ctx context.Context) (map[string]bool, error) {
	rows, err := o.q.QueryContext(ctx, `SELECT id FROM entities`)
	if err != nil {
		return nil, errors.Wrap(err, "list entity ids")
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan entity id")
		}
		known[id] = true
	}
	return known, errors.Wrap(rows.Err(), "iterate entity ids")
}
