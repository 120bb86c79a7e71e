package store

import (
	"context"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/kb"
)

// AddClassMembership records that the entity is a direct instance of class.
// Existing class labels are kept. Reports whether the membership is new.
func (o ops) AddClassMembership(ctx context.Context, entityID string, class kb.Entity) (bool, error) {
	if err := o.requireEntity(ctx, entityID); err != nil {
		return false, err
	}
	if err := o.insertLabelled(ctx, "classes", class); err != nil {
		return false, err
	}
	return o.insertPair(ctx,
		`INSERT INTO entity_classes (entity_id, class_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		entityID, class.ID)
}

// AddClassEdge records that child is a direct subclass of parent
func (o ops) AddClassEdge(ctx context.Context, child, parent kb.Entity) (bool, error) {
	if err := o.insertLabelled(ctx, "classes", child); err != nil {
		return false, err
	}
	if err := o.insertLabelled(ctx, "classes", parent); err != nil {
		return false, err
	}
	return o.insertPair(ctx,
		`INSERT INTO class_parents (class_id, parent_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		child.ID, parent.ID)
}

// AddGenre assigns a genre to a known entity. Reports whether the pair is new.
func (o ops) AddGenre(ctx context.Context, entityID string, genre kb.Entity) (bool, error) {
	if err := o.requireEntity(ctx, entityID); err != nil {
		return false, err
	}
	if err := o.insertLabelled(ctx, "genres", genre); err != nil {
		return false, err
	}
	return o.insertPair(ctx,
		`INSERT INTO entity_genres (entity_id, genre_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		entityID, genre.ID)
}

// Classes returns the classes the entity is a direct instance of
func (o ops) Classes(ctx context.Context, entityID string) ([]kb.Entity, error) {
	return o.labelled(ctx,
		`SELECT c.id, c.label FROM classes c JOIN entity_classes ec ON ec.class_id = c.id
		 WHERE ec.entity_id = ? ORDER BY c.id`, entityID)
}

// Genres returns the entity's genres
func (o ops) Genres(ctx context.Context, entityID string) ([]kb.Entity, error) {
	return o.labelled(ctx,
		`SELECT g.id, g.label FROM genres g JOIN entity_genres eg ON eg.genre_id = g.id
		 WHERE eg.entity_id = ? ORDER BY g.id`, entityID)
}

// insertLabelled adds an id/label row to classes or genres if missing.
// table is never user input.
func (o ops) insertLabelled(ctx context.Context, table string, e kb.Entity) error {
	if !kb.ValidEntityID(e.ID) {
		return errors.NewInvalidRequestError("invalid %s ID %q", table, e.ID)
	}
	_, err := o.q.ExecContext(ctx,
		`INSERT INTO `+table+` (id, label) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`, e.ID, e.Label)
	return errors.Wrapf(err, "insert %s %s", table, e.ID)
}

func (o ops) insertPair(ctx context.Context, query, a, b string) (bool, error) {
	res, err := o.q.ExecContext(ctx, query, a, b)
	if err != nil {
		return false, errors.Wrapf(err, "link %s to %s", a, b)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

func (o ops) labelled(ctx context.Context, query, entityID string) ([]kb.Entity, error) {
	rows, err := o.q.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, errors.Wrapf(err, "query for %s", entityID)
	}
	defer rows.Close()

	var result []kb.Entity
	for rows.Next() {
		var e kb.Entity
		if err := rows.Scan(&e.ID, &e.Label); err != nil {
			return nil, errors.Wrap(err, "scan labelled row")
		}
		result = append(result, e)
	}
	return result, errors.Wrap(rows.Err(), "iterate labelled rows")
}
