package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/kb"
	"github.com/teranos/softwaremap/reconcile"
)

// Annotation is the editorial and reconciled state of one entity.
// Pointer fields are nil when absent.
type Annotation struct {
	EntityID              string           `json:"entityId" yaml:"entity_id"`
	CurationEnabled       bool             `json:"curationEnabled" yaml:"curation_enabled"`
	Blurb                 *string          `json:"blurb,omitempty" yaml:"blurb,omitempty"`
	BlurbSource           *kb.BlurbSource  `json:"blurbSource,omitempty" yaml:"blurb_source,omitempty"`
	CanonicalDate         *time.Time       `json:"canonicalDate,omitempty" yaml:"canonical_date,omitempty"`
	CanonicalDateKind     *kb.PropertyKind `json:"canonicalDateKind,omitempty" yaml:"canonical_date_kind,omitempty"`
	CanonicalDateDisputed bool             `json:"canonicalDateDisputed,omitempty" yaml:"canonical_date_disputed,omitempty"`
	UpdatedAt             time.Time        `json:"updatedAt" yaml:"updated_at"`
}

// SetCuration sets whether the entity appears in the rendered history.
// Repeating the same value changes nothing, including updated_at.
func (o ops) SetCuration(ctx context.Context, entityID string, enabled bool) error {
	if err := o.requireEntity(ctx, entityID); err != nil {
		return err
	}
	_, err := o.q.ExecContext(ctx,
		`INSERT INTO annotations (entity_id, curation_enabled, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(entity_id) DO UPDATE SET
		   curation_enabled = excluded.curation_enabled,
		   updated_at = excluded.updated_at
		 WHERE annotations.curation_enabled != excluded.curation_enabled`,
		entityID, enabled, o.timestamp())
	return errors.Wrapf(err, "set curation for %s", entityID)
}

// SetBlurb stores blurb text with its source, replacing any previous blurb.
// Callers decide whether a scraped blurb may replace a manual one.
func (o ops) SetBlurb(ctx context.Context, entityID, text string, source kb.BlurbSource) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.NewInvalidRequestError("empty blurb for %s (use ClearBlurb to remove)", entityID)
	}
	if !source.Valid() {
		return errors.NewInvalidRequestError("unknown blurb source %q", source)
	}
	if err := o.requireEntity(ctx, entityID); err != nil {
		return err
	}
	_, err := o.q.ExecContext(ctx,
		`INSERT INTO annotations (entity_id, blurb, blurb_source, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(entity_id) DO UPDATE SET
		   blurb = excluded.blurb,
		   blurb_source = excluded.blurb_source,
		   updated_at = excluded.updated_at
		 WHERE annotations.blurb IS NOT excluded.blurb
		    OR annotations.blurb_source IS NOT excluded.blurb_source`,
		entityID, text, string(source), o.timestamp())
	return errors.Wrapf(err, "set blurb for %s", entityID)
}

// ClearBlurb removes the entity's blurb
func (o ops) ClearBlurb(ctx context.Context, entityID string) error {
	if err := o.requireEntity(ctx, entityID); err != nil {
		return err
	}
	_, err := o.q.ExecContext(ctx,
		`UPDATE annotations SET blurb = NULL, blurb_source = NULL, updated_at = ?
		 WHERE entity_id = ? AND blurb IS NOT NULL`,
		o.timestamp(), entityID)
	return errors.Wrapf(err, "clear blurb for %s", entityID)
}

// SetCanonicalDate records the reconciled date; nil clears it
func (o ops) SetCanonicalDate(ctx context.Context, entityID string, cd *reconcile.CanonicalDate) error {
	if err := o.requireEntity(ctx, entityID); err != nil {
		return err
	}

	if cd == nil {
		_, err := o.q.ExecContext(ctx,
			`UPDATE annotations SET canonical_date = NULL, canonical_date_kind = NULL,
			   canonical_date_disputed = 0, updated_at = ?
			 WHERE entity_id = ? AND canonical_date IS NOT NULL`,
			o.timestamp(), entityID)
		return errors.Wrapf(err, "clear canonical date for %s", entityID)
	}
	if cd.EntityID != entityID {
		return errors.NewInvalidRequestError("canonical date for %s written to %s", cd.EntityID, entityID)
	}

	_, err := o.q.ExecContext(ctx,
		`INSERT INTO annotations (entity_id, canonical_date, canonical_date_kind, canonical_date_disputed, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(entity_id) DO UPDATE SET
		   canonical_date = excluded.canonical_date,
		   canonical_date_kind = excluded.canonical_date_kind,
		   canonical_date_disputed = excluded.canonical_date_disputed,
		   updated_at = excluded.updated_at
		 WHERE annotations.canonical_date IS NOT excluded.canonical_date
		    OR annotations.canonical_date_kind IS NOT excluded.canonical_date_kind
		    OR annotations.canonical_date_disputed != excluded.canonical_date_disputed`,
		entityID, reconcile.FormatDate(cd.Date), string(cd.Kind), boolToInt(cd.Disputed), o.timestamp())
	return errors.Wrapf(err, "set canonical date for %s", entityID)
}

// Get returns the entity's annotation, nil when none was ever written,
// or ErrUnknownEntity for an entity never observed.
func (o ops) Get(ctx context.Context, entityID string) (*Annotation, error) {
	if err := o.requireEntity(ctx, entityID); err != nil {
		return nil, err
	}

	row := o.q.QueryRowContext(ctx,
		`SELECT entity_id, curation_enabled, blurb, blurb_source, canonical_date,
		        canonical_date_kind, canonical_date_disputed, updated_at
		 FROM annotations WHERE entity_id = ?`, entityID)

	a, err := scanAnnotation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get annotation for %s", entityID)
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnnotation(row rowScanner) (*Annotation, error) {
	var (
		a        Annotation
		blurb    sql.NullString
		source   sql.NullString
		date     sql.NullString
		kind     sql.NullString
		disputed int
	)
	if err := row.Scan(&a.EntityID, &a.CurationEnabled, &blurb, &source, &date, &kind, &disputed, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if err := a.fill(blurb, source, date, kind, disputed); err != nil {
		return nil, err
	}
	return &a, nil
}

// fill converts nullable columns into the annotation's optional fields
func (a *Annotation) fill(blurb, source, date, kind sql.NullString, disputed int) error {
	if blurb.Valid {
		a.Blurb = &blurb.String
	}
	if source.Valid {
		s := kb.BlurbSource(source.String)
		a.BlurbSource = &s
	}
	if date.Valid {
		t, err := reconcile.ParseDate(date.String)
		if err != nil {
			return errors.Wrapf(err, "stored canonical date for %s", a.EntityID)
		}
		a.CanonicalDate = &t
	}
	if kind.Valid {
		k := kb.PropertyKind(kind.String)
		a.CanonicalDateKind = &k
	}
	a.CanonicalDateDisputed = disputed != 0
	return nil
}

// ListEnabled returns entities whose curation flag is on, including those
// never annotated (enabled by default), ordered by ID
func (o ops) ListEnabled(ctx context.Context) ([]kb.Entity, error) {
	rows, err := o.q.QueryContext(ctx,
		`SELECT e.id, e.label FROM entities e
		 LEFT JOIN annotations a ON a.entity_id = e.id
		 WHERE COALESCE(a.curation_enabled, 1) = 1
		 ORDER BY `+entityOrder)
	if err != nil {
		return nil, errors.Wrap(err, "list enabled entities")
	}
	defer rows.Close()

	var result []kb.Entity
	for rows.Next() {
		var e kb.Entity
		if err := rows.Scan(&e.ID, &e.Label); err != nil {
			return nil, errors.Wrap(err, "scan entity")
		}
		result = append(result, e)
	}
	return result, errors.Wrap(rows.Err(), "iterate enabled entities")
}

// BlurbTargets returns IDs of enabled entities that may receive a scraped
// blurb: those without one, plus those with a manual blurb when
// overwriteManual is set. Entities with a scraped blurb are refreshed too.
func (o ops) BlurbTargets(ctx context.Context, overwriteManual bool) ([]string, error) {
	query := `SELECT e.id FROM entities e
		 LEFT JOIN annotations a ON a.entity_id = e.id
		 WHERE COALESCE(a.curation_enabled, 1) = 1`
	if !overwriteManual {
		query += ` AND COALESCE(a.blurb_source, '') != 'manual'`
	}
	query += ` ORDER BY ` + entityOrder

	rows, err := o.q.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "list blurb targets")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan entity id")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "iterate blurb targets")
}

// SetScrapedBlurb stores a knowledge-base description unless the entity
// carries a manual blurb and overwriteManual is false. The check and the
// write are one statement. Reports whether the stored blurb changed.
func (o ops) SetScrapedBlurb(ctx context.Context, entityID, text string, overwriteManual bool) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, errors.NewInvalidRequestError("empty blurb for %s", entityID)
	}
	if err := o.requireEntity(ctx, entityID); err != nil {
		return false, err
	}
	res, err := o.q.ExecContext(ctx,
		`INSERT INTO annotations (entity_id, blurb, blurb_source, updated_at) VALUES (?, ?, 'scraped', ?)
		 ON CONFLICT(entity_id) DO UPDATE SET
		   blurb = excluded.blurb,
		   blurb_source = excluded.blurb_source,
		   updated_at = excluded.updated_at
		 WHERE (annotations.blurb_source IS NULL OR annotations.blurb_source != 'manual' OR ?)
		   AND (annotations.blurb IS NOT excluded.blurb OR annotations.blurb_source IS NOT excluded.blurb_source)`,
		entityID, text, o.timestamp(), overwriteManual)
	if err != nil {
		return false, errors.Wrapf(err, "set scraped blurb for %s", entityID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}
