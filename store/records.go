package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/kb"
)

// Record is the full persisted state of one entity
type Record struct {
	kb.Entity  `yaml:",inline"`
	Annotation `yaml:",inline"`
	Classes    []kb.Entity `json:"classes,omitempty" yaml:"classes,omitempty"`
	Genres     []kb.Entity `json:"genres,omitempty" yaml:"genres,omitempty"`
}

// ListOptions filters List
type ListOptions struct {
	IncludeDisabled bool
	DisputedOnly    bool
	WithTaxonomy    bool // load classes and genres per record
}

// List returns entities with their annotation state, ordered by ID.
// Entities never annotated report the defaults.
func (o ops) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	query := `SELECT e.id, e.label, COALESCE(a.curation_enabled, 1), a.blurb, a.blurb_source,
	                 a.canonical_date, a.canonical_date_kind, COALESCE(a.canonical_date_disputed, 0),
	                 COALESCE(a.updated_at, e.updated_at)
	          FROM entities e LEFT JOIN annotations a ON a.entity_id = e.id
	          WHERE 1 = 1`
	if !opts.IncludeDisabled {
		query += ` AND COALESCE(a.curation_enabled, 1) = 1`
	}
	if opts.DisputedOnly {
		query += ` AND a.canonical_date_disputed = 1`
	}
	query += ` ORDER BY ` + entityOrder

	rows, err := o.q.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "list records")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r        Record
			blurb    sql.NullString
			source   sql.NullString
			date     sql.NullString
			kind     sql.NullString
			disputed int
			updated  any
		)
		if err := rows.Scan(&r.ID, &r.Label, &r.CurationEnabled, &blurb, &source, &date, &kind, &disputed, &updated); err != nil {
			return nil, errors.Wrap(err, "scan record")
		}
		r.EntityID = r.ID
		// COALESCE loses the column type, so the driver may hand back text
		r.UpdatedAt = asTime(updated)
		if err := r.Annotation.fill(blurb, source, date, kind, disputed); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate records")
	}
	rows.Close()

	if opts.WithTaxonomy {
		for i := range records {
			if records[i].Classes, err = o.Classes(ctx, records[i].ID); err != nil {
				return nil, err
			}
			if records[i].Genres, err = o.Genres(ctx, records[i].ID); err != nil {
				return nil, err
			}
		}
	}
	return records, nil
}

// GetRecord returns one entity's full state or ErrUnknownEntity
func (o ops) GetRecord(ctx context.Context, entityID string) (*Record, error) {
	e, err := o.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	r := Record{Entity: *e, Annotation: Annotation{EntityID: e.ID, CurationEnabled: true}}

	a, err := o.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if a != nil {
		r.Annotation = *a
	}
	if r.Classes, err = o.Classes(ctx, entityID); err != nil {
		return nil, err
	}
	if r.Genres, err = o.Genres(ctx, entityID); err != nil {
		return nil, err
	}
	return &r, nil
}

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		return parseSQLiteTime(t)
	case []byte:
		return parseSQLiteTime(string(t))
	}
	return time.Time{}
}

func parseSQLiteTime(s string) time.Time {
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Stats summarises store contents
type Stats struct {
	Entities       int `json:"entities" yaml:"entities"`
	Observations   int `json:"observations" yaml:"observations"`
	Disabled       int `json:"disabled" yaml:"disabled"`
	ManualBlurbs   int `json:"manual_blurbs" yaml:"manual_blurbs"`
	ScrapedBlurbs  int `json:"scraped_blurbs" yaml:"scraped_blurbs"`
	CanonicalDates int `json:"canonical_dates" yaml:"canonical_dates"`
	Disputed       int `json:"disputed" yaml:"disputed"`
	Classes        int `json:"classes" yaml:"classes"`
	Genres         int `json:"genres" yaml:"genres"`
}

// Stats counts rows per concern
func (o ops) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := o.q.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM entities),
		(SELECT COUNT(*) FROM date_observations),
		(SELECT COUNT(*) FROM annotations WHERE curation_enabled = 0),
		(SELECT COUNT(*) FROM annotations WHERE blurb_source = 'manual'),
		(SELECT COUNT(*) FROM annotations WHERE blurb_source = 'scraped'),
		(SELECT COUNT(*) FROM annotations WHERE canonical_date IS NOT NULL),
		(SELECT COUNT(*) FROM annotations WHERE canonical_date_disputed = 1),
		(SELECT COUNT(*) FROM classes),
		(SELECT COUNT(*) FROM genres)`).Scan(
		&s.Entities, &s.Observations, &s.Disabled, &s.ManualBlurbs, &s.ScrapedBlurbs,
		&s.CanonicalDates, &s.Disputed, &s.Classes, &s.Genres)
	if err != nil {
		return nil, errors.Wrap(err, "collect stats")
	}
	return &s, nil
}
