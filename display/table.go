package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/softwaremap/kb"
	"github.com/teranos/softwaremap/reconcile"
	"github.com/teranos/softwaremap/store"
)

const maxBlurbWidth = 60

// RecordRows converts records into table rows with a header
func RecordRows(records []store.Record) pterm.TableData {
	data := pterm.TableData{{"ID", "Label", "Date", "Kind", "Curated", "Blurb"}}
	for _, r := range records {
		data = append(data, []string{
			r.ID,
			r.Label,
			dateCell(r.Annotation),
			kindCell(r.Annotation),
			curatedCell(r.CurationEnabled),
			blurbCell(r.Annotation),
		})
	}
	return data
}

// RenderRecords writes a record table to w
func RenderRecords(w io.Writer, records []store.Record) error {
	return pterm.DefaultTable.
		WithHasHeader().
		WithWriter(w).
		WithData(RecordRows(records)).
		Render()
}

// RenderRecord writes one entity's full state as a key/value table
func RenderRecord(w io.Writer, r *store.Record) error {
	data := pterm.TableData{
		{"Field", "Value"},
		{"ID", r.ID},
		{"Label", r.Label},
		{"Curated", curatedCell(r.CurationEnabled)},
		{"Canonical date", dateCell(r.Annotation)},
		{"Date kind", kindCell(r.Annotation)},
		{"Blurb source", sourceCell(r.BlurbSource)},
		{"Blurb", valueOr(r.Blurb, "-")},
		{"Classes", joinEntities(r.Classes)},
		{"Genres", joinEntities(r.Genres)},
	}
	if !r.UpdatedAt.IsZero() {
		data = append(data, []string{"Updated", r.UpdatedAt.Format("2006-01-02 15:04:05")})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}

// RenderStats writes store counters as a table
func RenderStats(w io.Writer, s *store.Stats) error {
	data := pterm.TableData{
		{"Metric", "Count"},
		{"Entities", fmt.Sprint(s.Entities)},
		{"Date observations", fmt.Sprint(s.Observations)},
		{"Canonical dates", fmt.Sprint(s.CanonicalDates)},
		{"Disputed dates", fmt.Sprint(s.Disputed)},
		{"Curation disabled", fmt.Sprint(s.Disabled)},
		{"Manual blurbs", fmt.Sprint(s.ManualBlurbs)},
		{"Scraped blurbs", fmt.Sprint(s.ScrapedBlurbs)},
		{"Classes", fmt.Sprint(s.Classes)},
		{"Genres", fmt.Sprint(s.Genres)},
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}

func dateCell(a store.Annotation) string {
	if a.CanonicalDate == nil {
		return "-"
	}
	s := reconcile.FormatDate(*a.CanonicalDate)
	if a.CanonicalDateDisputed {
		s += " (disputed)"
	}
	return s
}

func kindCell(a store.Annotation) string {
	if a.CanonicalDateKind == nil {
		return "-"
	}
	return string(*a.CanonicalDateKind)
}

func curatedCell(enabled bool) string {
	if enabled {
		return "yes"
	}
	return "no"
}

func sourceCell(src *kb.BlurbSource) string {
	if src == nil {
		return "-"
	}
	return string(*src)
}

func blurbCell(a store.Annotation) string {
	if a.Blurb == nil {
		return "-"
	}
	return Truncate(*a.Blurb, maxBlurbWidth)
}

func valueOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func joinEntities(es []kb.Entity) string {
	if len(es) == 0 {
		return "-"
	}
	parts := make([]string, len(es))
	for i, e := range es {
		if e.Label != "" {
			parts[i] = fmt.Sprintf("%s (%s)", e.Label, e.ID)
		} else {
			parts[i] = e.ID
		}
	}
	return strings.Join(parts, ", ")
}

// Truncate shortens s to at most width runes, marking the cut with an ellipsis
func Truncate(s string, width int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= width {
		return string(r)
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}
