// Package export writes the persisted per-entity records as JSON or YAML.
package export

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/reconcile"
	"github.com/teranos/softwaremap/store"
)

// Format names an output encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", errors.NewInvalidRequestError("unknown export format %q (want json or yaml)", s)
}

// Record is the exported shape of one entity. Dates are YYYY-MM-DD.
type Record struct {
	EntityID              string   `json:"entityId" yaml:"entityId"`
	Label                 string   `json:"label,omitempty" yaml:"label,omitempty"`
	CurationEnabled       bool     `json:"curationEnabled" yaml:"curationEnabled"`
	Blurb                 *string  `json:"blurb,omitempty" yaml:"blurb,omitempty"`
	BlurbSource           *string  `json:"blurbSource,omitempty" yaml:"blurbSource,omitempty"`
	CanonicalDate         *string  `json:"canonicalDate,omitempty" yaml:"canonicalDate,omitempty"`
	CanonicalDateKind     *string  `json:"canonicalDateKind,omitempty" yaml:"canonicalDateKind,omitempty"`
	CanonicalDateDisputed bool     `json:"canonicalDateDisputed,omitempty" yaml:"canonicalDateDisputed,omitempty"`
	Classes               []string `json:"classes,omitempty" yaml:"classes,omitempty"`
	Genres                []string `json:"genres,omitempty" yaml:"genres,omitempty"`
	UpdatedAt             string   `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// Document wraps the exported records
type Document struct {
	GeneratedAt string   `json:"generatedAt" yaml:"generatedAt"`
	Count       int      `json:"count" yaml:"count"`
	Records     []Record `json:"records" yaml:"records"`
}

// FromStore converts store records into their exported shape
func FromStore(records []store.Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		e := Record{
			EntityID:              r.ID,
			Label:                 r.Label,
			CurationEnabled:       r.CurationEnabled,
			Blurb:                 r.Blurb,
			CanonicalDateDisputed: r.CanonicalDateDisputed,
		}
		if r.BlurbSource != nil {
			s := string(*r.BlurbSource)
			e.BlurbSource = &s
		}
		if r.CanonicalDate != nil {
			s := reconcile.FormatDate(*r.CanonicalDate)
			e.CanonicalDate = &s
		}
		if r.CanonicalDateKind != nil {
			s := string(*r.CanonicalDateKind)
			e.CanonicalDateKind = &s
		}
		for _, c := range r.Classes {
			e.Classes = append(e.Classes, c.ID)
		}
		for _, g := range r.Genres {
			e.Genres = append(e.Genres, g.ID)
		}
		if !r.UpdatedAt.IsZero() {
			e.UpdatedAt = r.UpdatedAt.UTC().Format(time.RFC3339)
		}
		out = append(out, e)
	}
	return out
}

// Write encodes records to w in the given format
func Write(w io.Writer, format Format, records []store.Record, generatedAt time.Time) error {
	doc := Document{
		GeneratedAt: generatedAt.UTC().Format(time.RFC3339),
		Count:       len(records),
		Records:     FromStore(records),
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(doc), "encode JSON export")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return errors.Wrap(err, "encode YAML export")
		}
		return errors.Wrap(enc.Close(), "flush YAML export")
	}
	return errors.NewInvalidRequestError("unknown export format %q", format)
}
