// Package curation imports editor-maintained curation flags and manual
// blurbs from a TOML seed file:
//
//	[[entity]]
//	id = "Q7397"
//	enabled = true
//	blurb = "Programs and data that run on a computer."
//
// Omitted fields leave the stored value alone; an empty blurb clears it.
package curation

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/kb"
	"github.com/teranos/softwaremap/logger"
	"github.com/teranos/softwaremap/store"
)

// Entry is one [[entity]] table
type Entry struct {
	ID      string  `toml:"id"`
	Blurb   *string `toml:"blurb"`
	Enabled *bool   `toml:"enabled"`
}

// File is a parsed seed file
type File struct {
	Entities []Entry `toml:"entity"`

	// Unknown lists keys present in the file that no field consumed
	Unknown []string `toml:"-"`
}

// RowError reports an entry that was skipped
type RowError struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Err   error  `json:"-"`
	Cause string `json:"error"`
}

// Result summarises an import
type Result struct {
	Applied int        `json:"applied"`
	Skipped []RowError `json:"skipped,omitempty"`
	Unknown []string   `json:"unknown_keys,omitempty"`
}

// Parse decodes a seed file from r
func Parse(r io.Reader) (*File, error) {
	var f File
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, errors.Wrap(errors.Mark(err, errors.ErrInvalidRequest), "parse curation file")
	}
	for _, key := range md.Undecoded() {
		f.Unknown = append(f.Unknown, key.String())
	}
	sort.Strings(f.Unknown)
	return &f, nil
}

// ParseFile decodes the seed file at path
func ParseFile(path string) (*File, error) {
	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, errors.Wrapf(errors.Mark(err, errors.ErrInvalidRequest), "parse curation file %s", path)
	}
	for _, key := range md.Undecoded() {
		f.Unknown = append(f.Unknown, key.String())
	}
	sort.Strings(f.Unknown)
	return &f, nil
}

// Apply writes every entry, each in its own transaction. Entries naming an
// invalid or unknown entity are skipped and reported; other store failures
// abort the import. Entries committed before an abort stay committed.
func Apply(ctx context.Context, st *store.Store, f *File) (*Result, error) {
	log := logger.LoggerFromContext(logger.WithComponent(ctx, "curation"))
	res := &Result{Unknown: f.Unknown}

	for _, key := range f.Unknown {
		log.Warnw("Ignoring unknown key in curation file", "key", key)
	}

	for i, entry := range f.Entities {
		if err := ctx.Err(); err != nil {
			return res, errors.Wrap(err, "curation import cancelled")
		}

		err := applyEntry(ctx, st, entry)
		switch {
		case err == nil:
			res.Applied++
		case errors.IsUnknownEntityError(err) || errors.Is(err, errors.ErrInvalidRequest):
			log.Warnw("Skipping curation entry", "index", i, logger.FieldEntityID, entry.ID, logger.FieldError, err)
			res.Skipped = append(res.Skipped, RowError{Index: i, ID: entry.ID, Err: err, Cause: err.Error()})
		default:
			return res, errors.Wrapf(err, "entry %d (%s)", i, entry.ID)
		}
	}

	log.Infow("Curation import finished", logger.FieldCount, res.Applied, logger.FieldSkipped, len(res.Skipped))
	return res, nil
}

func applyEntry(ctx context.Context, st *store.Store, entry Entry) error {
	entry.ID = strings.TrimSpace(entry.ID)
	if !kb.ValidEntityID(entry.ID) {
		return errors.NewInvalidRequestError("invalid entity ID %q", entry.ID)
	}
	if entry.Blurb == nil && entry.Enabled == nil {
		return errors.NewInvalidRequestError("entry for %s sets neither blurb nor enabled", entry.ID)
	}

	return st.InTx(ctx, func(tx *store.Tx) error {
		if entry.Enabled != nil {
			if err := tx.SetCuration(ctx, entry.ID, *entry.Enabled); err != nil {
				return err
			}
		}
		if entry.Blurb == nil {
			return nil
		}
		if strings.TrimSpace(*entry.Blurb) == "" {
			return tx.ClearBlurb(ctx, entry.ID)
		}
		return tx.SetBlurb(ctx, entry.ID, *entry.Blurb, kb.BlurbManual)
	})
}
