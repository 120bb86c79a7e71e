package wikidata

import (
	"context"
	"iter"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/kb"
)

// DateRow is one (entity, label, raw date) triple
type DateRow struct {
	Entity kb.Entity
	Raw    string
}

// Observation tags the row with the kind it was queried for
func (r DateRow) Observation(kind kb.PropertyKind) kb.DateObservation {
	return kb.DateObservation{EntityID: r.Entity.ID, Kind: kind, Raw: r.Raw}
}

// SoftwareRow is a software item and one class it is a direct instance of
type SoftwareRow struct {
	Entity kb.Entity
	Class  kb.Entity
}

// ClassRow is one subclass edge in the software class tree
type ClassRow struct {
	Class  kb.Entity
	Parent kb.Entity
}

// GenreRow assigns a genre to an item
type GenreRow struct {
	EntityID string
	Genre    kb.Entity
}

// DescriptionRow is an item's short description
type DescriptionRow struct {
	EntityID    string
	Description string
}

// Dates yields the raw date observations of one property kind. Each range
// re-issues the query.
func (c *Client) Dates(ctx context.Context, kind kb.PropertyKind) iter.Seq2[DateRow, error] {
	pid, ok := PropertyIDs[kind]
	if !ok {
		return failed[DateRow](errors.NewInvalidRequestError("no property for kind %q", kind))
	}
	return convert(c.Bindings(ctx, DatesQuery(pid, c.language)), func(b Binding) (DateRow, error) {
		id, err := b.EntityID("item")
		if err != nil {
			return DateRow{}, err
		}
		raw, err := b.Literal("date")
		if err != nil {
			return DateRow{}, errors.Wrapf(err, "entity %s", id)
		}
		return DateRow{Entity: kb.Entity{ID: id, Label: b.Label("itemLabel", id)}, Raw: raw}, nil
	})
}

// Software yields software items with their direct class
func (c *Client) Software(ctx context.Context) iter.Seq2[SoftwareRow, error] {
	return convert(c.Bindings(ctx, SoftwareQuery(c.language)), func(b Binding) (SoftwareRow, error) {
		id, err := b.EntityID("item")
		if err != nil {
			return SoftwareRow{}, err
		}
		classID, err := b.EntityID("type")
		if err != nil {
			return SoftwareRow{}, errors.Wrapf(err, "entity %s", id)
		}
		return SoftwareRow{
			Entity: kb.Entity{ID: id, Label: b.Label("itemLabel", id)},
			Class:  kb.Entity{ID: classID, Label: b.Label("typeLabel", classID)},
		}, nil
	})
}

// Classes yields the subclass edges of the software class tree
func (c *Client) Classes(ctx context.Context) iter.Seq2[ClassRow, error] {
	return convert(c.Bindings(ctx, ClassesQuery(c.language)), func(b Binding) (ClassRow, error) {
		id, err := b.EntityID("class")
		if err != nil {
			return ClassRow{}, err
		}
		parentID, err := b.EntityID("parent")
		if err != nil {
			return ClassRow{}, errors.Wrapf(err, "class %s", id)
		}
		return ClassRow{
			Class:  kb.Entity{ID: id, Label: b.Label("classLabel", id)},
			Parent: kb.Entity{ID: parentID, Label: b.Label("parentLabel", parentID)},
		}, nil
	})
}

// Genres yields (video game, genre) pairs
func (c *Client) Genres(ctx context.Context) iter.Seq2[GenreRow, error] {
	return convert(c.Bindings(ctx, GenresQuery(c.language)), func(b Binding) (GenreRow, error) {
		id, err := b.EntityID("item")
		if err != nil {
			return GenreRow{}, err
		}
		genreID, err := b.EntityID("genre")
		if err != nil {
			return GenreRow{}, errors.Wrapf(err, "entity %s", id)
		}
		return GenreRow{EntityID: id, Genre: kb.Entity{ID: genreID, Label: b.Label("genreLabel", genreID)}}, nil
	})
}

// Descriptions yields descriptions for the given items. IDs are validated
// before being embedded in the query.
func (c *Client) Descriptions(ctx context.Context, ids []string) iter.Seq2[DescriptionRow, error] {
	for _, id := range ids {
		if !kb.ValidEntityID(id) {
			return failed[DescriptionRow](errors.NewInvalidRequestError("invalid entity ID %q", id))
		}
	}
	if len(ids) == 0 {
		return func(func(DescriptionRow, error) bool) {}
	}
	return convert(c.Bindings(ctx, DescriptionsQuery(ids, c.language)), func(b Binding) (DescriptionRow, error) {
		id, err := b.EntityID("item")
		if err != nil {
			return DescriptionRow{}, err
		}
		text, err := b.Literal("description")
		if err != nil {
			return DescriptionRow{}, errors.Wrapf(err, "entity %s", id)
		}
		return DescriptionRow{EntityID: id, Description: text}, nil
	})
}

// convert maps solutions to typed rows. Conversion failures are yielded as
// per-row errors and the sequence continues.
func convert[T any](seq iter.Seq2[Binding, error], fn func(Binding) (T, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		for b, err := range seq {
			if err != nil {
				if !yield(zero, err) {
					return
				}
				continue
			}
			row, err := fn(b)
			if !yield(row, err) {
				return
			}
		}
	}
}

func failed[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}
