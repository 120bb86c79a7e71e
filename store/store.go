// Package store persists entities, raw date observations and per-entity
// annotations (curation flag, blurb, canonical date) in SQLite.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/teranos/softwaremap/errors"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ops holds every statement; Store runs them on the pool, Tx inside one transaction
type ops struct {
	q   querier
	now func() time.Time
}

// Store is the annotation store
type Store struct {
	ops
	db *sql.DB
}

// Tx scopes store operations to one transaction. Obtain it with Store.InTx.
type Tx struct {
	ops
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the timestamp source (tests)
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store over an opened, migrated database
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, ops: ops{q: db, now: time.Now}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying database handle
func (s *Store) DB() *sql.DB { return s.db }

// InTx runs fn in a transaction, committing on nil and rolling back otherwise
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	if err := fn(&Tx{ops: ops{q: sqlTx, now: s.now}}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return errors.CombineErrors(err, errors.Wrap(rbErr, "rollback"))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

func (o ops) timestamp() time.Time {
	return o.now().UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
