package db

import (
	"database/sql"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/teranos/softwaremap/errors"
)

// ErrDatabaseClosed marks work attempted after the store was closed, usually
// a pulse cycle or request still draining during shutdown.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether err comes from a closed *sql.DB.
// database/sql reports this with an unexported error, so its message is matched too.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.IsAny(err, ErrDatabaseClosed, sql.ErrConnDone) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

// IsBusy reports whether SQLite gave up waiting on a lock held elsewhere,
// typically a second swmap process writing the same file.
func IsBusy(err error) bool {
	var se sqlite3.Error
	if err == nil || !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}

// WithBusyHint attaches a hint to lock errors and returns others unchanged
func WithBusyHint(err error) error {
	if !IsBusy(err) {
		return err
	}
	return errors.WithHintf(err,
		"another process holds the database lock for more than %dms; stop `swmap pulse start` or retry later",
		SQLiteBusyTimeoutMS)
}
