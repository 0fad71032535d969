package db

import (
	"strings"

	"github.com/teranos/dirsvc/errors"
)

// ErrDatabaseClosed is returned when operations are attempted on a closed database.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed checks if an error indicates the database connection is closed.
// The driver returns its own error values, so the message is checked as well.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

// ErrMigrationDrift is returned when an applied migration no longer matches
// the embedded file recorded under its version.
var ErrMigrationDrift = errors.New("applied migration differs from embedded file")
