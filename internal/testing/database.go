package testing

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/teranos/dirsvc/db"
)

// CreateTestDB creates a migrated SQLite database in a temporary directory.
// A file is used instead of :memory: so every pooled connection sees the same data.
// Automatically registers cleanup via t.Cleanup().
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.OpenWithMigrations(filepath.Join(t.TempDir(), "dirsvc-test.db"), nil)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
	})

	return conn
}
