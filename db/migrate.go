package db

import (
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"io/fs"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/dirsvc/errors"
)

//go:embed sqlite/migrations/*.sql
var migrations embed.FS

const migrationsDir = "sqlite/migrations"

// Migration is one embedded schema file.
type Migration struct {
	Version  string
	Filename string
	Checksum string
	SQL      string
}

// Migrations lists the embedded migrations in version order.
func Migrations() ([]Migration, error) {
	return loadMigrations(migrations, migrationsDir)
}

func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}

	var out []Migration
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, _, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			return nil, errors.Newf("migration %s has no version prefix", entry.Name())
		}
		if prev, dup := seen[version]; dup {
			return nil, errors.Newf("migrations %s and %s share version %s", prev, entry.Name(), version)
		}
		seen[version] = entry.Name()

		body, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", entry.Name())
		}
		sum := sha256.Sum256(body)
		out = append(out, Migration{
			Version:  version,
			Filename: entry.Name(),
			Checksum: hex.EncodeToString(sum[:]),
			SQL:      string(body),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Migrate applies pending embedded migrations and returns the versions it
// applied, oldest first. Already applied versions are checked against the
// checksum recorded for them; a mismatch fails with ErrMigrationDrift.
// A nil logger keeps it silent.
func Migrate(db *sql.DB, logger *zap.SugaredLogger) ([]string, error) {
	list, err := Migrations()
	if err != nil {
		return nil, err
	}
	return apply(db, list, logger)
}

func apply(db *sql.DB, list []Migration, logger *zap.SugaredLogger) ([]string, error) {
	if len(list) == 0 || list[0].Version != "000" {
		return nil, errors.New("migration 000 must create schema_migrations")
	}

	recorded, err := recordedChecksums(db)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, m := range list {
		if sum, ok := recorded[m.Version]; ok {
			if sum != m.Checksum {
				return applied, errors.Mark(
					errors.Newf("migration %s: recorded checksum %.12s, embedded %.12s", m.Filename, sum, m.Checksum),
					ErrMigrationDrift)
			}
			if logger != nil {
				logger.Debugw("Skipping migration (already applied)", "migration", m.Filename)
			}
			continue
		}

		if logger != nil {
			logger.Infow("Applying migration", "migration", m.Filename, "version", m.Version)
		}
		if err := applyOne(db, m); err != nil {
			return applied, err
		}
		applied = append(applied, m.Version)
	}

	if logger != nil {
		logger.Infow("Migrations complete",
			"total_migrations", len(list),
			"applied", applied,
		)
	}
	return applied, nil
}

// recordedChecksums reads schema_migrations. A missing table yields an
// empty map so migration 000 can create it.
func recordedChecksums(db *sql.DB) (map[string]string, error) {
	var exists bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type='table' AND name='schema_migrations')").Scan(&exists)
	if err != nil {
		if IsDatabaseClosed(err) {
			return nil, errors.Mark(errors.Wrap(err, "check schema_migrations"), ErrDatabaseClosed)
		}
		return nil, errors.Wrap(err, "check schema_migrations")
	}
	out := make(map[string]string)
	if !exists {
		return out, nil
	}

	rows, err := db.Query("SELECT version, checksum FROM schema_migrations")
	if err != nil {
		return nil, errors.Wrap(err, "read schema_migrations")
	}
	defer rows.Close()
	for rows.Next() {
		var version, sum string
		if err := rows.Scan(&version, &sum); err != nil {
			return nil, errors.Wrap(err, "scan schema_migrations")
		}
		out[version] = sum
	}
	return out, errors.Wrap(rows.Err(), "read schema_migrations")
}

func applyOne(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrapf(err, "begin tx for %s", m.Filename)
	}
	if _, err := tx.Exec(m.SQL); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "execute %s", m.Filename)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, filename, checksum) VALUES (?, ?, ?)",
		m.Version, m.Filename, m.Checksum); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "record %s", m.Filename)
	}
	return errors.Wrapf(tx.Commit(), "commit %s", m.Filename)
}
