// Package sqlitedir stores directory entities in SQLite.
//
// Find returns entities in insertion order (channel rowid); properties and
// tags keep the order they were written in.
package sqlitedir

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/dirsvc/db"
	"github.com/teranos/dirsvc/directory"
	"github.com/teranos/dirsvc/errors"
)

// Store is a directory.Client backed by a SQLite database.
type Store struct {
	db     *sql.DB
	owned  bool
	logger *zap.SugaredLogger
}

var _ directory.Client = (*Store)(nil)

// Open opens (and migrates) the database at path. Close closes it.
func Open(path string, logger *zap.SugaredLogger) (*Store, error) {
	conn, err := db.OpenWithMigrations(path, logger)
	if err != nil {
		return nil, err
	}
	s := New(conn, logger)
	s.owned = true
	return s, nil
}

// New wraps an already migrated database. Close leaves conn open.
func New(conn *sql.DB, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{db: conn, logger: logger}
}

// Put inserts or replaces entities by name. A replaced entity keeps its
// original position in insertion order.
func (s *Store) Put(ctx context.Context, entities ...directory.Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, e := range entities {
		if e.Name == "" {
			return errors.New("channel name is required")
		}
		if err := putEntity(ctx, tx, e); err != nil {
			return errors.Wrapf(err, "failed to store channel %s", e.Name)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit channels")
	}
	s.logger.Debugw("Stored channels", "count", len(entities))
	return nil
}

func putEntity(ctx context.Context, tx *sql.Tx, e directory.Entity) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO channels (name, owner) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET owner = excluded.owner`,
		e.Name, e.Owner)
	if err != nil {
		return err
	}

	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM channels WHERE name = ?`, e.Name).Scan(&id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM channel_properties WHERE channel_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM channel_tags WHERE channel_id = ?`, id); err != nil {
		return err
	}

	for i, p := range e.Properties {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO channel_properties (channel_id, position, name, value) VALUES (?, ?, ?, ?)`,
			id, i, p.Name, p.Value); err != nil {
			return errors.Wrapf(err, "property %s", p.Name)
		}
	}
	for i, tag := range e.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO channel_tags (channel_id, position, name) VALUES (?, ?, ?)`,
			id, i, tag); err != nil {
			return errors.Wrapf(err, "tag %s", tag)
		}
	}
	return nil
}

// Count returns the number of stored channels.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count channels")
	}
	return n, nil
}

// Find returns the channels matching query.
func (s *Store) Find(ctx context.Context, query string) ([]directory.Entity, error) {
	q, err := directory.ParseQuery(query)
	if err != nil {
		return nil, err
	}
	if q.Empty() {
		return nil, nil
	}

	match, args := matchSQL(q)

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin read transaction")
	}
	defer tx.Rollback()

	entities, byID, err := loadChannels(ctx, tx, match, args)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	if err := loadProperties(ctx, tx, match, args, entities, byID); err != nil {
		return nil, err
	}
	if err := loadTags(ctx, tx, match, args, entities, byID); err != nil {
		return nil, err
	}
	return entities, nil
}

// matchSQL renders q as a SELECT of matching channel ids.
func matchSQL(q directory.Query) (string, []any) {
	var (
		where []string
		args  []any
	)
	if len(q.Names) > 0 {
		ors := make([]string, len(q.Names))
		for i, n := range q.Names {
			ors[i] = "c.name GLOB ?"
			args = append(args, escapeGlob(n))
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	for _, tag := range q.Tags {
		where = append(where, "EXISTS (SELECT 1 FROM channel_tags t WHERE t.channel_id = c.id AND t.name = ?)")
		args = append(args, tag)
	}
	for _, p := range q.Properties {
		where = append(where, "EXISTS (SELECT 1 FROM channel_properties p WHERE p.channel_id = c.id AND p.name = ? AND p.value GLOB ?)")
		args = append(args, p.Name, escapeGlob(p.Value))
	}
	return "SELECT c.id FROM channels c WHERE " + strings.Join(where, " AND "), args
}

// escapeGlob keeps '*' and '?' as wildcards and makes '[' literal.
func escapeGlob(pattern string) string {
	return strings.ReplaceAll(pattern, "[", "[[]")
}

func loadChannels(ctx context.Context, tx *sql.Tx, match string, args []any) ([]directory.Entity, map[int64]int, error) {
	rows, err := tx.QueryContext(ctx,
		`WITH matched AS (`+match+`)
		 SELECT c.id, c.name, c.owner FROM channels c JOIN matched m ON m.id = c.id
		 ORDER BY c.id`, args...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to query channels")
	}
	defer rows.Close()

	var entities []directory.Entity
	byID := make(map[int64]int)
	for rows.Next() {
		var (
			id int64
			e  directory.Entity
		)
		if err := rows.Scan(&id, &e.Name, &e.Owner); err != nil {
			return nil, nil, errors.Wrap(err, "failed to scan channel")
		}
		byID[id] = len(entities)
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "failed to read channels")
	}
	return entities, byID, nil
}

func loadProperties(ctx context.Context, tx *sql.Tx, match string, args []any, entities []directory.Entity, byID map[int64]int) error {
	rows, err := tx.QueryContext(ctx,
		`WITH matched AS (`+match+`)
		 SELECT p.channel_id, p.name, p.value FROM channel_properties p JOIN matched m ON m.id = p.channel_id
		 ORDER BY p.channel_id, p.position`, args...)
	if err != nil {
		return errors.Wrap(err, "failed to query properties")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id int64
			p  directory.Property
		)
		if err := rows.Scan(&id, &p.Name, &p.Value); err != nil {
			return errors.Wrap(err, "failed to scan property")
		}
		if i, ok := byID[id]; ok {
			entities[i].Properties = append(entities[i].Properties, p)
		}
	}
	return errors.Wrap(rows.Err(), "failed to read properties")
}

func loadTags(ctx context.Context, tx *sql.Tx, match string, args []any, entities []directory.Entity, byID map[int64]int) error {
	rows, err := tx.QueryContext(ctx,
		`WITH matched AS (`+match+`)
		 SELECT t.channel_id, t.name FROM channel_tags t JOIN matched m ON m.id = t.channel_id
		 ORDER BY t.channel_id, t.position`, args...)
	if err != nil {
		return errors.Wrap(err, "failed to query tags")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  int64
			tag string
		)
		if err := rows.Scan(&id, &tag); err != nil {
			return errors.Wrap(err, "failed to scan tag")
		}
		if i, ok := byID[id]; ok {
			entities[i].Tags = append(entities[i].Tags, tag)
		}
	}
	return errors.Wrap(rows.Err(), "failed to read tags")
}

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
