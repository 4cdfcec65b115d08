package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore is a SharedStore backed by a SQLite file. It lets the worker
// processes of one host share captured responses without a network service.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path and prunes expired rows.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("cache: sqlite path required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}
	// One connection keeps the pragmas below in effect for every statement.
	db.SetMaxOpenConns(1)

	statements := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"CREATE TABLE IF NOT EXISTS responses (key TEXT PRIMARY KEY, expires INTEGER NOT NULL, payload BLOB NOT NULL)",
		"CREATE INDEX IF NOT EXISTS responses_expires_idx ON responses (expires)",
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("cache: init sqlite: %w", err)
		}
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if _, err := s.Prune(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Get retrieves an entry by key.
// Returns ErrCacheMiss if the key doesn't exist or has expired.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, error) {
	var expires int64
	var payload []byte
	err := s.db.QueryRowContext(ctx, "SELECT expires, payload FROM responses WHERE key = ?", key).Scan(&expires, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("sqlite get: %w", err)
	}

	if s.now().UnixMilli() >= expires {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM responses WHERE key = ? AND expires = ?", key, expires); err != nil {
			CacheErrors.WithLabelValues("delete").Inc()
		}
		return nil, ErrCacheMiss
	}

	entry, err := decodeEntry(payload)
	if err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		return nil, err
	}
	return entry, nil
}

// Set upserts an entry that expires after ttl.
func (s *SQLiteStore) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	payload, err := encodeEntry(entry)
	if err != nil {
		CacheErrors.WithLabelValues("encode").Inc()
		return err
	}

	expires := s.now().Add(ttl).UnixMilli()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO responses (key, expires, payload) VALUES (?, ?, ?) "+
			"ON CONFLICT(key) DO UPDATE SET expires = excluded.expires, payload = excluded.payload",
		key, expires, payload)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("sqlite set: %w", err)
	}
	return nil
}

// Prune deletes expired rows and returns how many were removed.
func (s *SQLiteStore) Prune(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM responses WHERE expires <= ?", s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlite prune: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ SharedStore = (*SQLiteStore)(nil)
