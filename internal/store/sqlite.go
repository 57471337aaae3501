package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

const schemaBlobs = `
CREATE TABLE IF NOT EXISTS blobs (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const (
	upsertBlobSQL = `
		INSERT INTO blobs (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at
	`
	selectBlobSQL = `SELECT value FROM blobs WHERE key=?`
	deleteBlobSQL = `DELETE FROM blobs WHERE key=?`
)

// SQLiteBlobStore keeps blobs in a single SQLite table.
type SQLiteBlobStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens or creates the database file at path and ensures the
// schema exists.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// One writer; SQLite serializes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = FULL;",
		"PRAGMA busy_timeout = 2000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaBlobs); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

// NewSQLiteBlobStore wraps an open database. The schema must already exist
// (OpenSQLite creates it).
func NewSQLiteBlobStore(db *sql.DB) *SQLiteBlobStore {
	return &SQLiteBlobStore{db: db, now: time.Now}
}

// ReadBlob returns the value stored under key.
func (s *SQLiteBlobStore) ReadBlob(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, selectBlobSQL, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &Error{Op: "read", Key: key, Err: err}
	}
	return value, nil
}

// WriteBlob upserts value under key.
func (s *SQLiteBlobStore) WriteBlob(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, upsertBlobSQL, key, value, s.now().UTC()); err != nil {
		return &Error{Op: "write", Key: key, Err: err}
	}
	return nil
}

// DeleteBlob removes key.
func (s *SQLiteBlobStore) DeleteBlob(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, deleteBlobSQL, key); err != nil {
		return &Error{Op: "delete", Key: key, Err: err}
	}
	return nil
}
