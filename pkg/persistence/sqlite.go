package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// defaultBusyTimeout is the lock wait time in milliseconds.
	defaultBusyTimeout = 5000
)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS accessories (
	uuid     TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	data     TEXT NOT NULL
);`

// SQLiteStore keeps the cache in an SQLite database, one row per accessory.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		path, defaultBusyTimeout)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save replaces the stored cache in a single transaction.
func (s *SQLiteStore) Save(cache *Cache) error {
	stamp(cache)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	if _, err := tx.Exec(`DELETE FROM accessories`); err != nil {
		return fmt.Errorf("clearing accessories: %w", err)
	}
	for i, a := range cache.Accessories {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encoding accessory %s: %w", a.UUID, err)
		}
		if _, err := tx.Exec(`INSERT INTO accessories (uuid, position, data) VALUES (?, ?, ?)`,
			a.UUID, i, string(data)); err != nil {
			return fmt.Errorf("storing accessory %s: %w", a.UUID, err)
		}
	}
	meta := map[string]string{
		"version":  fmt.Sprint(cache.Version),
		"saved_at": cache.SavedAt.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
			return fmt.Errorf("storing %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// Load reads the cache.
// Returns nil, nil if nothing has been saved yet.
func (s *SQLiteStore) Load() (*Cache, error) {
	cache := &Cache{}

	var savedAt string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'saved_at'`).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	if cache.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
		return nil, fmt.Errorf("parsing saved_at: %w", err)
	}
	var version string
	if err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'version'`).Scan(&version); err == nil {
		fmt.Sscan(version, &cache.Version) //nolint:errcheck // Version stays 0 when unparsable
	}

	rows, err := s.db.Query(`SELECT data FROM accessories ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("reading accessories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning accessory: %w", err)
		}
		var a CachedAccessory
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, fmt.Errorf("decoding accessory: %w", err)
		}
		cache.Accessories = append(cache.Accessories, a)
	}
	return cache, rows.Err()
}

// Clear removes all stored state.
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM accessories; DELETE FROM meta;`); err != nil {
		return fmt.Errorf("clearing store: %w", err)
	}
	return nil
}

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)
