package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver, selected via DATABASE_URL
	_ "github.com/mattn/go-sqlite3" // default local driver
)

// SQLStore implements Store over a single kv table. SQLite backs the default
// single-machine setup; postgres is used when a DATABASE_URL is configured.
type SQLStore struct {
	db *sqlx.DB
}

// Config controls how Open connects.
type Config struct {
	// DatabaseURL selects postgres when non-empty.
	DatabaseURL string
	// DataDir holds the sqlite file when DatabaseURL is empty. Created if
	// missing. Defaults to "data".
	DataDir string
}

// Open connects to the configured database and creates the schema.
func Open(cfg Config) (*SQLStore, error) {
	var db *sqlx.DB
	var err error

	if cfg.DatabaseURL != "" {
		db, err = sqlx.Connect("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	} else {
		dataDir := cfg.DataDir
		if dataDir == "" {
			dataDir = "data"
		}
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dbPath := filepath.Join(dataDir, "revtrack.db")
		db, err = sqlx.Connect("sqlite3", dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
		}
		// SQLite doesn't support multiple writers.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	s := &SQLStore{db: db}
	if err := s.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) initializeSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			name TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create kv table: %w", err)
	}
	return nil
}

// Read returns the value stored under key, or ErrNotFound.
func (s *SQLStore) Read(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	query := s.rebind("SELECT value FROM kv WHERE name = ?")
	err := s.db.GetContext(ctx, &value, query, key)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return value, nil
}

// Write stores value under key, replacing any previous value.
func (s *SQLStore) Write(ctx context.Context, key string, value []byte) error {
	query := s.rebind(`
		INSERT INTO kv (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`)
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n when running on postgres.
func (s *SQLStore) rebind(query string) string {
	if s.db.DriverName() == "postgres" {
		return s.db.Rebind(query)
	}
	return query
}
