package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDB holds every artifact as one row of an "artifacts" table.
type SQLiteDB struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS artifacts (
		name TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		saved_at TIMESTAMP NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteDB{db: db, path: path}, nil
}

// Artifact returns the artifact stored under name.
func (s *SQLiteDB) Artifact(name string) *SQLiteArtifact {
	return &SQLiteArtifact{db: s.db, name: name}
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// SQLiteArtifact is one row of an SQLiteDB.
type SQLiteArtifact struct {
	db   *sql.DB
	name string
}

func (a *SQLiteArtifact) Name() string {
	return a.name
}

func (a *SQLiteArtifact) Load(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := a.db.QueryRowContext(ctx, "SELECT payload FROM artifacts WHERE name = ?", a.name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", a.name, err)
	}
	return payload, nil
}

func (a *SQLiteArtifact) Save(ctx context.Context, payload []byte) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO artifacts (name, payload, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		a.name, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", a.name, err)
	}
	return nil
}
