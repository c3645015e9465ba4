package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/pipeweave/core/internal/models"
)

// DefaultName is the row used when a database holds a single pipeline.
const DefaultName = "default"

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	name TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	state TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteStore keeps named envelopes in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	name string
}

func NewSQLiteStore(path, name string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, name: name}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (models.Graph, error) {
	var state string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM snapshots WHERE name = ?`, s.name,
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Graph{}, ErrNotFound
	}
	if err != nil {
		return models.Graph{}, fmt.Errorf("failed to query snapshot: %w", err)
	}

	return Decode([]byte(state))
}

func (s *SQLiteStore) Save(ctx context.Context, g models.Graph) error {
	data, err := Encode(g)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (name, version, state, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(name) DO UPDATE SET
			version = excluded.version,
			state = excluded.state,
			updated_at = CURRENT_TIMESTAMP`,
		s.name, models.SnapshotVersion, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Names lists the stored pipelines.
func (s *SQLiteStore) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM snapshots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to list snapshots: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Named returns a store over another row of the same database.
func (s *SQLiteStore) Named(name string) *SQLiteStore {
	return &SQLiteStore{db: s.db, name: name}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
