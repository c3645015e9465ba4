// Package snapshot persists pipeline graphs behind a versioned JSON
// envelope, either in a plain file or in a SQLite database.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pipeweave/core/internal/models"
)

var (
	ErrNotFound           = errors.New("snapshot not found")
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
	ErrUnknownDriver      = errors.New("unknown snapshot driver")
)

// Store loads and saves the graph of one pipeline.
type Store interface {
	Load(ctx context.Context) (models.Graph, error)
	Save(ctx context.Context, g models.Graph) error
	Close() error
}

// Open returns the store for driver ("file" or "sqlite") at path.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "file", "":
		return NewFileStore(path), nil
	case "sqlite":
		return NewSQLiteStore(path, DefaultName)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}

// Encode wraps g in the current envelope.
func Encode(g models.Graph) ([]byte, error) {
	g = normalize(g)
	data, err := json.MarshalIndent(models.Snapshot{Version: models.SnapshotVersion, State: g}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// Decode unwraps an envelope written by Encode.
func Decode(data []byte) (models.Graph, error) {
	var s models.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return models.Graph{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if s.Version < 1 || s.Version > models.SnapshotVersion {
		return models.Graph{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, s.Version)
	}
	return normalize(s.State), nil
}

func normalize(g models.Graph) models.Graph {
	if g.Nodes == nil {
		g.Nodes = []models.Node{}
	}
	if g.Edges == nil {
		g.Edges = []models.Edge{}
	}
	if g.NodeIDs == nil {
		g.NodeIDs = map[string]int{}
	}
	return g
}
