package taskgraph

import (
	"context"
	"fmt"
	"path/filepath"
)

// Store persists task graphs.
type Store interface {
	// Load returns the team's graph, or an empty graph if none is stored.
	Load(ctx context.Context, team string) (*Graph, error)

	// Update loads the team's graph, applies fn, and saves the result if fn
	// returns nil. The whole sequence holds the store's write lock.
	Update(ctx context.Context, team string, fn func(*Graph) error) error

	// Delete removes the team's stored graph. Deleting a missing graph is
	// not an error.
	Delete(ctx context.Context, team string) error

	Close() error
}

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Open returns the store for backend rooted at {baseDir}/tasks. opts are
// applied to every graph the store loads.
func Open(backend, baseDir string, opts ...Option) (Store, error) {
	dir := filepath.Join(baseDir, "tasks")
	switch backend {
	case "", BackendJSON:
		return NewJSONStore(dir, opts...), nil
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dir, "tasks.db"), opts...)
	default:
		return nil, fmt.Errorf("unknown task backend %q", backend)
	}
}
