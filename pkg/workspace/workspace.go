// Package workspace defines the narrow interface a session uses to talk
// to its private embedded analytical engine, plus an in-memory SQLite
// implementation. The engine itself is interchangeable; sessions only
// depend on the interface.
package workspace

import (
	"context"
	"database/sql"

	"github.com/txn2/analytics-gateway/pkg/dataset"
)

// Workspace is one session's private analytical engine. Implementations
// are never shared between sessions.
type Workspace interface {
	// Register materializes a dataset as a queryable table.
	Register(name string, ds dataset.Dataset) error

	// QueryContext runs SQL against the registered tables.
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// Close releases the engine.
	Close() error
}

// Factory builds a fresh, empty workspace.
type Factory func() (Workspace, error)
