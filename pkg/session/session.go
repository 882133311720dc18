// Package session provides isolated, expiring analytical workspaces.
// Each session owns a private embedded engine instance; the Manager
// keys sessions by opaque ID with TTL-based expiry.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/txn2/analytics-gateway/pkg/dataset"
	"github.com/txn2/analytics-gateway/pkg/workspace"
)

// ErrSessionNotFound is returned when a session ID is unknown or the
// session has expired. The two causes are indistinguishable to callers.
var ErrSessionNotFound = errors.New("session not found")

// Session is one principal's private analytical workspace.
type Session struct {
	// ID is the opaque session identifier, immutable after creation.
	ID string

	// CreatedAt is when the session was established, UTC.
	CreatedAt time.Time

	// LastAccessed is the most recent successful lookup, UTC.
	LastAccessed time.Time

	// Timeout is the idle duration after which the session expires.
	Timeout time.Duration

	// Workspace is the session's embedded engine. Never shared.
	Workspace workspace.Workspace

	// Tables lists the table names registered in the workspace, in
	// registration order.
	Tables []string
}

// Touch records an access, extending the session's life.
func (s *Session) Touch() {
	s.LastAccessed = time.Now().UTC()
}

// IsExpired reports whether the session's idle timeout has elapsed at
// now. Every read path routes through this predicate.
func (s *Session) IsExpired(now time.Time) bool {
	return now.Sub(s.LastAccessed) > s.Timeout
}

// RegisterTable materializes a dataset in the workspace and records its
// name. The name must already be sanitized and unique within the
// session (see UniqueTableName).
func (s *Session) RegisterTable(name string, ds dataset.Dataset) error {
	if err := s.Workspace.Register(name, ds); err != nil {
		return fmt.Errorf("registering table %q: %w", name, err)
	}
	s.Tables = append(s.Tables, name)
	return nil
}

// HasTable reports whether name is registered in this session.
func (s *Session) HasTable(name string) bool {
	for _, t := range s.Tables {
		if t == name {
			return true
		}
	}
	return false
}
