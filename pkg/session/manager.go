package session

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/txn2/analytics-gateway/pkg/dataset"
	"github.com/txn2/analytics-gateway/pkg/workspace"
)

// Manager owns the collection of live sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	timeout      time.Duration
	seed         []dataset.Named
	newWorkspace workspace.Factory

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a session manager. Every session it creates shares
// the same idle timeout and is seeded, in order, with independent
// copies of the seed datasets. newWorkspace builds each session's
// private engine; nil selects the SQLite workspace.
func NewManager(timeout time.Duration, seed []dataset.Named, newWorkspace workspace.Factory) *Manager {
	if newWorkspace == nil {
		newWorkspace = func() (workspace.Workspace, error) { return workspace.NewSQLite() }
	}
	return &Manager{
		sessions:     make(map[string]*Session),
		timeout:      timeout,
		seed:         seed,
		newWorkspace: newWorkspace,
	}
}

// Create sweeps expired sessions, then allocates a new session with a
// fresh workspace seeded from the manager's seed datasets.
func (m *Manager) Create() (*Session, error) {
	m.CleanupExpired()

	ws, err := m.newWorkspace()
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}

	now := time.Now().UTC()
	s := &Session{
		ID:           newSessionID(),
		CreatedAt:    now,
		LastAccessed: now,
		Timeout:      m.timeout,
		Workspace:    ws,
	}

	for _, seed := range m.seed {
		if err := s.RegisterTable(seed.Name, seed.Data.Copy()); err != nil {
			_ = ws.Close()
			return nil, fmt.Errorf("seeding session: %w", err)
		}
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	slog.Debug("session created", "session_id", s.ID, "seed_tables", len(m.seed))
	return s, nil
}

// Get returns the session for id, touching it. Unknown and expired IDs
// both return ErrSessionNotFound; an expired session is removed on
// observation.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	if s.IsExpired(time.Now().UTC()) {
		delete(m.sessions, id)
		m.closeWorkspace(s)
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	s.Touch()
	return s, nil
}

// Delete removes a session, reporting whether one was present.
// Idempotent.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	delete(m.sessions, id)
	m.closeWorkspace(s)
	return true
}

// CleanupExpired removes every expired session.
func (m *Manager) CleanupExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for id, s := range m.sessions {
		if s.IsExpired(now) {
			delete(m.sessions, id)
			m.closeWorkspace(s)
		}
	}
}

// Len returns the number of live sessions, expired or not.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// StartCleanupRoutine starts a background goroutine that periodically
// sweeps expired sessions. Stopped by Close.
func (m *Manager) StartCleanupRoutine(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CleanupExpired()
			}
		}
	}()
}

// Close stops the cleanup goroutine and closes every remaining
// workspace, aggregating close failures. Safe to call even if
// StartCleanupRoutine was never called.
func (m *Manager) Close() error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
		m.cancel = nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var result *multierror.Error
	for id, s := range m.sessions {
		delete(m.sessions, id)
		if err := s.Workspace.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing workspace for session %s: %w", id, err))
		}
	}
	return result.ErrorOrNil()
}

func (m *Manager) closeWorkspace(s *Session) {
	if err := s.Workspace.Close(); err != nil {
		slog.Warn("session: closing workspace", "session_id", s.ID, "error", err)
	}
}

// newSessionID returns a 128-bit random hex token.
func newSessionID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
