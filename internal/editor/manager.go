package editor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/petervdpas/cipherstudio/internal/content"
)

// Publisher receives the full document set of a project after every reload.
type Publisher interface {
	Publish(projectID string, files []content.FileRecord)
}

type entry struct {
	id      string
	session *Session
	unsub   func()
}

// Manager keeps the open sessions of the process, one per project view.
type Manager struct {
	backend content.Backend
	opts    Options
	pub     Publisher

	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewManager creates a manager. pub may be nil.
func NewManager(b content.Backend, opts Options, pub Publisher) *Manager {
	return &Manager{
		backend:  b,
		opts:     opts,
		pub:      pub,
		sessions: make(map[string]*entry),
	}
}

// Open loads projectID into a fresh store and returns a new Empty session on it.
func (m *Manager) Open(ctx context.Context, projectID string) (string, *Session, error) {
	if projectID == "" {
		return "", nil, &content.ValidationError{Field: "project", Reason: "required"}
	}
	store := content.NewStore(m.backend, projectID)

	ch, unsub := store.Subscribe()
	if m.pub != nil {
		go func() {
			for docs := range ch {
				m.pub.Publish(projectID, docs)
			}
		}()
	}

	if err := store.Reload(ctx); err != nil {
		unsub()
		return "", nil, err
	}

	e := &entry{
		id:      uuid.NewString(),
		session: NewSession(store, m.opts),
		unsub:   unsub,
	}
	m.mu.Lock()
	m.sessions[e.id] = e
	m.mu.Unlock()

	log.Infof("session %s opened on project %s (%d records)", e.id, projectID, len(store.Files()))
	return e.id, e.session, nil
}

// Get returns the session registered under id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, content.ErrNotFound)
	}
	return e.session, nil
}

// Close ends the session and drops it from the manager.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, content.ErrNotFound)
	}
	e.session.Close()
	e.unsub()
	log.Infof("session %s closed", id)
	return nil
}

// CloseAll ends every session.
func (m *Manager) CloseAll() {
	for _, id := range m.IDs() {
		_ = m.Close(id)
	}
}

// IDs lists the open session ids.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	return out
}

// RefreshProject reconciles every session open on projectID with the backend.
// It is called after changes that bypassed those sessions' stores.
func (m *Manager) RefreshProject(ctx context.Context, projectID string) error {
	m.mu.RLock()
	var targets []*Session
	for _, e := range m.sessions {
		if e.session.Store().ProjectID() == projectID {
			targets = append(targets, e.session)
		}
	}
	m.mu.RUnlock()

	var firstErr error
	for _, s := range targets {
		if err := s.Refresh(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CloseProject ends every session open on projectID.
func (m *Manager) CloseProject(projectID string) int {
	m.mu.RLock()
	var ids []string
	for id, e := range m.sessions {
		if e.session.Store().ProjectID() == projectID {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	n := 0
	for _, id := range ids {
		if m.Close(id) == nil {
			n++
		}
	}
	return n
}
