package session

import (
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"docqa/core"
)

// DefaultTTL expires idle sessions.
const DefaultTTL = time.Hour

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session: not found")

// Manager keeps sessions in memory and expires them after a period without
// access. Expired sessions are cancelled.
type Manager struct {
	pipeline *Pipeline
	ttl      time.Duration
	sessions *gocache.Cache
}

// NewManager returns a Manager whose sessions share p.
func NewManager(p *Pipeline, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	sessions := gocache.New(ttl, ttl/2)
	sessions.OnEvicted(func(_ string, v interface{}) {
		if s, ok := v.(*Session); ok {
			s.Cancel()
		}
	})
	return &Manager{pipeline: p, ttl: ttl, sessions: sessions}
}

// Create starts a new idle session.
func (m *Manager) Create() *Session {
	s := New(core.NewSessionID(), m.pipeline)
	m.sessions.Set(s.ID(), s, m.ttl)
	return s
}

// Get returns the session and extends its lifetime.
func (m *Manager) Get(id string) (*Session, error) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	s := v.(*Session)
	if err := m.touch(id, s); err != nil {
		return nil, err
	}
	return s, nil
}

// touch restarts the TTL of an existing entry. Replace fails for a key that
// was deleted after the lookup, so a cancelled session is never re-added.
func (m *Manager) touch(id string, s *Session) error {
	if err := m.sessions.Replace(id, s, m.ttl); err != nil {
		return ErrNotFound
	}
	return nil
}

// Delete cancels and forgets the session.
func (m *Manager) Delete(id string) error {
	if _, ok := m.sessions.Get(id); !ok {
		return ErrNotFound
	}
	// OnEvicted cancels the session.
	m.sessions.Delete(id)
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int { return m.sessions.ItemCount() }

// Close cancels every session.
func (m *Manager) Close() {
	for id := range m.sessions.Items() {
		m.sessions.Delete(id)
	}
}
