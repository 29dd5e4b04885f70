// Package session provides implementations of the domain.SessionStore
// contract: an in-memory store for tests and development, and a
// Postgres-backed store for production.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tenantgate/platform/internal/domain"
)

// MemoryStore is a thread-safe in-memory session store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	clock    func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.Session),
		clock:    time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, attrs map[string]string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	s := &domain.Session{
		ID:             uuid.New().String(),
		Attributes:     make(map[string]string, len(attrs)),
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	for k, v := range attrs {
		s.Attributes[k] = v
	}
	m.sessions[s.ID] = s
	return cloneSession(s), nil
}

func (m *MemoryStore) Find(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	now := m.clock()
	if idleExpired(s, now) {
		delete(m.sessions, id)
		return nil, nil
	}
	s.LastAccessedAt = now
	return cloneSession(s), nil
}

// idleExpired reports whether the session's idle timeout has lapsed. A
// non-positive MaxIdleSeconds means no idle expiry.
func idleExpired(s *domain.Session, now time.Time) bool {
	if s.MaxIdleSeconds <= 0 {
		return false
	}
	return now.After(s.LastAccessedAt.Add(time.Duration(s.MaxIdleSeconds) * time.Second))
}

func (m *MemoryStore) Save(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[s.ID]
	if !ok {
		return domain.ErrSessionGone("session no longer exists")
	}
	stored.Attributes = make(map[string]string, len(s.Attributes))
	for k, v := range s.Attributes {
		stored.Attributes[k] = v
	}
	stored.MaxIdleSeconds = s.MaxIdleSeconds
	return nil
}

func (m *MemoryStore) RotateID(_ context.Context, s *domain.Session) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[s.ID]
	if !ok {
		return "", domain.ErrSessionGone("session no longer exists")
	}
	delete(m.sessions, stored.ID)
	stored.ID = uuid.New().String()
	m.sessions[stored.ID] = stored
	s.ID = stored.ID
	return stored.ID, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) FindByTenant(_ context.Context, tenantID string) ([]*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Session
	for _, s := range m.sessions {
		if s.Attributes[domain.TenantIndexKey] == tenantID {
			out = append(out, cloneSession(s))
		}
	}
	return out, nil
}

// SetLastAccessed overrides a session's last-accessed time. Test hook for
// exercising eviction ordering.
func (m *MemoryStore) SetLastAccessed(id string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastAccessedAt = t
	}
}

// SetCreatedAt overrides a session's creation time. Test hook.
func (m *MemoryStore) SetCreatedAt(id string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.CreatedAt = t
	}
}

func cloneSession(s *domain.Session) *domain.Session {
	out := *s
	out.Attributes = make(map[string]string, len(s.Attributes))
	for k, v := range s.Attributes {
		out.Attributes[k] = v
	}
	return &out
}
