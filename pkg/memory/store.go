package memory

import (
	"context"
	"sync"
)

// SessionStore persists session metadata. Get returns (nil, nil) for an
// unknown ID; absence is a result, not an error.
type SessionStore interface {
	Put(ctx context.Context, session *SessionInfo) error
	Get(ctx context.Context, id string) (*SessionInfo, error)
	Delete(ctx context.Context, id string) (bool, error)
	Close() error
}

// MapStore is a process-lifetime in-memory session store. It backs tests and
// the dev profile; durable deployments use a persistent store.
type MapStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionInfo
}

// NewMapStore creates an empty in-memory session store.
func NewMapStore() *MapStore {
	return &MapStore{
		sessions: make(map[string]*SessionInfo),
	}
}

func (s *MapStore) Put(_ context.Context, session *SessionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *MapStore) Get(_ context.Context, id string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}

	cp := *session
	return &cp, nil
}

func (s *MapStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}

	delete(s.sessions, id)
	return true, nil
}

func (s *MapStore) Close() error {
	return nil
}

// Ensure MapStore implements SessionStore
var _ SessionStore = (*MapStore)(nil)
