package session

import (
	"context"
	"sync"

	"github.com/zatekoja/medibook/internal/domain/entities"
	"github.com/zatekoja/medibook/internal/domain/providers"
)

// MemoryStore keeps the session for the lifetime of the process
type MemoryStore struct {
	mu      sync.Mutex
	session *entities.Session
}

// NewMemoryStore creates a store, optionally seeded with a session
func NewMemoryStore(initial *entities.Session) *MemoryStore {
	s := &MemoryStore{}
	if initial.Valid() {
		cp := *initial
		s.session = &cp
	}
	return s
}

var _ providers.SessionStore = (*MemoryStore)(nil)

func (s *MemoryStore) Load(_ context.Context) (*entities.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, nil
	}
	cp := *s.session
	return &cp, nil
}

func (s *MemoryStore) Save(_ context.Context, session *entities.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.session = &cp
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
