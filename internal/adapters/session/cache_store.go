package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zatekoja/medibook/internal/domain/entities"
	"github.com/zatekoja/medibook/internal/domain/providers"
)

// KeyPrefix namespaces session keys in a shared cache
const KeyPrefix = "medibook:session:"

// CacheStore keeps the session in a CacheProvider under one key per profile,
// so several terminals can share a login through Redis
type CacheStore struct {
	cache providers.CacheProvider
	key   string
	ttl   time.Duration
}

// NewCacheStore stores the profile's session in cache, expiring after ttl (0 = never)
func NewCacheStore(cache providers.CacheProvider, profile string, ttl time.Duration) *CacheStore {
	if profile == "" {
		profile = "default"
	}
	return &CacheStore{
		cache: cache,
		key:   KeyPrefix + profile,
		ttl:   ttl,
	}
}

var _ providers.SessionStore = (*CacheStore)(nil)

// Key returns the cache key in use
func (s *CacheStore) Key() string {
	return s.key
}

// Load returns the cached session, nil when absent
func (s *CacheStore) Load(ctx context.Context) (*entities.Session, error) {
	data, err := s.cache.Get(ctx, s.key)
	if errors.Is(err, providers.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return decode(data)
}

// Save replaces the cached session
func (s *CacheStore) Save(ctx context.Context, session *entities.Session) error {
	if !session.Valid() {
		return fmt.Errorf("refusing to store a session without token")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.cache.Set(ctx, s.key, data, s.ttl); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear removes the cached session
func (s *CacheStore) Clear(ctx context.Context) error {
	if err := s.cache.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
