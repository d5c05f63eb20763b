package locale

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const preferenceKeyPrefix = "locale:pref:"

// PreferenceStore persists the explicitly chosen country code per session.
// Get returns "" when no preference is stored.
type PreferenceStore interface {
	Get(ctx context.Context, sessionID string) (string, error)
	Set(ctx context.Context, sessionID, code string) error
}

// RedisPreferenceStore keeps one string key per session.
type RedisPreferenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPreferenceStore builds a store; ttl 0 keeps preferences forever.
func NewRedisPreferenceStore(client *redis.Client, ttl time.Duration) *RedisPreferenceStore {
	return &RedisPreferenceStore{client: client, ttl: ttl}
}

// Get implements PreferenceStore.
func (s *RedisPreferenceStore) Get(ctx context.Context, sessionID string) (string, error) {
	v, err := s.client.Get(ctx, preferenceKeyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get locale preference: %w", err)
	}
	return v, nil
}

// Set implements PreferenceStore.
func (s *RedisPreferenceStore) Set(ctx context.Context, sessionID, code string) error {
	if err := s.client.Set(ctx, preferenceKeyPrefix+sessionID, code, s.ttl).Err(); err != nil {
		return fmt.Errorf("set locale preference: %w", err)
	}
	return nil
}

type memoryPreferenceStore struct {
	mu    sync.RWMutex
	prefs map[string]string
}

// NewMemoryPreferenceStore builds an in-process store for development and tests.
func NewMemoryPreferenceStore() PreferenceStore {
	return &memoryPreferenceStore{prefs: make(map[string]string)}
}

func (s *memoryPreferenceStore) Get(_ context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs[sessionID], nil
}

func (s *memoryPreferenceStore) Set(_ context.Context, sessionID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[sessionID] = code
	return nil
}
