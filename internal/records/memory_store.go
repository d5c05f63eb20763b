package records

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Record
	ids         map[string]map[string]struct{}
	now         func() time.Time
}

// NewMemoryStore builds an in-process record store for development and tests.
func NewMemoryStore() Store {
	return &memoryStore{
		collections: make(map[string][]Record),
		ids:         make(map[string]map[string]struct{}),
		now:         time.Now,
	}
}

func (s *memoryStore) Create(_ context.Context, collection string, rec Record) (Record, error) {
	stored, err := prepare(collection, rec, s.now())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids[collection] == nil {
		s.ids[collection] = make(map[string]struct{})
	}
	if _, exists := s.ids[collection][stored.ID()]; exists {
		return nil, fmt.Errorf("%w: %s/%s", ErrDuplicate, collection, stored.ID())
	}
	s.ids[collection][stored.ID()] = struct{}{}
	s.collections[collection] = append(s.collections[collection], stored)
	return clone(stored), nil
}

func (s *memoryStore) List(_ context.Context, collection string, filter Filter, order Order, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, rec := range s.collections[collection] {
		if matches(rec, filter) {
			out = append(out, clone(rec))
		}
	}
	sortRecords(out, order)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matches(rec Record, filter Filter) bool {
	for field, want := range filter {
		if rec.String(field) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func clone(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
