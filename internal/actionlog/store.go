package actionlog

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by stores for unknown keys.
var ErrNotFound = errors.New("record not found")

// Store is the external key/value store holding session records.
type Store interface {
	Put(ctx context.Context, key string, rec Record) error
	Get(ctx context.Context, key string) (Record, error)
}

// MemoryStore is a process-local Store that notifies watchers of every write.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]Record
	watchers []func(key string, rec Record)
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Put stores a copy of rec under key.
func (s *MemoryStore) Put(ctx context.Context, key string, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec.Actions = append([]Action(nil), rec.Actions...)

	s.mu.Lock()
	s.records[key] = rec
	watchers := append([]func(string, Record){}, s.watchers...)
	s.mu.Unlock()

	for _, w := range watchers {
		w(key, rec)
	}
	return nil
}

// Get returns the record stored under key.
func (s *MemoryStore) Get(ctx context.Context, key string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Actions = append([]Action(nil), rec.Actions...)
	return rec, nil
}

// Watch registers fn to be called after every successful Put. Callbacks run
// on the writing goroutine.
func (s *MemoryStore) Watch(fn func(key string, rec Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}
