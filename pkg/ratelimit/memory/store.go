// Package memory implements ratelimit.Store with in-process maps. It
// backs unit tests and single-node development; production deployments
// use the Redis store so concurrent workers share one set of counters.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gramflow/gramflow/pkg/ratelimit"
)

// Compile-time interface check.
var _ ratelimit.Store = (*Store)(nil)

type sortedMember struct {
	score  float64
	member string
}

// Store is a mutex-guarded, expiring key-value store.
type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	hashes  map[string]map[string]int64
	sets    map[string][]sortedMember
	values  map[string]string
	expires map[string]time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the time source used for expirations, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:     time.Now,
		hashes:  make(map[string]map[string]int64),
		sets:    make(map[string][]sortedMember),
		values:  make(map[string]string),
		expires: make(map[string]time.Time),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Store) IncrementHash(_ context.Context, key string, fields map[string]int64, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropIfExpired(key)

	hash, ok := s.hashes[key]
	if !ok {
		hash = make(map[string]int64)
		s.hashes[key] = hash
	}

	for field, delta := range fields {
		hash[field] += delta
	}

	s.expires[key] = s.now().Add(expiry)

	return nil
}

func (s *Store) ReadHash(_ context.Context, key string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropIfExpired(key)

	result := make(map[string]int64, len(s.hashes[key]))
	for field, count := range s.hashes[key] {
		result[field] = count
	}

	return result, nil
}

func (s *Store) AddToSortedSet(_ context.Context, key string, score float64, member string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropIfExpired(key)

	s.sets[key] = append(s.sets[key], sortedMember{score: score, member: member})
	s.expires[key] = s.now().Add(expiry)

	return nil
}

func (s *Store) SortedSetMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropIfExpired(key)

	entries := make([]sortedMember, len(s.sets[key]))
	copy(entries, s.sets[key])

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].score < entries[j].score
	})

	members := make([]string, 0, len(entries))
	for _, entry := range entries {
		members = append(members, entry.member)
	}

	return members, nil
}

func (s *Store) SetValue(_ context.Context, key, value string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	s.expires[key] = s.now().Add(expiry)

	return nil
}

func (s *Store) GetValue(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropIfExpired(key)

	value, ok := s.values[key]
	if !ok {
		return "", ratelimit.ErrNotFound
	}

	return value, nil
}

// dropIfExpired lazily removes a key past its expiry. Callers must hold
// the mutex.
func (s *Store) dropIfExpired(key string) {
	deadline, ok := s.expires[key]
	if !ok || s.now().Before(deadline) {
		return
	}

	delete(s.hashes, key)
	delete(s.sets, key)
	delete(s.values, key)
	delete(s.expires, key)
}
