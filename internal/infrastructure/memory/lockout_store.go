// Package memory holds process-local store implementations. They are the
// default for lockout counters, which belong to a single login form and are
// not meant to outlive the process.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hms/hospital-auth/internal/core/ports"
)

type lockoutEntry struct {
	counter   ports.LockoutCounter
	expiresAt time.Time
}

// LockoutStore implements ports.LockoutStore in memory.
type LockoutStore struct {
	mu      sync.Mutex
	entries map[string]*lockoutEntry
}

func NewLockoutStore() *LockoutStore {
	return &LockoutStore{entries: make(map[string]*lockoutEntry)}
}

func (s *LockoutStore) Get(_ context.Context, key string) (ports.LockoutCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return ports.LockoutCounter{}, nil
	}
	return e.counter, nil
}

func (s *LockoutStore) RecordFailure(_ context.Context, key string, at time.Time, ttl time.Duration) (ports.LockoutCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &lockoutEntry{}
		s.entries[key] = e
	}
	e.counter.Failures++
	e.counter.LastFailure = at
	e.expiresAt = at.Add(ttl)
	return e.counter, nil
}

func (s *LockoutStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Prune drops counters whose retention has passed and returns how many were removed.
func (s *LockoutStore) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, e := range s.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}
