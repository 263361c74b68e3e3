package ports

import (
	"context"
	"time"
)

// LockoutCounter is the failure state of one login interaction.
type LockoutCounter struct {
	Failures    int
	LastFailure time.Time
}

// LockoutStore holds lockout counters keyed by login interaction.
// Get on an unknown key returns a zero counter and no error.
type LockoutStore interface {
	Get(ctx context.Context, key string) (LockoutCounter, error)
	// RecordFailure increments the counter, stamps LastFailure with at, and
	// returns the updated counter. ttl bounds how long it is retained.
	RecordFailure(ctx context.Context, key string, at time.Time, ttl time.Duration) (LockoutCounter, error)
	Reset(ctx context.Context, key string) error
}
