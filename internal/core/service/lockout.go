package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hospital-auth/internal/core/domain"
	"github.com/hms/hospital-auth/internal/core/ports"
)

const (
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 15 * time.Minute

	// DefaultUserLockoutThreshold applies to the per-username counter, which
	// every form and address shares.
	DefaultUserLockoutThreshold = 20
)

// LockoutState is the guard's view of a login interaction.
type LockoutState string

const (
	LockoutOpen   LockoutState = "open"
	LockoutLocked LockoutState = "locked"
)

// LockoutStatus is returned by Check.
type LockoutStatus struct {
	State    LockoutState
	Failures int
	// Remaining is how long the lock still holds; zero when open.
	Remaining time.Duration
}

// LockoutGuard counts consecutive failed logins per interaction and refuses
// further attempts for a fixed duration once the threshold is reached.
//
//	open --(failure x threshold)--> locked --(duration since last failure)--> open
//
// A successful login resets the interaction to open.
type LockoutGuard struct {
	store     ports.LockoutStore
	threshold int
	duration  time.Duration
	now       Clock
	log       zerolog.Logger
}

// LockoutOption configures a LockoutGuard.
type LockoutOption func(*LockoutGuard)

func WithLockoutThreshold(n int) LockoutOption {
	return func(g *LockoutGuard) {
		if n > 0 {
			g.threshold = n
		}
	}
}

func WithLockoutDuration(d time.Duration) LockoutOption {
	return func(g *LockoutGuard) {
		if d > 0 {
			g.duration = d
		}
	}
}

func WithLockoutClock(c Clock) LockoutOption {
	return func(g *LockoutGuard) {
		if c != nil {
			g.now = c
		}
	}
}

func NewLockoutGuard(store ports.LockoutStore, log zerolog.Logger, opts ...LockoutOption) *LockoutGuard {
	g := &LockoutGuard{
		store:     store,
		threshold: DefaultLockoutThreshold,
		duration:  DefaultLockoutDuration,
		now:       systemClock,
		log:       log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check returns domain.ErrAccountLocked while key is locked. An expired
// lock is cleared so the next failure starts counting from one.
func (g *LockoutGuard) Check(ctx context.Context, key string) (LockoutStatus, error) {
	c, err := g.store.Get(ctx, key)
	if err != nil {
		return LockoutStatus{}, fmt.Errorf("lockout check: %w", err)
	}

	if c.Failures < g.threshold {
		return LockoutStatus{State: LockoutOpen, Failures: c.Failures}, nil
	}

	elapsed := g.now().Sub(c.LastFailure)
	if elapsed < g.duration {
		return LockoutStatus{
			State:     LockoutLocked,
			Failures:  c.Failures,
			Remaining: g.duration - elapsed,
		}, domain.ErrAccountLocked
	}

	if err := g.store.Reset(ctx, key); err != nil {
		return LockoutStatus{}, fmt.Errorf("lockout reset: %w", err)
	}
	g.log.Info().Str("lockout_key", key).Msg("lockout window elapsed")
	return LockoutStatus{State: LockoutOpen}, nil
}

// RecordFailure counts one failed attempt and reports whether it tripped the lock.
func (g *LockoutGuard) RecordFailure(ctx context.Context, key string) (LockoutStatus, error) {
	c, err := g.store.RecordFailure(ctx, key, g.now(), g.duration)
	if err != nil {
		return LockoutStatus{}, fmt.Errorf("lockout record: %w", err)
	}
	if c.Failures >= g.threshold {
		g.log.Warn().Str("lockout_key", key).Int("failures", c.Failures).Dur("duration", g.duration).Msg("login locked")
		return LockoutStatus{State: LockoutLocked, Failures: c.Failures, Remaining: g.duration}, nil
	}
	return LockoutStatus{State: LockoutOpen, Failures: c.Failures}, nil
}

// Reset returns key to open with zero failures.
func (g *LockoutGuard) Reset(ctx context.Context, key string) error {
	if err := g.store.Reset(ctx, key); err != nil {
		return fmt.Errorf("lockout reset: %w", err)
	}
	return nil
}

// Threshold is the number of consecutive failures that locks an interaction.
func (g *LockoutGuard) Threshold() int { return g.threshold }

// Duration is how long a lock holds after the most recent failure.
func (g *LockoutGuard) Duration() time.Duration { return g.duration }
