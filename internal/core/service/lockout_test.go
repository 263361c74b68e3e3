package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hms/hospital-auth/internal/core/domain"
	"github.com/hms/hospital-auth/internal/infrastructure/memory"
)

func TestLockoutGuard_TripsAtThreshold(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	g := NewLockoutGuard(memory.NewLockoutStore(), zerolog.Nop(),
		WithLockoutThreshold(3), WithLockoutClock(clock.Now))

	for i := 1; i < 3; i++ {
		st, err := g.RecordFailure(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, LockoutOpen, st.State)
		assert.Equal(t, i, st.Failures)
	}

	st, err := g.RecordFailure(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, LockoutLocked, st.State)

	clock.Advance(time.Minute)
	st, err = g.Check(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrAccountLocked)
	assert.Equal(t, LockoutLocked, st.State)
	assert.Equal(t, DefaultLockoutDuration-time.Minute, st.Remaining)
}

func TestLockoutGuard_WindowRunsFromLastFailure(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	g := NewLockoutGuard(memory.NewLockoutStore(), zerolog.Nop(), WithLockoutClock(clock.Now))

	for i := 0; i < DefaultLockoutThreshold; i++ {
		_, err := g.RecordFailure(ctx, "k")
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}
	// Last failure was one minute ago.
	clock.Advance(DefaultLockoutDuration - 2*time.Minute)
	_, err := g.Check(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrAccountLocked)

	clock.Advance(time.Minute)
	st, err := g.Check(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, LockoutOpen, st.State)
	assert.Zero(t, st.Failures)
}

func TestLockoutGuard_ResetAndIsolation(t *testing.T) {
	ctx := context.Background()
	g := NewLockoutGuard(memory.NewLockoutStore(), zerolog.Nop())

	_, _ = g.RecordFailure(ctx, "a")
	_, _ = g.RecordFailure(ctx, "a")
	_, _ = g.RecordFailure(ctx, "b")

	st, err := g.Check(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Failures)

	require.NoError(t, g.Reset(ctx, "a"))
	st, _ = g.Check(ctx, "a")
	assert.Zero(t, st.Failures)

	st, _ = g.Check(ctx, "b")
	assert.Equal(t, 1, st.Failures)
}

func TestLockoutGuard_Options(t *testing.T) {
	g := NewLockoutGuard(memory.NewLockoutStore(), zerolog.Nop(),
		WithLockoutThreshold(0), WithLockoutDuration(-time.Second))
	assert.Equal(t, DefaultLockoutThreshold, g.Threshold())
	assert.Equal(t, DefaultLockoutDuration, g.Duration())

	g = NewLockoutGuard(memory.NewLockoutStore(), zerolog.Nop(),
		WithLockoutThreshold(10), WithLockoutDuration(time.Hour))
	assert.Equal(t, 10, g.Threshold())
	assert.Equal(t, time.Hour, g.Duration())
}
