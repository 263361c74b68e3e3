// Package jobs runs the periodic session expiry monitor.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hms/hospital-auth/internal/core/service"
)

// DefaultSchedule matches the one minute tick of the desktop client.
const DefaultSchedule = "@every 1m"

const tickTimeout = 30 * time.Second

// SessionSweeper expires idle sessions and raises warnings.
type SessionSweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

// CounterPruner drops lockout counters that are past their retention.
type CounterPruner interface {
	Prune(now time.Time) int
}

// Observer receives the outcome of each tick.
type Observer interface {
	ObserveSweep(res service.SweepResult, err error, took time.Duration)
}

// Monitor drives SessionSweeper on a cron schedule.
type Monitor struct {
	cron     *cron.Cron
	schedule string
	sweeper  SessionSweeper
	pruner   CounterPruner
	observer Observer
	now      func() time.Time
	log      zerolog.Logger
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithPruner also prunes in-memory lockout counters on every tick.
func WithPruner(p CounterPruner) Option {
	return func(m *Monitor) { m.pruner = p }
}

func WithObserver(o Observer) Option {
	return func(m *Monitor) { m.observer = o }
}

func NewMonitor(schedule string, sweeper SessionSweeper, log zerolog.Logger, opts ...Option) *Monitor {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	m := &Monitor{
		schedule: schedule,
		sweeper:  sweeper,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
	for _, opt := range opts {
		opt(m)
	}

	cl := cronLogger{log: log}
	m.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return m
}

// Start registers the tick and starts the scheduler.
func (m *Monitor) Start() error {
	if _, err := m.cron.AddFunc(m.schedule, m.tick); err != nil {
		return fmt.Errorf("schedule session monitor %q: %w", m.schedule, err)
	}
	m.cron.Start()
	m.log.Info().Str("schedule", m.schedule).Msg("session monitor started")
	return nil
}

// Stop halts the scheduler. The returned context is done once a running
// tick has finished.
func (m *Monitor) Stop() context.Context {
	return m.cron.Stop()
}

func (m *Monitor) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()
	m.RunOnce(ctx)
}

// RunOnce performs a single sweep.
func (m *Monitor) RunOnce(ctx context.Context) service.SweepResult {
	start := m.now()
	res, err := m.sweeper.Sweep(ctx)
	took := m.now().Sub(start)

	if err != nil {
		m.log.Error().Err(err).Msg("session sweep failed")
	} else if res.Warned > 0 || res.Expired > 0 {
		m.log.Info().
			Int("active", res.Active).
			Int("warned", res.Warned).
			Int("expired", res.Expired).
			Msg("session sweep")
	}
	if m.observer != nil {
		m.observer.ObserveSweep(res, err, took)
	}

	if m.pruner != nil {
		if n := m.pruner.Prune(m.now()); n > 0 {
			m.log.Debug().Int("pruned", n).Msg("lockout counters pruned")
		}
	}
	return res
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
