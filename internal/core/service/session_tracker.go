package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hospital-auth/internal/core/domain"
	"github.com/hms/hospital-auth/internal/core/ports"
)

// storeGrace keeps a session in the store slightly past its idle timeout so
// the monitor can still observe and report the expiry.
const storeGrace = 5 * time.Minute

// SweepResult summarizes one monitor tick.
type SweepResult struct {
	Active  int
	Warned  int
	Expired int
}

// SessionTracker owns session lifecycle: establish on login, touch on
// activity, expire after an idle timeout, clear on logout.
type SessionTracker struct {
	store    ports.SessionStore
	notifier ports.SessionNotifier
	audit    *auditRecorder
	timeout  time.Duration
	warning  time.Duration
	now      Clock
	log      zerolog.Logger
}

// SessionOption configures a SessionTracker.
type SessionOption func(*SessionTracker)

func WithSessionTimeout(d time.Duration) SessionOption {
	return func(t *SessionTracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

func WithSessionWarning(d time.Duration) SessionOption {
	return func(t *SessionTracker) {
		if d > 0 {
			t.warning = d
		}
	}
}

func WithSessionClock(c Clock) SessionOption {
	return func(t *SessionTracker) {
		if c != nil {
			t.now = c
		}
	}
}

// WithSessionNotifier routes warning and expiry events to n.
func WithSessionNotifier(n ports.SessionNotifier) SessionOption {
	return func(t *SessionTracker) {
		t.notifier = n
	}
}

// WithSessionAudit records expiries in the audit trail.
func WithSessionAudit(repo ports.AuditRepository) SessionOption {
	return func(t *SessionTracker) {
		if repo != nil {
			t.audit = newAuditRecorder(repo, t.log)
		}
	}
}

func NewSessionTracker(store ports.SessionStore, log zerolog.Logger, opts ...SessionOption) *SessionTracker {
	t := &SessionTracker{
		store:   store,
		timeout: domain.DefaultSessionTimeout,
		warning: domain.DefaultSessionWarning,
		now:     systemClock,
		log:     log,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.warning >= t.timeout {
		t.warning = t.timeout / 2
	}
	return t
}

func (t *SessionTracker) Timeout() time.Duration { return t.timeout }
func (t *SessionTracker) Warning() time.Duration { return t.warning }

// Establish starts a new session for identity.
func (t *SessionTracker) Establish(ctx context.Context, identity domain.Identity) (*domain.Session, error) {
	now := t.now()
	s := &domain.Session{
		ID:           uuid.NewString(),
		Identity:     identity,
		StartedAt:    now,
		LastActivity: now,
	}
	if err := t.store.Save(ctx, s, t.timeout+storeGrace); err != nil {
		return nil, fmt.Errorf("establish session: %w", err)
	}
	t.log.Info().Str("session_id", s.ID).Str("username", identity.Username).Msg("session established")
	return s, nil
}

// IsExpired reports whether s has been idle for at least the timeout.
func (t *SessionTracker) IsExpired(s *domain.Session) bool {
	return s.IsExpired(t.now(), t.timeout)
}

// Resolve returns the live session for id. An expired session is cleared and
// reported as domain.ErrSessionExpired.
func (t *SessionTracker) Resolve(ctx context.Context, id string, touch bool) (*domain.Session, error) {
	s, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.IsExpired(s) {
		t.expire(ctx, s)
		return nil, domain.ErrSessionExpired
	}
	if !touch {
		return s, nil
	}
	return t.refresh(ctx, s)
}

// Touch records activity on the session, cancelling any pending expiry warning.
func (t *SessionTracker) Touch(ctx context.Context, id string) (*domain.Session, error) {
	return t.Resolve(ctx, id, true)
}

func (t *SessionTracker) refresh(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	wasWarned := s.Warned
	s.LastActivity = t.now()
	s.Warned = false
	if err := t.store.Save(ctx, s, t.timeout+storeGrace); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	if wasWarned {
		t.notify(s, domain.SessionEventExtended)
	}
	return s, nil
}

// Clear ends the session. Clearing an unknown session is not an error.
func (t *SessionTracker) Clear(ctx context.Context, id string) error {
	if err := t.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if t.notifier != nil {
		now := t.now()
		t.notifier.Notify(domain.SessionEvent{
			Type:      domain.SessionEventEnded,
			SessionID: id,
			ExpiresAt: now,
			Timestamp: now,
		})
	}
	return nil
}

// ClearUser ends every session belonging to userID and returns how many
// were cleared.
func (t *SessionTracker) ClearUser(ctx context.Context, userID string) (int, error) {
	sessions, err := t.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear user sessions: %w", err)
	}
	n := 0
	for _, s := range sessions {
		if s.Identity.UserID != userID {
			continue
		}
		if err := t.Clear(ctx, s.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Sweep is the periodic expiry check: idle sessions are cleared and
// announced, sessions close to expiry get a single warning.
func (t *SessionTracker) Sweep(ctx context.Context) (SweepResult, error) {
	sessions, err := t.store.List(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("sweep sessions: %w", err)
	}

	var res SweepResult
	now := t.now()
	for _, s := range sessions {
		switch {
		case s.IsExpired(now, t.timeout):
			t.expire(ctx, s)
			res.Expired++
		case s.InWarningWindow(now, t.timeout, t.warning):
			res.Active++
			if s.Warned {
				continue
			}
			marked, err := t.store.MarkWarned(ctx, s.ID, s.LastActivity)
			if err != nil {
				t.log.Warn().Err(err).Str("session_id", s.ID).Msg("failed to flag session warning")
				continue
			}
			if !marked {
				// Touched or cleared since List; the next tick sees the new state.
				continue
			}
			s.Warned = true
			t.notify(s, domain.SessionEventWarning)
			res.Warned++
		default:
			res.Active++
		}
	}
	return res, nil
}

func (t *SessionTracker) expire(ctx context.Context, s *domain.Session) {
	if err := t.store.Delete(ctx, s.ID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		t.log.Warn().Err(err).Str("session_id", s.ID).Msg("failed to delete expired session")
	}
	t.notify(s, domain.SessionEventExpired)
	if t.audit != nil {
		t.audit.record(ctx, &domain.AuditEvent{
			UserID:      s.Identity.UserID,
			Username:    s.Identity.Username,
			EventType:   domain.AuditSessionExpired,
			Description: fmt.Sprintf("Session expired after %s idle", t.timeout),
		})
	}
	t.log.Info().Str("session_id", s.ID).Str("username", s.Identity.Username).Msg("session expired")
}

func (t *SessionTracker) notify(s *domain.Session, typ domain.SessionEventType) {
	if t.notifier == nil {
		return
	}
	now := t.now()
	t.notifier.Notify(domain.SessionEvent{
		Type:             typ,
		SessionID:        s.ID,
		ExpiresAt:        s.ExpiresAt(t.timeout),
		RemainingSeconds: int64(s.Remaining(now, t.timeout) / time.Second),
		Timestamp:        now,
	})
}
