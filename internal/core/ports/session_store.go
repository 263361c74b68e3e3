package ports

import (
	"context"
	"time"

	"github.com/hms/hospital-auth/internal/core/domain"
)

// SessionStore keeps live sessions. Get returns domain.ErrSessionNotFound
// for unknown or already evicted sessions.
type SessionStore interface {
	// Save creates or replaces a session. ttl bounds how long the store may
	// keep it without another Save.
	Save(ctx context.Context, s *domain.Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*domain.Session, error)
	// MarkWarned sets the warned flag only if the stored session still has
	// the given last activity. It reports false when the session was touched
	// or removed in the meantime. The stored expiry is left unchanged.
	MarkWarned(ctx context.Context, id string, lastActivity time.Time) (bool, error)
}

// SessionNotifier delivers lifecycle events to whoever owns the session.
// Implementations must not block.
type SessionNotifier interface {
	Notify(event domain.SessionEvent)
}
