package ports

import (
	"context"
	"time"

	"github.com/hms/hospital-auth/internal/core/domain"
)

// LoginInput carries one login interaction.
type LoginInput struct {
	Username string
	Password string
	// FormKey scopes the lockout counter to a single login form.
	FormKey   string
	IPAddress string
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string
	User      *domain.User
	Session   *domain.Session
	ExpiresAt time.Time
}

// AuthService authenticates users and manages their sessions.
type AuthService interface {
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	ChangePassword(ctx context.Context, userID, current, next string) error
}

// SessionService resolves and refreshes sessions for authenticated requests.
type SessionService interface {
	// Resolve loads a live session, refreshing its activity when touch is set.
	Resolve(ctx context.Context, sessionID string, touch bool) (*domain.Session, error)
	Touch(ctx context.Context, sessionID string) (*domain.Session, error)
	Timeout() time.Duration
}
