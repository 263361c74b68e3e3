package ports

import (
	"context"
	"time"

	"github.com/hms/hospital-auth/internal/core/domain"
)

// CredentialRepository is the persisted username → credential mapping.
//
// Lookups return domain.ErrUserNotFound when no record matches. Any other
// error means the store itself could not be reached or queried.
type CredentialRepository interface {
	// FindActiveByUsername matches username exactly and requires is_active.
	FindActiveByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)

	// Create returns domain.ErrUserExists when the username is taken.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)

	UpdateUsername(ctx context.Context, id, username string) error
	UpdateRole(ctx context.Context, id string, role domain.Role) error
	UpdateStatus(ctx context.Context, id string, active bool) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	// ReplacePasswordHash stores next only if the current hash is still
	// current, returning domain.ErrUserNotFound otherwise.
	ReplacePasswordHash(ctx context.Context, id, current, next string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}
