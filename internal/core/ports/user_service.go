package ports

import (
	"context"

	"github.com/hms/hospital-auth/internal/core/domain"
)

// CreateUserInput carries a new credential record.
type CreateUserInput struct {
	Username string
	Password string
	Role     string
	Active   bool
}

// UserService is the administrator's user management surface.
// actor is the identity performing the change and is recorded in the audit trail.
type UserService interface {
	Create(ctx context.Context, actor domain.Identity, in CreateUserInput) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Rename(ctx context.Context, actor domain.Identity, id, username string) error
	ChangeRole(ctx context.Context, actor domain.Identity, id, role string) error
	SetActive(ctx context.Context, actor domain.Identity, id string, active bool) error
	Delete(ctx context.Context, actor domain.Identity, id string) error
	// ResetPassword sets a new password; an empty password generates a
	// temporary one, which is returned.
	ResetPassword(ctx context.Context, actor domain.Identity, id, password string) (string, error)
}

// AuditService reads the audit trail.
type AuditService interface {
	List(ctx context.Context, filter AuditFilter) ([]*domain.AuditEvent, error)
}
