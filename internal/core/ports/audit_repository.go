package ports

import (
	"context"

	"github.com/hms/hospital-auth/internal/core/domain"
)

// AuditFilter narrows an audit log query. Zero values mean "any".
type AuditFilter struct {
	UserID    string
	EventType domain.AuditEventType
	Limit     int
}

// AuditRepository persists the security audit trail.
type AuditRepository interface {
	Insert(ctx context.Context, event *domain.AuditEvent) error
	// List returns the newest events first.
	List(ctx context.Context, filter AuditFilter) ([]*domain.AuditEvent, error)
}
