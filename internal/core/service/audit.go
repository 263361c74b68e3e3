package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/hms/hospital-auth/internal/core/domain"
	"github.com/hms/hospital-auth/internal/core/ports"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// auditRecorder writes audit events. Failures are logged, never returned:
// the audit trail must not turn a completed action into an error.
type auditRecorder struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

func newAuditRecorder(repo ports.AuditRepository, log zerolog.Logger) *auditRecorder {
	return &auditRecorder{repo: repo, log: log}
}

func (a *auditRecorder) record(ctx context.Context, ev *domain.AuditEvent) {
	if a == nil || a.repo == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = ksuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := a.repo.Insert(ctx, ev); err != nil {
		a.log.Warn().Err(err).Str("event_type", string(ev.EventType)).Msg("failed to write audit event")
	}
}

// AuditService reads the audit trail.
type AuditService struct {
	repo ports.AuditRepository
}

func NewAuditService(repo ports.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// List clamps the page size and returns newest events first.
func (s *AuditService) List(ctx context.Context, filter ports.AuditFilter) ([]*domain.AuditEvent, error) {
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultAuditLimit
	case filter.Limit > maxAuditLimit:
		filter.Limit = maxAuditLimit
	}
	return s.repo.List(ctx, filter)
}
