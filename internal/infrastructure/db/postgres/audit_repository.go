package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hms/hospital-auth/internal/core/domain"
	"github.com/hms/hospital-auth/internal/core/ports"
)

// AuditRepository implements ports.AuditRepository on the audit_log table.
type AuditRepository struct {
	db DB
}

func NewAuditRepository(db DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, ev *domain.AuditEvent) error {
	const query = `
		INSERT INTO audit_log (id, user_id, username, event_type, description, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		ev.ID,
		ev.UserID,
		ev.Username,
		string(ev.EventType),
		ev.Description,
		ev.IPAddress,
		ev.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (r *AuditRepository) List(ctx context.Context, f ports.AuditFilter) ([]*domain.AuditEvent, error) {
	query, args := buildAuditQuery(f)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []*domain.AuditEvent
	for rows.Next() {
		var (
			ev  domain.AuditEvent
			typ string
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Username, &typ, &ev.Description, &ev.IPAddress, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.EventType = domain.AuditEventType(typ)
		ev.Timestamp = ev.Timestamp.UTC()
		out = append(out, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}

func buildAuditQuery(f ports.AuditFilter) (string, []any) {
	var (
		b     strings.Builder
		conds []string
		args  []any
	)
	b.WriteString(`SELECT id, user_id, username, event_type, description, ip_address, created_at FROM audit_log`)

	if f.UserID != "" {
		args = append(args, f.UserID)
		conds = append(conds, "user_id = $"+strconv.Itoa(len(args)))
	}
	if f.EventType != "" {
		args = append(args, string(f.EventType))
		conds = append(conds, "event_type = $"+strconv.Itoa(len(args)))
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		b.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	return b.String(), args
}
