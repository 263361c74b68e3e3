package domain

import "time"

// AuditEventType is the category of an audit log entry.
type AuditEventType string

const (
	AuditLoginSuccess    AuditEventType = "LOGIN_SUCCESS"
	AuditLoginFailure    AuditEventType = "LOGIN_FAILURE"
	AuditAccountLocked   AuditEventType = "ACCOUNT_LOCKED"
	AuditLogout          AuditEventType = "LOGOUT"
	AuditSessionExpired  AuditEventType = "SESSION_EXPIRED"
	AuditPasswordReset   AuditEventType = "PASSWORD_RESET"
	AuditPasswordChanged AuditEventType = "PASSWORD_CHANGED"
	AuditUserCreated     AuditEventType = "USER_CREATED"
	AuditUserRenamed     AuditEventType = "USER_RENAMED"
	AuditRoleChanged     AuditEventType = "ROLE_CHANGED"
	AuditStatusChanged   AuditEventType = "STATUS_CHANGED"
	AuditUserDeleted     AuditEventType = "USER_DELETED"
)

// AuditEvent is one row of the security audit trail.
type AuditEvent struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id,omitempty"`
	Username    string         `json:"username,omitempty"`
	EventType   AuditEventType `json:"event_type"`
	Description string         `json:"description"`
	IPAddress   string         `json:"ip_address,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
