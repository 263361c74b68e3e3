package domain

import "time"

const (
	DefaultSessionTimeout = 30 * time.Minute
	DefaultSessionWarning = 2 * time.Minute
)

// Session is the live activity window of an authenticated identity.
type Session struct {
	ID           string    `json:"id"`
	Identity     Identity  `json:"identity"`
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
	// Warned is set once a warning event has been raised for the current
	// idle period and cleared again by activity.
	Warned bool `json:"warned,omitempty"`
}

// IsExpired reports whether at least timeout has passed since the last activity.
func (s *Session) IsExpired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) >= timeout
}

// ExpiresAt is the instant the session expires if left idle.
func (s *Session) ExpiresAt(timeout time.Duration) time.Time {
	return s.LastActivity.Add(timeout)
}

// Remaining returns the idle time left, never negative.
func (s *Session) Remaining(now time.Time, timeout time.Duration) time.Duration {
	left := s.ExpiresAt(timeout).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// InWarningWindow reports whether the session is still alive but within
// window of its expiry.
func (s *Session) InWarningWindow(now time.Time, timeout, window time.Duration) bool {
	if s.IsExpired(now, timeout) {
		return false
	}
	return s.Remaining(now, timeout) <= window
}

// SessionEventType classifies a session lifecycle notification.
type SessionEventType string

const (
	SessionEventWarning  SessionEventType = "session_warning"
	SessionEventExpired  SessionEventType = "session_expired"
	SessionEventExtended SessionEventType = "session_extended"
	SessionEventEnded    SessionEventType = "session_ended"
)

// SessionEvent is pushed to the client owning a session.
type SessionEvent struct {
	Type      SessionEventType `json:"type"`
	SessionID string           `json:"session_id"`
	ExpiresAt time.Time        `json:"expires_at"`
	// RemainingSeconds is the idle time left when the event was raised.
	RemainingSeconds int64     `json:"remaining_seconds"`
	Timestamp        time.Time `json:"timestamp"`
}
