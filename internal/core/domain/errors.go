package domain

import "errors"

// Authentication outcomes. ErrInvalidCredentials covers an
// unknown user, an inactive account and a wrong password alike.
var (
	ErrInvalidInput       = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account locked due to too many failed attempts")
	ErrStoreUnavailable   = errors.New("credential store unavailable")
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrForbidden       = errors.New("access forbidden")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrInvalidRole     = errors.New("invalid role")
	ErrInvalidUsername = errors.New("username must be 1-50 characters without whitespace")
	ErrWeakPassword    = errors.New("password does not meet requirements")
)
