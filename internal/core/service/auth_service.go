package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/hms/hospital-auth/internal/core/domain"
	"github.com/hms/hospital-auth/internal/core/ports"
	"github.com/hms/hospital-auth/internal/pkg/password"
)

// PasswordHasher abstracts the salted adaptive hash.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
	// NeedsRehash reports whether hash was made with outdated parameters.
	NeedsRehash(hash string) bool
}

// LastLoginRecorder persists last_login off the request path.
type LastLoginRecorder interface {
	RecordLastLogin(userID string, at time.Time)
}

// PasswordUpgrader replaces an outdated hash off the request path. The new
// hash is stored only if current is still the user's hash.
type PasswordUpgrader interface {
	UpgradePasswordHash(userID, current string, hash func() (string, error))
}

// AuthService implements login, logout and password change.
type AuthService struct {
	repo      ports.CredentialRepository
	hasher    PasswordHasher
	guard     *LockoutGuard
	userGuard *LockoutGuard
	sessions  *SessionTracker
	lastLogin LastLoginRecorder
	upgrader  PasswordUpgrader
	audit     *auditRecorder
	jwtSecret string
	tokenTTL  time.Duration
	now       Clock
	log       zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	Repo   ports.CredentialRepository
	Hasher PasswordHasher
	// Guard counts failures per login interaction.
	Guard *LockoutGuard
	// UserGuard, when set, also counts failures per username so that rotating
	// the form key or address cannot avoid a lock.
	UserGuard *LockoutGuard
	Sessions  *SessionTracker
	LastLogin LastLoginRecorder
	Upgrader  PasswordUpgrader
	Audit     ports.AuditRepository
	JWTSecret string
	// TokenTTL bounds the bearer token's life; the session's idle timeout
	// still applies within it.
	TokenTTL time.Duration
	Clock    Clock
	Log      zerolog.Logger
}

func NewAuthService(d AuthDeps) *AuthService {
	if d.TokenTTL <= 0 {
		d.TokenTTL = 12 * time.Hour
	}
	if d.Clock == nil {
		d.Clock = systemClock
	}
	return &AuthService{
		repo:      d.Repo,
		hasher:    d.Hasher,
		guard:     d.Guard,
		userGuard: d.UserGuard,
		sessions:  d.Sessions,
		lastLogin: d.LastLogin,
		upgrader:  d.Upgrader,
		audit:     newAuditRecorder(d.Audit, d.Log),
		jwtSecret: d.JWTSecret,
		tokenTTL:  d.TokenTTL,
		now:       d.Clock,
		log:       d.Log,
	}
}

// Login runs the lockout guards, authenticates, and establishes a session.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || strings.TrimSpace(in.Password) == "" {
		return nil, domain.ErrInvalidInput
	}

	keys := lockKeys{
		interaction: lockoutKey(in, username),
		account:     accountKey(username),
	}
	if err := s.checkLock(ctx, s.guard, keys.interaction, username); err != nil {
		return nil, err
	}
	if err := s.checkLock(ctx, s.userGuard, keys.account, username); err != nil {
		return nil, err
	}

	user, err := s.Authenticate(ctx, username, in.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.recordFailure(ctx, keys, username, in.IPAddress)
		}
		return nil, err
	}

	s.resetLock(ctx, s.guard, keys.interaction)
	s.resetLock(ctx, s.userGuard, keys.account)

	sess, err := s.sessions.Establish(ctx, user.Identity())
	if err != nil {
		s.log.Error().Err(err).Str("username", username).Msg("session store failure")
		return nil, domain.ErrStoreUnavailable
	}

	token, err := s.generateToken(user, sess)
	if err != nil {
		_ = s.sessions.Clear(ctx, sess.ID)
		return nil, fmt.Errorf("sign token: %w", err)
	}

	now := s.now()
	if s.lastLogin != nil {
		s.lastLogin.RecordLastLogin(user.ID, now)
	}
	s.upgradeHash(user, in.Password)

	s.audit.record(ctx, &domain.AuditEvent{
		UserID:      user.ID,
		Username:    user.Username,
		EventType:   domain.AuditLoginSuccess,
		Description: "Login successful",
		IPAddress:   in.IPAddress,
		Timestamp:   now,
	})
	s.log.Info().Str("username", user.Username).Str("role", string(user.Role)).Msg("login successful")

	return &ports.LoginResult{
		Token:     token,
		User:      user,
		Session:   sess,
		ExpiresAt: sess.ExpiresAt(s.sessions.Timeout()),
	}, nil
}

// lockKeys names the counters one login attempt is charged to.
type lockKeys struct {
	interaction string
	account     string
}

// checkLock maps a guard's verdict to the login error kinds. A nil guard
// never locks.
func (s *AuthService) checkLock(ctx context.Context, g *LockoutGuard, key, username string) error {
	if g == nil {
		return nil
	}
	if _, err := g.Check(ctx, key); err != nil {
		if errors.Is(err, domain.ErrAccountLocked) {
			s.log.Info().Str("username", username).Str("lockout_key", key).Msg("attempt blocked: locked")
			return domain.ErrAccountLocked
		}
		s.log.Error().Err(err).Str("lockout_key", key).Msg("lockout store failure")
		return domain.ErrStoreUnavailable
	}
	return nil
}

func (s *AuthService) countFailure(ctx context.Context, g *LockoutGuard, key string) LockoutStatus {
	if g == nil {
		return LockoutStatus{State: LockoutOpen}
	}
	st, err := g.RecordFailure(ctx, key)
	if err != nil {
		s.log.Error().Err(err).Str("lockout_key", key).Msg("failed to record failure")
	}
	return st
}

func (s *AuthService) resetLock(ctx context.Context, g *LockoutGuard, key string) {
	if g == nil {
		return
	}
	if err := g.Reset(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("lockout_key", key).Msg("failed to reset lockout counter")
	}
}

// upgradeHash queues a rehash when the stored hash uses outdated parameters.
func (s *AuthService) upgradeHash(user *domain.User, plain string) {
	if s.upgrader == nil || !s.hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	s.upgrader.UpgradePasswordHash(user.ID, user.PasswordHash, func() (string, error) {
		return s.hasher.Hash(plain)
	})
}

// Authenticate checks a username/password pair against the credential store.
// Unknown, inactive and wrong-password cases all return
// domain.ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, username, plain string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(plain) == "" {
		return nil, domain.ErrInvalidInput
	}

	user, err := s.repo.FindActiveByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Burn a hash comparison so unknown users cost the same as known ones.
			s.hasher.Verify(plain, s.dummy())
			return nil, domain.ErrInvalidCredentials
		}
		s.log.Error().Err(err).Str("username", username).Msg("credential lookup failed")
		return nil, domain.ErrStoreUnavailable
	}

	if !user.IsActive || !s.hasher.Verify(plain, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) recordFailure(ctx context.Context, keys lockKeys, username, ip string) {
	st := s.countFailure(ctx, s.guard, keys.interaction)
	ust := s.countFailure(ctx, s.userGuard, keys.account)

	s.audit.record(ctx, &domain.AuditEvent{
		Username:    username,
		EventType:   domain.AuditLoginFailure,
		Description: "Invalid username or password",
		IPAddress:   ip,
	})
	switch {
	case st.State == LockoutLocked:
		s.recordLocked(ctx, username, ip, fmt.Sprintf("Locked after %d failed attempts for %s", st.Failures, s.guard.Duration()))
	case ust.State == LockoutLocked:
		s.recordLocked(ctx, username, ip, fmt.Sprintf("Username locked after %d failed attempts for %s", ust.Failures, s.userGuard.Duration()))
	}
	s.log.Info().Str("username", username).Int("failures", st.Failures).Msg("login failed")
}

func (s *AuthService) recordLocked(ctx context.Context, username, ip, desc string) {
	s.audit.record(ctx, &domain.AuditEvent{
		Username:    username,
		EventType:   domain.AuditAccountLocked,
		Description: desc,
		IPAddress:   ip,
	})
}

// Logout clears the session and records the event.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.Resolve(ctx, sessionID, false)
	if err != nil && !errors.Is(err, domain.ErrSessionExpired) && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	if err := s.sessions.Clear(ctx, sessionID); err != nil {
		return err
	}
	if sess != nil {
		s.audit.record(ctx, &domain.AuditEvent{
			UserID:      sess.Identity.UserID,
			Username:    sess.Identity.Username,
			EventType:   domain.AuditLogout,
			Description: "User logged out",
		})
	}
	return nil
}

// ChangePassword replaces the caller's password after re-checking the current
// one. Wrong current passwords count toward the same lockout as logins.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	key := passwordChangeKey(userID)
	if err := s.checkLock(ctx, s.guard, key, userID); err != nil {
		return err
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, user.PasswordHash) {
		st := s.countFailure(ctx, s.guard, key)
		s.audit.record(ctx, &domain.AuditEvent{
			UserID:      user.ID,
			Username:    user.Username,
			EventType:   domain.AuditLoginFailure,
			Description: "Wrong current password on password change",
		})
		if st.State == LockoutLocked {
			s.recordLocked(ctx, user.Username, "", fmt.Sprintf("Password change locked after %d failed attempts for %s", st.Failures, s.guard.Duration()))
		}
		return domain.ErrInvalidCredentials
	}
	s.resetLock(ctx, s.guard, key)
	if err := password.Validate(next); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrWeakPassword, err)
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}

	s.audit.record(ctx, &domain.AuditEvent{
		UserID:      user.ID,
		Username:    user.Username,
		EventType:   domain.AuditPasswordChanged,
		Description: "Password changed by user",
	})
	return nil
}

func (s *AuthService) generateToken(user *domain.User, sess *domain.Session) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"sid":      sess.ID,
		"username": user.Username,
		"role":     string(user.Role),
		"iat":      now.Unix(),
		"exp":      now.Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("not-a-real-password")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// accountKey scopes the username backstop counter. Usernames are case
// sensitive for login, but variants of one name share a counter.
func accountKey(username string) string {
	return "account:" + strings.ToLower(username)
}

func passwordChangeKey(userID string) string {
	return "password:" + userID
}

// lockoutKey scopes the counter to the login form when the client identifies
// one, otherwise to the remote address, otherwise to the username.
func lockoutKey(in ports.LoginInput, username string) string {
	switch {
	case strings.TrimSpace(in.FormKey) != "":
		return "form:" + strings.TrimSpace(in.FormKey)
	case in.IPAddress != "":
		return "ip:" + in.IPAddress
	default:
		return "user:" + strings.ToLower(username)
	}
}
