package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hms/hospital-auth/internal/core/domain"
	"github.com/hms/hospital-auth/internal/core/ports"
	"github.com/hms/hospital-auth/internal/pkg/password"
)

const maxUsernameLen = 50

// SystemActor is recorded as the actor for changes made outside a session,
// such as seeding from the command line.
var SystemActor = domain.Identity{Username: "system", Role: domain.RoleAdmin}

// UserService implements administrator user management. Every password it
// stores goes through the hasher.
type UserService struct {
	repo     ports.CredentialRepository
	hasher   PasswordHasher
	audit    *auditRecorder
	sessions SessionClearer
	now      Clock
	log      zerolog.Logger
}

// SessionClearer ends the live sessions of one user.
type SessionClearer interface {
	ClearUser(ctx context.Context, userID string) (int, error)
}

// UserOption configures a UserService.
type UserOption func(*UserService)

// WithSessionClearer ends a user's sessions when the account is deactivated
// or deleted.
func WithSessionClearer(c SessionClearer) UserOption {
	return func(s *UserService) { s.sessions = c }
}

func NewUserService(repo ports.CredentialRepository, hasher PasswordHasher, audit ports.AuditRepository, log zerolog.Logger, opts ...UserOption) *UserService {
	s := &UserService{
		repo:   repo,
		hasher: hasher,
		audit:  newAuditRecorder(audit, log),
		now:    systemClock,
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *UserService) Create(ctx context.Context, actor domain.Identity, in ports.CreateUserInput) (*domain.User, error) {
	username, err := cleanUsername(in.Username)
	if err != nil {
		return nil, err
	}
	role, ok := domain.ParseRole(in.Role)
	if !ok {
		return nil, domain.ErrInvalidRole
	}
	if err := password.Validate(in.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWeakPassword, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, &domain.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     in.Active,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, domain.AuditUserCreated, fmt.Sprintf("User %s created with role %s", created.Username, created.Role))
	s.log.Info().Str("username", created.Username).Str("role", string(created.Role)).Str("actor", actor.Username).Msg("user created")
	return created, nil
}

// Seed creates the user unless the username already exists, in which case
// it reports created=false and leaves the record alone.
func (s *UserService) Seed(ctx context.Context, in ports.CreateUserInput) (*domain.User, bool, error) {
	existing, err := s.repo.FindByUsername(ctx, strings.TrimSpace(in.Username))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, err
	}
	u, err := s.Create(ctx, SystemActor, in)
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	return s.repo.List(ctx)
}

func (s *UserService) Rename(ctx context.Context, actor domain.Identity, id, username string) error {
	username, err := cleanUsername(username)
	if err != nil {
		return err
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateUsername(ctx, id, username); err != nil {
		return err
	}
	s.record(ctx, actor, domain.AuditUserRenamed, fmt.Sprintf("User %s renamed to %s", user.Username, username))
	return nil
}

func (s *UserService) ChangeRole(ctx context.Context, actor domain.Identity, id, role string) error {
	r, ok := domain.ParseRole(role)
	if !ok {
		return domain.ErrInvalidRole
	}
	if actor.UserID == id {
		return domain.ErrForbidden
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateRole(ctx, id, r); err != nil {
		return err
	}
	s.record(ctx, actor, domain.AuditRoleChanged, fmt.Sprintf("Role of %s changed from %s to %s", user.Username, user.Role, r))
	return nil
}

func (s *UserService) SetActive(ctx context.Context, actor domain.Identity, id string, active bool) error {
	if actor.UserID == id && !active {
		return domain.ErrForbidden
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, id, active); err != nil {
		return err
	}
	state := "deactivated"
	if active {
		state = "activated"
	}
	s.record(ctx, actor, domain.AuditStatusChanged, fmt.Sprintf("User %s %s", user.Username, state))
	if !active {
		s.endSessions(ctx, user)
	}
	return nil
}

func (s *UserService) Delete(ctx context.Context, actor domain.Identity, id string) error {
	if actor.UserID == id {
		return domain.ErrForbidden
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, domain.AuditUserDeleted, fmt.Sprintf("User %s deleted", user.Username))
	s.endSessions(ctx, user)
	return nil
}

// endSessions is best effort: the account change is already stored, and a
// session left behind still dies at its idle timeout.
func (s *UserService) endSessions(ctx context.Context, user *domain.User) {
	if s.sessions == nil {
		return
	}
	n, err := s.sessions.ClearUser(ctx, user.ID)
	if err != nil {
		s.log.Error().Err(err).Str("username", user.Username).Msg("failed to end user sessions")
		return
	}
	if n > 0 {
		s.log.Info().Str("username", user.Username).Int("sessions", n).Msg("user sessions ended")
	}
}

func (s *UserService) ResetPassword(ctx context.Context, actor domain.Identity, id, plain string) (string, error) {
	var generated string
	if plain == "" {
		tmp, err := password.Temporary()
		if err != nil {
			return "", err
		}
		plain, generated = tmp, tmp
	} else if err := password.Validate(plain); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrWeakPassword, err)
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return "", err
	}
	if err := s.repo.UpdatePasswordHash(ctx, id, hash); err != nil {
		return "", err
	}

	s.record(ctx, actor, domain.AuditPasswordReset, "Password reset for user: "+user.Username)
	return generated, nil
}

func (s *UserService) record(ctx context.Context, actor domain.Identity, typ domain.AuditEventType, desc string) {
	s.audit.record(ctx, &domain.AuditEvent{
		UserID:      actor.UserID,
		Username:    actor.Username,
		EventType:   typ,
		Description: desc,
		Timestamp:   s.now(),
	})
}

func cleanUsername(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxUsernameLen || strings.ContainsAny(s, " \t\r\n") {
		return "", domain.ErrInvalidUsername
	}
	return s, nil
}
