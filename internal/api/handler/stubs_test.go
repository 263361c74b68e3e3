package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hms/hospital-auth/internal/api/middleware"
	"github.com/hms/hospital-auth/internal/core/domain"
	"github.com/hms/hospital-auth/internal/core/ports"
)

type stubAuthService struct {
	loginFn          func(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	changePasswordFn func(ctx context.Context, userID, current, next string) error
}

func (s *stubAuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	return s.loginFn(ctx, in)
}

func (s *stubAuthService) Logout(ctx context.Context, sessionID string) error {
	return s.logoutFn(ctx, sessionID)
}

func (s *stubAuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	return s.changePasswordFn(ctx, userID, current, next)
}

type stubSessionService struct {
	timeout time.Duration
}

func (s *stubSessionService) Resolve(context.Context, string, bool) (*domain.Session, error) {
	return nil, domain.ErrSessionNotFound
}

func (s *stubSessionService) Touch(context.Context, string) (*domain.Session, error) {
	return nil, domain.ErrSessionNotFound
}

func (s *stubSessionService) Timeout() time.Duration { return s.timeout }

type stubUserService struct {
	createFn func(ctx context.Context, actor domain.Identity, in ports.CreateUserInput) (*domain.User, error)
	listFn   func(ctx context.Context) ([]*domain.User, error)
	resetFn  func(ctx context.Context, actor domain.Identity, id, password string) (string, error)
	roleFn   func(ctx context.Context, actor domain.Identity, id, role string) error
	activeFn func(ctx context.Context, actor domain.Identity, id string, active bool) error
	renameFn func(ctx context.Context, actor domain.Identity, id, username string) error
	deleteFn func(ctx context.Context, actor domain.Identity, id string) error
}

func (s *stubUserService) Create(ctx context.Context, actor domain.Identity, in ports.CreateUserInput) (*domain.User, error) {
	return s.createFn(ctx, actor, in)
}

func (s *stubUserService) List(ctx context.Context) ([]*domain.User, error) {
	return s.listFn(ctx)
}

func (s *stubUserService) Rename(ctx context.Context, actor domain.Identity, id, username string) error {
	return s.renameFn(ctx, actor, id, username)
}

func (s *stubUserService) ChangeRole(ctx context.Context, actor domain.Identity, id, role string) error {
	return s.roleFn(ctx, actor, id, role)
}

func (s *stubUserService) SetActive(ctx context.Context, actor domain.Identity, id string, active bool) error {
	return s.activeFn(ctx, actor, id, active)
}

func (s *stubUserService) Delete(ctx context.Context, actor domain.Identity, id string) error {
	return s.deleteFn(ctx, actor, id)
}

func (s *stubUserService) ResetPassword(ctx context.Context, actor domain.Identity, id, password string) (string, error) {
	return s.resetFn(ctx, actor, id, password)
}

type stubAuditService struct {
	listFn func(ctx context.Context, filter ports.AuditFilter) ([]*domain.AuditEvent, error)
}

func (s *stubAuditService) List(ctx context.Context, filter ports.AuditFilter) ([]*domain.AuditEvent, error) {
	return s.listFn(ctx, filter)
}

var testAdmin = domain.Identity{UserID: "u-admin", Username: "admin", Role: domain.RoleAdmin}

// newContext builds an echo context with the validator installed and, when
// sess is non-nil, the values the Auth middleware would have set.
func newContext(method, target string, body io.Reader, sess *domain.Session) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if sess != nil {
		c.Set(middleware.IdentityKey, sess.Identity)
		c.Set(middleware.SessionKey, sess)
	}
	return c, rec
}

func adminSession() *domain.Session {
	now := time.Now()
	return &domain.Session{ID: "sess-1", Identity: testAdmin, StartedAt: now, LastActivity: now}
}
