package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/hms/hospital-auth/internal/api/handler"
	"github.com/hms/hospital-auth/internal/core/domain"
	"github.com/hms/hospital-auth/internal/infrastructure/notify"
)

const testSecret = "router-test-secret"

type fixedSessions struct {
	sess *domain.Session
}

func (s *fixedSessions) Resolve(_ context.Context, id string, _ bool) (*domain.Session, error) {
	if s.sess == nil || s.sess.ID != id {
		return nil, domain.ErrSessionNotFound
	}
	return s.sess, nil
}

func (s *fixedSessions) Touch(ctx context.Context, id string) (*domain.Session, error) {
	return s.Resolve(ctx, id, true)
}

func (s *fixedSessions) Timeout() time.Duration { return domain.DefaultSessionTimeout }

func newTestRouter(sessions *fixedSessions, checks map[string]handler.Check) http.Handler {
	return NewRouter(Deps{
		Sessions:        sessions,
		Hub:             notify.NewHub(zerolog.Nop()),
		Checks:          checks,
		JWTSecret:       testSecret,
		LockoutDuration: 15 * time.Minute,
		Registry:        prometheus.NewRegistry(),
		Log:             zerolog.Nop(),
	})
}

func tokenFor(t *testing.T, sess *domain.Session) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sess.Identity.UserID,
		"sid": sess.ID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func do(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter(&fixedSessions{}, nil)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/v1/auth/logout"},
		{http.MethodGet, "/v1/auth/me"},
		{http.MethodPost, "/v1/auth/password"},
		{http.MethodPost, "/v1/session/touch"},
		{http.MethodGet, "/v1/session/events"},
		{http.MethodGet, "/v1/users"},
		{http.MethodPost, "/v1/users"},
		{http.MethodDelete, "/v1/users/u1"},
		{http.MethodGet, "/v1/audit"},
	} {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			rec := do(r, route.method, route.path, "")
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestRouter_ClerkCannotManageUsers(t *testing.T) {
	clerk := &domain.Session{
		ID:           "s-clerk",
		Identity:     domain.Identity{UserID: "u-clerk", Username: "carl", Role: domain.RoleClerk},
		LastActivity: time.Now(),
	}
	r := newTestRouter(&fixedSessions{sess: clerk}, nil)
	token := tokenFor(t, clerk)

	if rec := do(r, http.MethodGet, "/v1/users", token); rec.Code != http.StatusForbidden {
		t.Fatalf("users: expected 403, got %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/v1/audit", token); rec.Code != http.StatusForbidden {
		t.Fatalf("audit: expected 403, got %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/v1/auth/me", token); rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rec.Code)
	}
}

func TestRouter_ExpiredSessionIs401(t *testing.T) {
	gone := &domain.Session{ID: "s-gone", Identity: domain.Identity{UserID: "u1", Role: domain.RoleNurse}}
	r := newTestRouter(&fixedSessions{}, nil)

	rec := do(r, http.MethodGet, "/v1/auth/me", tokenFor(t, gone))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "session expired") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	r := newTestRouter(&fixedSessions{}, map[string]handler.Check{
		"postgres": func(context.Context) error { return nil },
	})

	if rec := do(r, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/health/ready", ""); rec.Code != http.StatusOK {
		t.Fatalf("ready: expected 200, got %d", rec.Code)
	}

	rec := do(r, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "hms_auth_http_requests_total") {
		t.Fatalf("expected request metrics in scrape output")
	}
}
