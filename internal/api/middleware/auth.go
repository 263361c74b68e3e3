package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/hms/hospital-auth/internal/core/domain"
	"github.com/hms/hospital-auth/internal/core/ports"
)

// Context keys set by Auth.
const (
	IdentityKey = "identity"
	SessionKey  = "session"
)

// Auth validates the bearer token, loads the session it names and records
// the request as activity on that session.
func Auth(jwtSecret string, sessions ports.SessionService) echo.MiddlewareFunc {
	return authenticate(jwtSecret, sessions, true)
}

// AuthPassive is Auth without the activity touch. Long-lived connections
// such as the session event stream use it so that merely listening does not
// keep a session alive. It also accepts the token as an access_token query
// parameter, since browsers cannot set headers on WebSocket upgrades.
func AuthPassive(jwtSecret string, sessions ports.SessionService) echo.MiddlewareFunc {
	return authenticate(jwtSecret, sessions, false)
}

func authenticate(jwtSecret string, sessions ports.SessionService, touch bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := bearerToken(c, !touch)
			if err != nil {
				return err
			}

			claims := jwt.MapClaims{}
			tkn, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
				if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !tkn.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			sid, _ := claims["sid"].(string)
			sub, _ := claims["sub"].(string)
			if sid == "" || sub == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			sess, err := sessions.Resolve(c.Request().Context(), sid, touch)
			if err != nil {
				if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrSessionExpired) {
					return domain.ErrSessionExpired
				}
				return errors.Join(domain.ErrStoreUnavailable, err)
			}
			if sess.Identity.UserID != sub {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(IdentityKey, sess.Identity)
			c.Set(SessionKey, sess)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context, allowQuery bool) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if allowQuery {
			if t := c.QueryParam("access_token"); t != "" {
				return t, nil
			}
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
	}
	return parts[1], nil
}

// IdentityFrom returns the identity stored by Auth.
func IdentityFrom(c echo.Context) (domain.Identity, bool) {
	id, ok := c.Get(IdentityKey).(domain.Identity)
	return id, ok
}

// SessionFrom returns the session stored by Auth.
func SessionFrom(c echo.Context) (*domain.Session, bool) {
	s, ok := c.Get(SessionKey).(*domain.Session)
	return s, ok && s != nil
}
