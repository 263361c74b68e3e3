package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hms/hospital-auth/internal/core/domain"
)

// RequirePermission lets the request through only when the authenticated
// role grants capability. It must run after Auth.
func RequirePermission(capability domain.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
			}
			if !id.Can(capability) {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
