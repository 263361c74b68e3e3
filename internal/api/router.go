package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/hms/hospital-auth/docs"
	"github.com/hms/hospital-auth/internal/api/handler"
	"github.com/hms/hospital-auth/internal/api/middleware"
	"github.com/hms/hospital-auth/internal/core/domain"
	"github.com/hms/hospital-auth/internal/core/ports"
	"github.com/hms/hospital-auth/internal/infrastructure/notify"
)

// Deps is everything the router needs to build the handlers.
type Deps struct {
	Auth     ports.AuthService
	Sessions ports.SessionService
	Users    ports.UserService
	Audit    ports.AuditService
	Hub      *notify.Hub

	// Checks are the readiness probes, keyed by dependency name.
	Checks map[string]handler.Check

	JWTSecret       string
	LockoutDuration time.Duration

	// Registry receives the HTTP request metrics. Nil means the default
	// Prometheus registry.
	Registry *prometheus.Registry

	Log zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log, d.LockoutDuration)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.Logger(d.Log))
	e.Use(prometheusMiddleware(d.Registry))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(d.Auth, d.Sessions)
	sessionHandler := handler.NewSessionHandler(d.Sessions, d.Hub, d.Log)
	userHandler := handler.NewUserHandler(d.Users)
	auditHandler := handler.NewAuditHandler(d.Audit)
	authMiddleware := middleware.Auth(d.JWTSecret, d.Sessions)
	passiveAuth := middleware.AuthPassive(d.JWTSecret, d.Sessions)

	v1 := e.Group("/v1")

	// --- Auth routes ---
	v1.POST("/auth/login", authHandler.Login)
	v1.POST("/auth/logout", authHandler.Logout, authMiddleware)
	v1.GET("/auth/me", authHandler.Me, authMiddleware)
	v1.POST("/auth/password", authHandler.ChangePassword, authMiddleware)

	// --- Session routes ---
	v1.POST("/session/touch", sessionHandler.Touch, authMiddleware)
	v1.GET("/session/events", sessionHandler.Events, passiveAuth)

	// --- User management ---
	users := v1.Group("/users", authMiddleware, middleware.RequirePermission(domain.CapManageUsers))
	users.POST("", userHandler.Create)
	users.GET("", userHandler.List)
	users.PATCH("/:id/role", userHandler.ChangeRole)
	users.PATCH("/:id/status", userHandler.SetStatus)
	users.PATCH("/:id/username", userHandler.Rename)
	users.DELETE("/:id", userHandler.Delete)
	users.POST("/:id/password-reset", userHandler.ResetPassword)

	// --- Audit log ---
	v1.GET("/audit", auditHandler.List, authMiddleware, middleware.RequirePermission(domain.CapViewAuditLog))

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Checks)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Observability ---
	e.GET("/metrics", metricsHandler(d.Registry))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func prometheusMiddleware(reg *prometheus.Registry) echo.MiddlewareFunc {
	cfg := echoprometheus.MiddlewareConfig{
		Namespace: "hms_auth",
		Subsystem: "http",
		Skipper: func(c echo.Context) bool {
			// Scrapes and websocket streams are not counted.
			p := c.Path()
			return p == "/metrics" || p == "/v1/session/events"
		},
	}
	if reg != nil {
		cfg.Registerer = reg
	}
	return echoprometheus.NewMiddlewareWithConfig(cfg)
}

func metricsHandler(reg *prometheus.Registry) echo.HandlerFunc {
	if reg == nil {
		return echoprometheus.NewHandler()
	}
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg})
}
