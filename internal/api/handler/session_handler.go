package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hospital-auth/internal/core/ports"
	"github.com/hms/hospital-auth/internal/infrastructure/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type SessionHandler struct {
	sessions ports.SessionService
	hub      *notify.Hub
	log      zerolog.Logger
}

func NewSessionHandler(sessions ports.SessionService, hub *notify.Hub, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, hub: hub, log: log}
}

type sessionResponse struct {
	SessionID        string    `json:"session_id"`
	LastActivity     time.Time `json:"last_activity"`
	ExpiresAt        time.Time `json:"expires_at"`
	RemainingSeconds int64     `json:"remaining_seconds"`
}

// Touch records activity on the caller's session, pushing back its expiry.
// The Auth middleware has already touched the session; this endpoint exists
// so a client can answer an expiry warning without doing anything else.
//
// @Summary      Extend session
// @Tags         session
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  map[string]string
// @Router       /v1/session/touch [post]
func (h *SessionHandler) Touch(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}
	timeout := h.sessions.Timeout()
	return c.JSON(http.StatusOK, sessionResponse{
		SessionID:        sess.ID,
		LastActivity:     sess.LastActivity,
		ExpiresAt:        sess.ExpiresAt(timeout),
		RemainingSeconds: int64(sess.Remaining(time.Now(), timeout) / time.Second),
	})
}

// Events upgrades to a WebSocket that receives session_warning,
// session_extended, session_expired and session_ended events for the
// caller's session. The socket closes after expiry or logout.
//
// @Summary      Session event stream
// @Tags         session
// @Security     BearerAuth
// @Param        access_token  query  string  false  "Bearer token, for clients that cannot set headers"
// @Success      101
// @Failure      401  {object}  map[string]string
// @Router       /v1/session/events [get]
func (h *SessionHandler) Events(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return nil
	}
	h.hub.Serve(ws, sess.ID)
	return nil
}
