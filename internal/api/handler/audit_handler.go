package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hms/hospital-auth/internal/core/domain"
	"github.com/hms/hospital-auth/internal/core/ports"
)

type AuditHandler struct {
	audit ports.AuditService
}

func NewAuditHandler(audit ports.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

type auditQuery struct {
	UserID    string `query:"user_id"`
	EventType string `query:"event_type"`
	Limit     int    `query:"limit" validate:"gte=0,lte=500"`
}

type auditResponse struct {
	Data []*domain.AuditEvent `json:"data"`
}

// List returns the most recent audit events, newest first.
//
// @Summary      Audit log
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        user_id     query     string  false  "Filter by user ID"
// @Param        event_type  query     string  false  "Filter by event type, e.g. LOGIN_FAILURE"
// @Param        limit       query     int     false  "Max events (default 50, max 500)"
// @Success      200         {object}  auditResponse
// @Failure      400         {object}  map[string]string
// @Failure      403         {object}  map[string]string
// @Router       /v1/audit [get]
func (h *AuditHandler) List(c echo.Context) error {
	var q auditQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}

	events, err := h.audit.List(c.Request().Context(), ports.AuditFilter{
		UserID:    q.UserID,
		EventType: domain.AuditEventType(q.EventType),
		Limit:     q.Limit,
	})
	if err != nil {
		return err
	}
	if events == nil {
		events = []*domain.AuditEvent{}
	}
	return c.JSON(http.StatusOK, auditResponse{Data: events})
}
