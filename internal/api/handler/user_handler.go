package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hms/hospital-auth/internal/api/metrics"
	"github.com/hms/hospital-auth/internal/core/domain"
	"github.com/hms/hospital-auth/internal/core/ports"
)

// UserHandler serves the administrator's user management endpoints.
type UserHandler struct {
	users ports.UserService
}

func NewUserHandler(users ports.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,max=50,excludesall= "`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role"     validate:"required,role"`
	// Active defaults to true when omitted.
	Active *bool `json:"active,omitempty"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

type statusRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type renameRequest struct {
	Username string `json:"username" validate:"required,max=50,excludesall= "`
}

type passwordResetRequest struct {
	// Password is optional; when empty a temporary password is generated.
	Password string `json:"password,omitempty" validate:"omitempty,min=8,max=128"`
}

type passwordResetResponse struct {
	TemporaryPassword string `json:"temporary_password,omitempty"`
}

type listUsersResponse struct {
	Data  []*domain.User `json:"data"`
	Total int            `json:"total"`
}

// Create registers a new staff account.
//
// @Summary      Create user
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      createUserRequest  true  "New user"
// @Success      201   {object}  domain.User
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /v1/users [post]
func (h *UserHandler) Create(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req createUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	user, err := h.users.Create(c.Request().Context(), actor, ports.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
		Active:   active,
	})
	if err != nil {
		return err
	}
	metrics.UserAdminOpsTotal.WithLabelValues("create").Inc()
	return c.JSON(http.StatusCreated, user)
}

// List returns every account ordered by username.
//
// @Summary      List users
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  listUsersResponse
// @Failure      403  {object}  map[string]string
// @Router       /v1/users [get]
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.users.List(c.Request().Context())
	if err != nil {
		return err
	}
	if users == nil {
		users = []*domain.User{}
	}
	return c.JSON(http.StatusOK, listUsersResponse{Data: users, Total: len(users)})
}

// ChangeRole assigns a new role. Admins cannot change their own role.
//
// @Summary      Change role
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Param        id    path  string       true  "User ID"
// @Param        body  body  roleRequest  true  "New role"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /v1/users/{id}/role [patch]
func (h *UserHandler) ChangeRole(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req roleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.users.ChangeRole(c.Request().Context(), actor, c.Param("id"), req.Role); err != nil {
		return err
	}
	metrics.UserAdminOpsTotal.WithLabelValues("role").Inc()
	return c.NoContent(http.StatusNoContent)
}

// SetStatus activates or deactivates an account. Inactive accounts cannot log in.
//
// @Summary      Activate or deactivate user
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Param        id    path  string         true  "User ID"
// @Param        body  body  statusRequest  true  "Desired state"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /v1/users/{id}/status [patch]
func (h *UserHandler) SetStatus(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.users.SetActive(c.Request().Context(), actor, c.Param("id"), *req.Active); err != nil {
		return err
	}
	metrics.UserAdminOpsTotal.WithLabelValues("status").Inc()
	return c.NoContent(http.StatusNoContent)
}

// Rename changes an account's username.
//
// @Summary      Rename user
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Param        id    path  string         true  "User ID"
// @Param        body  body  renameRequest  true  "New username"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /v1/users/{id}/username [patch]
func (h *UserHandler) Rename(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req renameRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.users.Rename(c.Request().Context(), actor, c.Param("id"), req.Username); err != nil {
		return err
	}
	metrics.UserAdminOpsTotal.WithLabelValues("rename").Inc()
	return c.NoContent(http.StatusNoContent)
}

// Delete removes an account. Admins cannot delete themselves.
//
// @Summary      Delete user
// @Tags         users
// @Security     BearerAuth
// @Param        id  path  string  true  "User ID"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /v1/users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	if err := h.users.Delete(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	metrics.UserAdminOpsTotal.WithLabelValues("delete").Inc()
	return c.NoContent(http.StatusNoContent)
}

// ResetPassword sets a user's password. Without a body password a temporary
// one is generated and returned once.
//
// @Summary      Reset password
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id    path      string                true   "User ID"
// @Param        body  body      passwordResetRequest  false  "Optional new password"
// @Success      200   {object}  passwordResetResponse
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /v1/users/{id}/password-reset [post]
func (h *UserHandler) ResetPassword(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req passwordResetRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	tmp, err := h.users.ResetPassword(c.Request().Context(), actor, c.Param("id"), req.Password)
	if err != nil {
		return err
	}
	metrics.UserAdminOpsTotal.WithLabelValues("password_reset").Inc()
	return c.JSON(http.StatusOK, passwordResetResponse{TemporaryPassword: tmp})
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
