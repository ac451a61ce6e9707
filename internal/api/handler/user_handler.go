package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
	"github.com/mdrrmo/evac-gateway/internal/core/ports"
)

// UserDirectory serves the admin-only backend views.
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]ports.UserProfile, error)
	ListLogs(ctx context.Context) ([]domain.Activity, error)
}

// UserHandler handles the admin user directory and audit log endpoints.
type UserHandler struct {
	users UserDirectory
}

func NewUserHandler(users UserDirectory) *UserHandler {
	return &UserHandler{users: users}
}

type userResponse struct {
	Username         string `json:"username"`
	FullName         string `json:"full_name"`
	Role             string `json:"role"`
	AssignedBarangay string `json:"assigned_barangay,omitempty"`
}

// ListUsers handles GET /v1/users.
//
// @Summary      List backend user accounts
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   userResponse
// @Failure      403  {object}  errorResponse
// @Failure      502  {object}  errorResponse
// @Router       /v1/users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	users, err := h.users.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse{
			Username:         u.Username,
			FullName:         u.FullName,
			Role:             u.Role,
			AssignedBarangay: u.AssignedBarangay,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// ListLogs handles GET /v1/logs — the backend's audit trail.
//
// @Summary      List backend activity logs
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   activityResponse
// @Failure      403  {object}  errorResponse
// @Failure      502  {object}  errorResponse
// @Router       /v1/logs [get]
func (h *UserHandler) ListLogs(c echo.Context) error {
	logs, err := h.users.ListLogs(c.Request().Context())
	if err != nil {
		return err
	}

	out := make([]activityResponse, 0, len(logs))
	for _, entry := range logs {
		out = append(out, toActivityResponse(entry))
	}
	return c.JSON(http.StatusOK, out)
}
