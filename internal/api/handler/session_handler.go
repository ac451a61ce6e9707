package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
	"github.com/mdrrmo/evac-gateway/internal/core/ports"
)

// SessionLifecycle is what the handler needs from the session service: the
// lifecycle operations plus the reason the last session ended.
type SessionLifecycle interface {
	ports.SessionService
	LastClearReason() domain.ClearReason
}

// SessionHandler handles the session lifecycle endpoints.
type SessionHandler struct {
	sessions SessionLifecycle
}

func NewSessionHandler(sessions SessionLifecycle) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Login handles POST /v1/session/login.
//
// @Summary      Log in against the remote backend
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  authResponse
// @Failure      401   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /v1/session/login [post]
func (h *SessionHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	auth, err := h.sessions.Login(c.Request().Context(), req.Username, req.Password, req.DeviceName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authResponse{
		Token:   auth.Token,
		Session: toSessionResponse(auth.Session),
	})
}

// ForceLogin handles POST /v1/session/force-login: it terminates the session
// holding the account elsewhere and retries the login.
//
// @Summary      Force log in, terminating the other device's session
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  authResponse
// @Failure      401   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /v1/session/force-login [post]
func (h *SessionHandler) ForceLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	auth, err := h.sessions.ForceLogin(c.Request().Context(), req.Username, req.Password, req.DeviceName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authResponse{
		Token:   auth.Token,
		Session: toSessionResponse(auth.Session),
	})
}

// Logout handles POST /v1/session/logout.
//
// @Summary      Log out and clear all session state
// @Tags         session
// @Produce      json
// @Security     BearerAuth
// @Success      204
// @Router       /v1/session/logout [post]
func (h *SessionHandler) Logout(c echo.Context) error {
	if err := h.sessions.Logout(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Current handles GET /v1/session.
//
// @Summary      Get the active session
// @Tags         session
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/session [get]
func (h *SessionHandler) Current(c echo.Context) error {
	sess, err := h.sessions.Current(c.Request().Context())
	if err != nil {
		return err
	}
	resp := toSessionResponse(sess)
	return c.JSON(http.StatusOK, resp)
}

// Status handles GET /v1/session/status — the page-load check. It is
// deliberately unauthenticated: the login page polls it to learn why the
// previous session ended. A stale or partial record is cleared here.
//
// @Summary      Session status and last clear reason
// @Tags         session
// @Produce      json
// @Success      200  {object}  statusResponse
// @Router       /v1/session/status [get]
func (h *SessionHandler) Status(c echo.Context) error {
	sess, err := h.sessions.Initialize(c.Request().Context())
	if err != nil {
		if errors.Is(err, domain.ErrSessionExpired) || errors.Is(err, domain.ErrNotLoggedIn) {
			return c.JSON(http.StatusOK, statusResponse{
				State:       string(domain.StateLoggedOut),
				ClearReason: string(h.sessions.LastClearReason()),
			})
		}
		return err
	}

	resp := toSessionResponse(sess)
	return c.JSON(http.StatusOK, statusResponse{
		State:   string(h.sessions.State()),
		Session: &resp,
	})
}

// Validate handles POST /v1/session/validate — an immediate out-of-band
// validation tick, used by the UI on visibility change.
//
// @Summary      Validate the session against the backend now
// @Tags         session
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  validateResponse
// @Router       /v1/session/validate [post]
func (h *SessionHandler) Validate(c echo.Context) error {
	outcome, err := h.sessions.Validate(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, validateResponse{Outcome: string(outcome)})
}

// Renew handles POST /v1/session/renew.
//
// @Summary      Rotate the backend session token
// @Tags         session
// @Produce      json
// @Security     BearerAuth
// @Success      204
// @Router       /v1/session/renew [post]
func (h *SessionHandler) Renew(c echo.Context) error {
	if err := h.sessions.Renew(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
