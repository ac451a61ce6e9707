package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors. Code is
// set for errors the UI branches on (conflict resolution, redirect reasons).
type errorResponse struct {
	Error          string `json:"error"`
	Code           string `json:"code,omitempty"`
	SessionStarted string `json:"session_started,omitempty"`
	LastActivity   string `json:"last_activity,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, resp := resolveError(err, log, c)
		_ = c.JSON(code, resp)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	// A conflict carries the other device's session details so the UI can
	// offer a force login.
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		return http.StatusConflict, errorResponse{
			Error:          conflict.Error(),
			Code:           "already_logged_in",
			SessionStarted: conflict.SessionStarted,
			LastActivity:   conflict.LastActivity,
		}
	}

	// A backend rejection keeps the backend's own message.
	var rejected *domain.RejectedError
	if errors.As(err, &rejected) {
		return http.StatusUnprocessableEntity, errorResponse{Error: rejected.Message, Code: "rejected"}
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Error: "invalid credentials"}
	case errors.Is(err, domain.ErrNotLoggedIn):
		return http.StatusUnauthorized, errorResponse{Error: "not logged in", Code: "not_logged_in"}
	case errors.Is(err, domain.ErrSessionExpired):
		return http.StatusUnauthorized, errorResponse{Error: "session expired", Code: string(domain.ReasonExpired)}
	case errors.Is(err, domain.ErrSessionConflict):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "already_logged_in"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: "access forbidden", Code: "forbidden"}
	case errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound, errorResponse{Error: "record not found"}
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway, errorResponse{Error: "backend unreachable", Code: "upstream_unavailable"}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
}
