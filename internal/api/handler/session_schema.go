package handler

import (
	"time"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request / Response types ---

type loginRequest struct {
	Username   string `json:"username"    validate:"required"`
	Password   string `json:"password"    validate:"required"`
	DeviceName string `json:"device_name"`
}

type sessionResponse struct {
	Username         string    `json:"username"`
	DisplayName      string    `json:"display_name"`
	Role             string    `json:"role"`
	AssignedBarangay string    `json:"assigned_barangay,omitempty"`
	LoginAt          time.Time `json:"login_at"`
	LastActivityAt   time.Time `json:"last_activity_at"`
	SessionExpiry    time.Time `json:"session_expiry,omitempty"`
}

type authResponse struct {
	Token   string          `json:"token"`
	Session sessionResponse `json:"session"`
}

type statusResponse struct {
	State       string           `json:"state"`
	ClearReason string           `json:"clear_reason,omitempty"`
	Session     *sessionResponse `json:"session,omitempty"`
}

type validateResponse struct {
	Outcome string `json:"outcome"`
}

// toSessionResponse strips the stored record down to what the UI may see.
// The session token and the sealed credential never leave the gateway.
func toSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		Username:         s.Username,
		DisplayName:      s.DisplayName,
		Role:             s.Role,
		AssignedBarangay: s.AssignedBarangay,
		LoginAt:          s.LoginAt,
		LastActivityAt:   s.LastActivityAt,
		SessionExpiry:    s.SessionExpiry,
	}
}
