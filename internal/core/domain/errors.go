package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotLoggedIn        = errors.New("no active session")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionConflict    = errors.New("account already logged in elsewhere")
	ErrForbidden          = errors.New("access forbidden")
	ErrRecordNotFound     = errors.New("record not found")

	// ErrUpstreamUnavailable covers transport failures, timeouts, and
	// malformed responses from the hosted-script backend. Callers must treat
	// it as transient, never as "session invalid".
	ErrUpstreamUnavailable = errors.New("upstream unreachable")
)

// ConflictError carries the backend's description of the session already
// holding the account, so the login UI can offer a force-logout.
type ConflictError struct {
	Message        string
	SessionStarted string
	LastActivity   string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrSessionConflict.Error()
}

func (e *ConflictError) Unwrap() error { return ErrSessionConflict }

// RejectedError carries a non-transient upstream failure message verbatim.
// Record writes surface these to the user rather than failing silently.
type RejectedError struct {
	Action  string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "upstream rejected " + e.Action
	}
	return e.Message
}
