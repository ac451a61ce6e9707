package ports

import (
	"context"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
)

// AuthResult is a completed login: the stored session plus the gateway's own
// bearer token for the local API.
type AuthResult struct {
	Session *domain.Session
	Token   string
}

// ValidationOutcome classifies one validation tick.
type ValidationOutcome string

const (
	ValidationValid     ValidationOutcome = "valid"
	ValidationInvalid   ValidationOutcome = "invalid"
	ValidationTransient ValidationOutcome = "transient"
	ValidationSkipped   ValidationOutcome = "skipped"
)

// SessionService owns the session lifecycle for the station.
type SessionService interface {
	// Initialize replays the protected-page load check: a missing or stale
	// record is cleared and reported as domain.ErrSessionExpired.
	Initialize(ctx context.Context) (*domain.Session, error)

	Login(ctx context.Context, username, password, deviceName string) (*AuthResult, error)
	// ForceLogin resolves an ErrSessionConflict: terminate the other device's
	// session upstream, then retry the login once.
	ForceLogin(ctx context.Context, username, password, deviceName string) (*AuthResult, error)
	Logout(ctx context.Context) error

	Current(ctx context.Context) (*domain.Session, error)
	Validate(ctx context.Context) (ValidationOutcome, error)
	RecordActivity(ctx context.Context, action, details string)

	Renew(ctx context.Context) error
	Heartbeat(ctx context.Context)
	State() domain.SessionState
}

// ActorSource exposes the current session's identity to collaborating
// services without handing them the whole lifecycle API.
type ActorSource interface {
	ActorInfo(ctx context.Context) (username, actor string, err error)
}

// CredentialSource hands out the unsealed password hash for the upstream
// lookups that demand it. Callers must never persist what they receive.
type CredentialSource interface {
	Credentials(ctx context.Context) (username, pwHash string, err error)
}
