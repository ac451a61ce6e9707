package ports

import (
	"context"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
)

// UserProfile is the user object shape the hosted-script backend returns.
type UserProfile struct {
	Username         string
	FullName         string
	Role             string
	AssignedBarangay string
}

// LoginResult is a successful login: the backend's user object plus the
// opaque session token it issued.
type LoginResult struct {
	User      UserProfile
	SessionID string
}

// RecordQuery filters the household listing.
type RecordQuery struct {
	Barangay string
	Search   string
}

// RecordPage is the raw tabular result of an upstream record fetch.
type RecordPage struct {
	Header []string
	Rows   []domain.Row
}

// Upstream is the hosted-script backend contract. Implementations must carry
// the caller's context deadline on every call and map transport failures,
// timeouts, and undecodable responses to domain.ErrUpstreamUnavailable.
type Upstream interface {
	Login(ctx context.Context, username, pwHash, deviceInfo string) (*LoginResult, error)
	ValidateSession(ctx context.Context, username, sessionID string) (bool, error)
	RenewSession(ctx context.Context, username, sessionID string) (string, error)
	Logout(ctx context.Context, username, sessionID string) error
	ForceLogout(ctx context.Context, username, actor string) error
	LogActivity(ctx context.Context, username, actor, action, details string) error

	FetchUser(ctx context.Context, username, pwHash string) (*UserProfile, error)
	ListUsers(ctx context.Context, username, pwHash string) ([]UserProfile, error)
	ListLogs(ctx context.Context, username, pwHash string) ([]domain.Activity, error)

	GetRecords(ctx context.Context, q RecordQuery) (*RecordPage, error)
	CreateRecord(ctx context.Context, fields map[string]string) error
	UpdateRecord(ctx context.Context, dataID string, fields map[string]string) error
	DeleteHousehold(ctx context.Context, dataID string) error
}
