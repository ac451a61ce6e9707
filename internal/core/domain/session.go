package domain

import "time"

const (
	RoleAdmin = "Admin"
	RoleStaff = "Staff"
)

// SessionState is the lifecycle state of the gateway's session.
type SessionState string

const (
	StateLoggedOut  SessionState = "logged_out"
	StateActive     SessionState = "active"
	StateValidating SessionState = "validating"
)

// ClearReason tells the login page why a session was cleared. It replaces the
// redirect query parameters the station UIs used to pass around.
type ClearReason string

const (
	ReasonExpired  ClearReason = "expired"
	ReasonInactive ClearReason = "inactive"
	ReasonInvalid  ClearReason = "invalid"
	ReasonLogout   ClearReason = "logout"
)

// Session is the full client-held session record for the station. The
// persistent fields survive a gateway restart; SessionID and SessionExpiry are
// ephemeral and dropped when they lapse.
type Session struct {
	Username         string    `json:"username"`
	DisplayName      string    `json:"display_name"`
	Role             string    `json:"role"`
	AssignedBarangay string    `json:"assigned_barangay,omitempty"`
	LoggedIn         bool      `json:"logged_in"`
	LoginAt          time.Time `json:"login_at"`
	LastActivityAt   time.Time `json:"last_activity_at"`
	// SealedPwHash is the upstream password hash sealed at rest. The upstream
	// users/logs lookups require the hash on every call, so it cannot simply
	// be discarded after login.
	SealedPwHash []byte `json:"sealed_pw_hash,omitempty"`

	SessionID     string    `json:"session_id,omitempty"`
	SessionExpiry time.Time `json:"session_expiry,omitempty"`
}

// Complete reports whether every required field is present. A session that is
// not complete must be treated as logged out and cleared wholesale.
func (s *Session) Complete() bool {
	if s == nil {
		return false
	}
	return s.LoggedIn &&
		s.Username != "" &&
		s.SessionID != "" &&
		!s.LoginAt.IsZero() &&
		!s.LastActivityAt.IsZero()
}

// TouchActivity stamps the last-activity time. The timestamp never regresses.
func (s *Session) TouchActivity(now time.Time) {
	if now.After(s.LastActivityAt) {
		s.LastActivityAt = now
	}
}

// IdleFor returns how long the session has gone without detected activity.
func (s *Session) IdleFor(now time.Time) time.Duration {
	if s.LastActivityAt.IsZero() {
		return 0
	}
	return now.Sub(s.LastActivityAt)
}

// AgeAt returns the time elapsed since login.
func (s *Session) AgeAt(now time.Time) time.Duration {
	if s.LoginAt.IsZero() {
		return 0
	}
	return now.Sub(s.LoginAt)
}

// IsAdmin reports whether the session belongs to an Admin user.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

// Actor is the human-readable name used when tagging activity upstream.
func (s *Session) Actor() string {
	if s == nil {
		return ""
	}
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Username
}
