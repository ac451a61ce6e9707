package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mdrrmo/evac-gateway/internal/api/metrics"
	"github.com/mdrrmo/evac-gateway/internal/core/domain"
	"github.com/mdrrmo/evac-gateway/internal/core/ports"
	"github.com/mdrrmo/evac-gateway/internal/infrastructure/secrets"
)

// SessionService is the single source of truth for "is this station
// authenticated". It keeps the stored record synchronized with the remote
// authority and enforces the availability-over-strictness policy: transient
// upstream failures never force a logout.
type SessionService struct {
	store    ports.SessionStore
	upstream ports.Upstream
	activity ports.ActivityLog
	archive  ports.ActivityArchive
	sealer   *secrets.Sealer
	policy   Policy
	secret   string
	log      zerolog.Logger

	mu            sync.Mutex
	state         domain.SessionState
	lastClear     domain.ClearReason
	degradedSince time.Time

	validating atomic.Bool

	debounceMu sync.Mutex
	lastNotify map[string]time.Time

	now func() time.Time
}

var (
	_ ports.SessionService   = (*SessionService)(nil)
	_ ports.ActorSource      = (*SessionService)(nil)
	_ ports.CredentialSource = (*SessionService)(nil)
)

func NewSessionService(
	store ports.SessionStore,
	up ports.Upstream,
	activity ports.ActivityLog,
	archive ports.ActivityArchive,
	sealer *secrets.Sealer,
	policy Policy,
	gatewaySecret string,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		store:      store,
		upstream:   up,
		activity:   activity,
		archive:    archive,
		sealer:     sealer,
		policy:     policy.withDefaults(),
		secret:     gatewaySecret,
		state:      domain.StateLoggedOut,
		lastNotify: make(map[string]time.Time),
		log:        log,
		now:        time.Now,
	}
}

// hashPassword is the client-side hash the backend expects: hex SHA-256.
func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

// Initialize is the protected-page load check. Anything short of a complete,
// fresh record clears all state and reports ErrSessionExpired so the caller
// can send the user back to login.
func (s *SessionService) Initialize(ctx context.Context) (*domain.Session, error) {
	sess, err := s.store.Get(ctx)
	if err != nil {
		// Missing or partial: force a full clear so nothing half-written
		// survives, then report expired.
		s.clear(ctx, domain.ReasonExpired)
		return nil, domain.ErrSessionExpired
	}

	// The page-load check goes by login age. The idle ticker owns the
	// activity-based expiry once the session is live.
	if !sess.Complete() || sess.AgeAt(s.now()) > s.policy.IdleTimeout {
		s.clear(ctx, domain.ReasonExpired)
		return nil, domain.ErrSessionExpired
	}

	s.mu.Lock()
	s.state = domain.StateActive
	s.mu.Unlock()
	return sess, nil
}

func (s *SessionService) Login(ctx context.Context, username, password, deviceName string) (*ports.AuthResult, error) {
	if username == "" || password == "" {
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	pwHash := hashPassword(password)
	res, err := s.upstream.Login(ctx, username, pwHash, deviceInfoJSON(deviceName))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSessionConflict):
			metrics.LoginsTotal.WithLabelValues("conflict").Inc()
		case errors.Is(err, domain.ErrUpstreamUnavailable):
			metrics.LoginsTotal.WithLabelValues("unreachable").Inc()
		default:
			metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		}
		return nil, err
	}

	auth, err := s.establish(ctx, res, pwHash)
	if err != nil {
		return nil, err
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	s.notifyActivity(ctx, auth.Session, "User Login", "", "api")
	return auth, nil
}

// ForceLogin resolves an ALREADY_LOGGED_IN conflict: terminate the other
// device's session, give it a moment to notice, then retry the login once.
// The retried login must yield a fresh token — the rejected one is gone.
func (s *SessionService) ForceLogin(ctx context.Context, username, password, deviceName string) (*ports.AuthResult, error) {
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	if err := s.upstream.ForceLogout(ctx, username, username); err != nil {
		return nil, fmt.Errorf("force logout: %w", err)
	}

	select {
	case <-time.After(s.policy.ForceLogoutWait):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	auth, err := s.Login(ctx, username, password, deviceName)
	if err != nil {
		return nil, fmt.Errorf("login after force logout: %w", err)
	}
	metrics.LoginsTotal.WithLabelValues("forced").Inc()
	return auth, nil
}

func (s *SessionService) establish(ctx context.Context, res *ports.LoginResult, pwHash string) (*ports.AuthResult, error) {
	sealed, err := s.sealer.Seal([]byte(pwHash))
	if err != nil {
		return nil, fmt.Errorf("seal credentials: %w", err)
	}

	now := s.now()
	role := res.User.Role
	if role == "" {
		role = domain.RoleStaff
	}
	sess := &domain.Session{
		Username:         res.User.Username,
		DisplayName:      res.User.FullName,
		Role:             role,
		AssignedBarangay: res.User.AssignedBarangay,
		LoggedIn:         true,
		LoginAt:          now,
		LastActivityAt:   now,
		SealedPwHash:     sealed,
		SessionID:        res.SessionID,
		SessionExpiry:    now.Add(s.policy.TokenTTL),
	}

	if err := s.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	s.mu.Lock()
	s.state = domain.StateActive
	s.lastClear = ""
	s.degradedSince = time.Time{}
	s.mu.Unlock()

	token, err := s.generateToken(sess)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &ports.AuthResult{Session: sess, Token: token}, nil
}

// Logout notifies the backend best-effort — bounded, never blocking the
// local clear — then wipes all state.
func (s *SessionService) Logout(ctx context.Context) error {
	sess, err := s.store.Get(ctx)
	if err == nil {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.policy.LogoutNotifyTimeout)
		defer cancel()

		if err := s.upstream.LogActivity(notifyCtx, sess.Username, sess.Actor(), "User Logout", ""); err != nil {
			s.log.Debug().Err(err).Msg("logout activity notification failed")
		}
		if err := s.upstream.Logout(notifyCtx, sess.Username, sess.SessionID); err != nil {
			s.log.Debug().Err(err).Msg("logout notification failed")
		}
	}

	s.clear(ctx, domain.ReasonLogout)
	return nil
}

// clear wipes the session exactly once per lifecycle. Overlapping timers both
// observing an expiry produce a single transition.
func (s *SessionService) clear(ctx context.Context, reason domain.ClearReason) {
	s.mu.Lock()
	alreadyOut := s.state == domain.StateLoggedOut && s.lastClear != ""
	s.state = domain.StateLoggedOut
	if !alreadyOut {
		s.lastClear = reason
	}
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		s.log.Warn().Err(err).Msg("session clear failed")
	}
	if !alreadyOut {
		metrics.SessionClearsTotal.WithLabelValues(string(reason)).Inc()
		s.log.Info().Str("reason", string(reason)).Msg("session cleared")
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

// Validate performs one validation tick. Overlapping calls collapse: a tick
// arriving while another is in flight is skipped outright.
func (s *SessionService) Validate(ctx context.Context) (ports.ValidationOutcome, error) {
	if !s.validating.CompareAndSwap(false, true) {
		metrics.ValidationsTotal.WithLabelValues(string(ports.ValidationSkipped)).Inc()
		return ports.ValidationSkipped, nil
	}
	defer s.validating.Store(false)

	sess, err := s.store.Get(ctx)
	if err != nil {
		return ports.ValidationSkipped, nil
	}

	s.setState(domain.StateValidating)
	defer s.setState(domain.StateActive)

	valid, err := s.upstream.ValidateSession(ctx, sess.Username, sess.SessionID)
	if err != nil {
		// Unreachable or malformed: keep the local session alive and retry on
		// the next tick. Availability beats strictness on a flaky link, but a
		// degradation outlasting the grace window is loud instead of silent.
		now := s.now()
		s.mu.Lock()
		if s.degradedSince.IsZero() {
			s.degradedSince = now
		}
		degradedFor := now.Sub(s.degradedSince)
		s.mu.Unlock()

		metrics.ValidationsTotal.WithLabelValues(string(ports.ValidationTransient)).Inc()
		metrics.GraceHoldsTotal.Inc()
		if degradedFor > s.policy.GraceWindow {
			s.log.Warn().Err(err).Dur("degraded_for", degradedFor).Msg("validation backend unreachable past grace window, still holding session")
		} else {
			s.log.Debug().Err(err).Msg("validation unreachable, holding session")
		}
		return ports.ValidationTransient, nil
	}

	if !valid {
		// An explicit denial is authoritative. Only transport failures get
		// the grace treatment.
		metrics.ValidationsTotal.WithLabelValues(string(ports.ValidationInvalid)).Inc()
		s.clear(ctx, domain.ReasonInvalid)
		return ports.ValidationInvalid, nil
	}

	// A valid tick refreshes the cached profile but is not user activity:
	// the idle timestamp moves only on real actions. The record may have
	// moved while the round trips were in flight, so fold the refreshed
	// fields into a fresh read instead of writing the stale copy back.
	s.refreshProfile(ctx, sess)
	if cur, err := s.store.Get(ctx); err == nil {
		cur.DisplayName = sess.DisplayName
		cur.Role = sess.Role
		cur.AssignedBarangay = sess.AssignedBarangay
		if err := s.store.Put(ctx, cur); err != nil {
			s.log.Warn().Err(err).Msg("session refresh write failed")
		}
	}

	s.mu.Lock()
	s.degradedSince = time.Time{}
	s.mu.Unlock()

	metrics.ValidationsTotal.WithLabelValues(string(ports.ValidationValid)).Inc()
	return ports.ValidationValid, nil
}

// refreshProfile opportunistically re-reads the cached profile fields from the
// backend's user table. Failures are ignored — the stored copy stands.
func (s *SessionService) refreshProfile(ctx context.Context, sess *domain.Session) {
	pwHash, err := s.sealer.Open(sess.SealedPwHash)
	if err != nil {
		return
	}
	user, err := s.upstream.FetchUser(ctx, sess.Username, string(pwHash))
	if err != nil {
		return
	}
	if user.FullName != "" {
		sess.DisplayName = user.FullName
	}
	if user.Role != "" {
		sess.Role = user.Role
	}
	if user.AssignedBarangay != "" {
		sess.AssignedBarangay = user.AssignedBarangay
	}
}

// expireIfIdle is the idle-check tick: past the idle timeout the session is
// cleared wholesale.
func (s *SessionService) expireIfIdle(ctx context.Context) bool {
	sess, err := s.store.Get(ctx)
	if err != nil {
		return false
	}
	if sess.IdleFor(s.now()) <= s.policy.IdleTimeout {
		return false
	}
	s.clear(ctx, domain.ReasonInactive)
	return true
}

// ── Activity ──────────────────────────────────────────────────────────────────

// RecordActivity reports a named action: appended locally, archived, and
// notified upstream fire-and-forget. Identical actions inside the debounce
// window collapse to one notification. Never blocks the caller on the network.
func (s *SessionService) RecordActivity(ctx context.Context, action, details string) {
	sess, err := s.store.Get(ctx)
	if err != nil {
		return
	}

	if !s.debounce(action) {
		metrics.ActivityDebouncedTotal.Inc()
		return
	}

	now := s.now()
	sess.TouchActivity(now)
	if err := s.store.Put(ctx, sess); err != nil {
		s.log.Warn().Err(err).Msg("activity timestamp write failed")
	}

	s.notifyActivity(ctx, sess, action, details, "api")
}

// notifyActivity fans one event out to the local log, the archive, and the
// upstream. All three are best-effort.
func (s *SessionService) notifyActivity(ctx context.Context, sess *domain.Session, action, details, source string) {
	event := domain.Activity{
		ID:        uuid.NewString(),
		Username:  sess.Username,
		Actor:     sess.Actor(),
		Action:    action,
		Details:   details,
		Timestamp: s.now(),
	}
	metrics.ActivityEventsTotal.WithLabelValues(source).Inc()

	if err := s.activity.Append(ctx, event); err != nil {
		s.log.Debug().Err(err).Msg("activity append failed")
	}
	if s.archive != nil {
		if err := s.archive.Insert(ctx, event); err != nil {
			s.log.Debug().Err(err).Msg("activity archive failed")
		}
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.policy.LogoutNotifyTimeout)
	go func() {
		defer cancel()
		if err := s.upstream.LogActivity(notifyCtx, event.Username, event.Actor, event.Action, event.Details); err != nil {
			s.log.Debug().Err(err).Str("action", action).Msg("upstream activity notification failed")
		}
	}()
}

// debounce reports whether the action may fire now, stamping it if so.
func (s *SessionService) debounce(action string) bool {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()

	now := s.now()
	if last, ok := s.lastNotify[action]; ok && now.Sub(last) < s.policy.ActivityDebounce {
		return false
	}
	s.lastNotify[action] = now
	return true
}

// ── Renewal and heartbeat ─────────────────────────────────────────────────────

// Renew rotates the session token. A declined or failed renewal keeps the
// current token — renewal is opportunistic, never fatal.
func (s *SessionService) Renew(ctx context.Context) error {
	sess, err := s.store.Get(ctx)
	if err != nil {
		return nil
	}

	newID, err := s.upstream.RenewSession(ctx, sess.Username, sess.SessionID)
	if err != nil {
		s.log.Debug().Err(err).Msg("session renewal unreachable")
		return nil
	}
	if newID == "" || newID == sess.SessionID {
		return nil
	}

	sess.SessionID = newID
	sess.SessionExpiry = s.now().Add(s.policy.TokenTTL)
	if err := s.store.Put(ctx, sess); err != nil {
		return fmt.Errorf("store renewed session: %w", err)
	}
	s.log.Info().Msg("session token rotated")
	return nil
}

// Heartbeat tells the backend the session is alive. It deliberately does NOT
// touch the activity timestamp: a heartbeat is not user activity, and letting
// it count as such would defeat the idle timeout.
func (s *SessionService) Heartbeat(ctx context.Context) {
	sess, err := s.store.Get(ctx)
	if err != nil {
		return
	}
	metrics.ActivityEventsTotal.WithLabelValues("heartbeat").Inc()
	if err := s.upstream.LogActivity(ctx, sess.Username, sess.Actor(), "Active Session", ""); err != nil {
		s.log.Debug().Err(err).Msg("heartbeat failed")
	}
}

// ── Accessors ─────────────────────────────────────────────────────────────────

func (s *SessionService) Current(ctx context.Context) (*domain.Session, error) {
	return s.store.Get(ctx)
}

func (s *SessionService) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastClearReason reports why the most recent session ended, for the login
// page's banner.
func (s *SessionService) LastClearReason() domain.ClearReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastClear
}

func (s *SessionService) ActorInfo(ctx context.Context) (string, string, error) {
	sess, err := s.store.Get(ctx)
	if err != nil {
		return "", "", err
	}
	return sess.Username, sess.Actor(), nil
}

func (s *SessionService) Credentials(ctx context.Context) (string, string, error) {
	sess, err := s.store.Get(ctx)
	if err != nil {
		return "", "", err
	}
	pwHash, err := s.sealer.Open(sess.SealedPwHash)
	if err != nil {
		return "", "", domain.ErrNotLoggedIn
	}
	return sess.Username, string(pwHash), nil
}

func (s *SessionService) setState(state domain.SessionState) {
	s.mu.Lock()
	if s.state != domain.StateLoggedOut {
		s.state = state
	}
	s.mu.Unlock()
}

func (s *SessionService) generateToken(sess *domain.Session) (string, error) {
	claims := jwt.MapClaims{
		"username": sess.Username,
		"role":     sess.Role,
		"barangay": sess.AssignedBarangay,
		"exp":      s.now().Add(s.policy.TokenTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.secret))
}

func deviceInfoJSON(deviceName string) string {
	info := map[string]string{
		"deviceId":   uuid.NewString(),
		"deviceName": deviceName,
		"platform":   runtime.GOOS,
	}
	raw, _ := json.Marshal(info)
	return string(raw)
}
