package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
	"github.com/mdrrmo/evac-gateway/internal/core/ports"
	"github.com/mdrrmo/evac-gateway/internal/infrastructure/secrets"
)

type memStore struct {
	mu   sync.Mutex
	sess *domain.Session
}

func (m *memStore) Get(context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil, domain.ErrNotLoggedIn
	}
	cp := *m.sess
	return &cp, nil
}

func (m *memStore) Put(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sess = &cp
	return nil
}

func (m *memStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}

type memLog struct {
	mu     sync.Mutex
	events []domain.Activity
}

func (m *memLog) Append(_ context.Context, a domain.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, a)
	return nil
}

func (m *memLog) Recent(context.Context, int) ([]domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Activity(nil), m.events...), nil
}

func (m *memLog) Latest(context.Context) (*domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil, nil
	}
	last := m.events[len(m.events)-1]
	return &last, nil
}

func (m *memLog) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

type stubUpstream struct {
	mu sync.Mutex

	loginFn    func(username, pwHash string) (*ports.LoginResult, error)
	validateFn func() (bool, error)
	renewFn    func() (string, error)
	recordsFn  func(q ports.RecordQuery) (*ports.RecordPage, error)
	writeErr   error

	forceLogouts int
	logouts      int
	activities   []string
	writes       []string
}

func (s *stubUpstream) Login(_ context.Context, username, pwHash, _ string) (*ports.LoginResult, error) {
	if s.loginFn != nil {
		return s.loginFn(username, pwHash)
	}
	return &ports.LoginResult{
		User:      ports.UserProfile{Username: username, FullName: "Juana Dela Cruz", Role: domain.RoleStaff},
		SessionID: "sess-1",
	}, nil
}

func (s *stubUpstream) ValidateSession(context.Context, string, string) (bool, error) {
	if s.validateFn != nil {
		return s.validateFn()
	}
	return true, nil
}

func (s *stubUpstream) RenewSession(context.Context, string, string) (string, error) {
	if s.renewFn != nil {
		return s.renewFn()
	}
	return "", nil
}

func (s *stubUpstream) Logout(context.Context, string, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logouts++
	return nil
}

func (s *stubUpstream) ForceLogout(context.Context, string, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceLogouts++
	return nil
}

func (s *stubUpstream) LogActivity(_ context.Context, _, _, action, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = append(s.activities, action)
	return nil
}

func (s *stubUpstream) FetchUser(context.Context, string, string) (*ports.UserProfile, error) {
	return nil, domain.ErrUpstreamUnavailable
}

func (s *stubUpstream) ListUsers(context.Context, string, string) ([]ports.UserProfile, error) {
	return nil, nil
}

func (s *stubUpstream) ListLogs(context.Context, string, string) ([]domain.Activity, error) {
	return nil, nil
}

func (s *stubUpstream) GetRecords(_ context.Context, q ports.RecordQuery) (*ports.RecordPage, error) {
	if s.recordsFn != nil {
		return s.recordsFn(q)
	}
	return nil, domain.ErrUpstreamUnavailable
}

func (s *stubUpstream) CreateRecord(context.Context, map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, "create")
	return s.writeErr
}

func (s *stubUpstream) UpdateRecord(_ context.Context, dataID string, _ map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, "update:"+dataID)
	return s.writeErr
}

func (s *stubUpstream) DeleteHousehold(_ context.Context, dataID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, "delete:"+dataID)
	return s.writeErr
}

func testPolicy() Policy {
	return Policy{
		IdleTimeout:         30 * time.Minute,
		GraceWindow:         5 * time.Minute,
		ActivityDebounce:    10 * time.Second,
		LogoutNotifyTimeout: time.Second,
		TokenTTL:            8 * time.Hour,
		ForceLogoutWait:     time.Millisecond,
	}
}

func newTestService(t *testing.T, up *stubUpstream) (*SessionService, *memStore, *memLog) {
	t.Helper()
	sealer, err := secrets.NewSealer("test-gateway-secret")
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	store := &memStore{}
	log := &memLog{}
	svc := NewSessionService(store, up, log, nil, sealer, testPolicy(), "jwt-secret", zerolog.Nop())
	return svc, store, log
}

func TestLoginStoresSessionAndIssuesToken(t *testing.T) {
	svc, store, _ := newTestService(t, &stubUpstream{})

	auth, err := svc.Login(context.Background(), "jdelacruz", "pass123", "station-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if auth.Session.Username != "jdelacruz" || auth.Session.SessionID != "sess-1" {
		t.Fatalf("unexpected session %+v", auth.Session)
	}
	if !auth.Session.LoggedIn {
		t.Fatal("session not marked logged in")
	}
	if store.sess == nil {
		t.Fatal("session not persisted")
	}
	if svc.State() != domain.StateActive {
		t.Fatalf("state = %s, want active", svc.State())
	}

	tok, err := jwt.Parse(auth.Token, func(*jwt.Token) (interface{}, error) {
		return []byte("jwt-secret"), nil
	})
	if err != nil || !tok.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	claims := tok.Claims.(jwt.MapClaims)
	if claims["username"] != "jdelacruz" || claims["role"] != domain.RoleStaff {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestLoginHashesPasswordBeforeSending(t *testing.T) {
	var sentHash string
	up := &stubUpstream{
		loginFn: func(username, pwHash string) (*ports.LoginResult, error) {
			sentHash = pwHash
			return &ports.LoginResult{User: ports.UserProfile{Username: username}, SessionID: "s"}, nil
		},
	}
	svc, _, _ := newTestService(t, up)

	if _, err := svc.Login(context.Background(), "u", "password", ""); err != nil {
		t.Fatalf("Login: %v", err)
	}
	// hex SHA-256 of "password"
	want := "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8"
	if sentHash != want {
		t.Fatalf("sent hash %q, want %q", sentHash, want)
	}
}

func TestLoginEmptyCredentials(t *testing.T) {
	svc, _, _ := newTestService(t, &stubUpstream{})
	if _, err := svc.Login(context.Background(), "", "", ""); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginConflictSurfaced(t *testing.T) {
	up := &stubUpstream{
		loginFn: func(string, string) (*ports.LoginResult, error) {
			return nil, &domain.ConflictError{Message: "already logged in elsewhere"}
		},
	}
	svc, store, _ := newTestService(t, up)

	_, err := svc.Login(context.Background(), "u", "p", "")
	if !errors.Is(err, domain.ErrSessionConflict) {
		t.Fatalf("err = %v, want ErrSessionConflict", err)
	}
	if store.sess != nil {
		t.Fatal("conflict must not leave a stored session")
	}
}

func TestForceLoginTerminatesThenRetries(t *testing.T) {
	up := &stubUpstream{}
	svc, _, _ := newTestService(t, up)

	auth, err := svc.ForceLogin(context.Background(), "u", "p", "station-1")
	if err != nil {
		t.Fatalf("ForceLogin: %v", err)
	}
	if up.forceLogouts != 1 {
		t.Fatalf("forceLogouts = %d, want 1", up.forceLogouts)
	}
	if auth.Session.SessionID != "sess-1" {
		t.Fatalf("unexpected session id %q", auth.Session.SessionID)
	}
}

func TestInitializeWithoutSession(t *testing.T) {
	svc, _, _ := newTestService(t, &stubUpstream{})
	if _, err := svc.Initialize(context.Background()); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if got := svc.LastClearReason(); got != domain.ReasonExpired {
		t.Fatalf("clear reason = %s, want expired", got)
	}
}

func TestInitializeExpiresByLoginAge(t *testing.T) {
	svc, store, _ := newTestService(t, &stubUpstream{})

	// Recent activity does not rescue a login past the timeout.
	base := time.Now()
	svc.now = func() time.Time { return base }
	store.sess = &domain.Session{
		Username:       "u",
		LoggedIn:       true,
		SessionID:      "s",
		LoginAt:        base.Add(-31 * time.Minute),
		LastActivityAt: base.Add(-time.Minute),
	}

	if _, err := svc.Initialize(context.Background()); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if store.sess != nil {
		t.Fatal("stale login not cleared")
	}
}

func TestInitializeAcceptsFreshSession(t *testing.T) {
	svc, store, _ := newTestService(t, &stubUpstream{})

	base := time.Now()
	svc.now = func() time.Time { return base }
	store.sess = &domain.Session{
		Username:       "u",
		LoggedIn:       true,
		SessionID:      "s",
		LoginAt:        base.Add(-10 * time.Minute),
		LastActivityAt: base.Add(-time.Minute),
	}

	sess, err := svc.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if sess.Username != "u" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if svc.State() != domain.StateActive {
		t.Fatalf("state = %s, want active", svc.State())
	}
}

func seedActive(svc *SessionService, store *memStore, at time.Time) {
	store.sess = &domain.Session{
		Username:       "u",
		DisplayName:    "User One",
		Role:           domain.RoleStaff,
		LoggedIn:       true,
		SessionID:      "s",
		LoginAt:        at,
		LastActivityAt: at,
	}
	svc.mu.Lock()
	svc.state = domain.StateActive
	svc.mu.Unlock()
}

func TestValidateSkippedWhenLoggedOut(t *testing.T) {
	svc, _, _ := newTestService(t, &stubUpstream{})
	out, err := svc.Validate(context.Background())
	if err != nil || out != ports.ValidationSkipped {
		t.Fatalf("outcome = %s err = %v, want skipped", out, err)
	}
}

func TestValidateSkippedWhileInFlight(t *testing.T) {
	svc, store, _ := newTestService(t, &stubUpstream{})
	seedActive(svc, store, time.Now())

	svc.validating.Store(true)
	out, err := svc.Validate(context.Background())
	if err != nil || out != ports.ValidationSkipped {
		t.Fatalf("outcome = %s err = %v, want skipped", out, err)
	}
}

func TestValidateTransientKeepsSession(t *testing.T) {
	up := &stubUpstream{
		validateFn: func() (bool, error) { return false, domain.ErrUpstreamUnavailable },
	}
	svc, store, _ := newTestService(t, up)
	seedActive(svc, store, time.Now())

	out, err := svc.Validate(context.Background())
	if err != nil || out != ports.ValidationTransient {
		t.Fatalf("outcome = %s err = %v, want transient", out, err)
	}
	if store.sess == nil {
		t.Fatal("transient failure must not clear the session")
	}
}

func TestValidateUnreachableHeldPastGraceWindow(t *testing.T) {
	up := &stubUpstream{
		validateFn: func() (bool, error) { return false, domain.ErrUpstreamUnavailable },
	}
	svc, store, _ := newTestService(t, up)

	base := time.Now()
	now := base
	svc.now = func() time.Time { return now }
	seedActive(svc, store, base)

	// Repeated transport failures well past the grace window still hold the
	// session. Only an explicit denial clears it.
	for i := 0; i < 4; i++ {
		out, err := svc.Validate(context.Background())
		if err != nil || out != ports.ValidationTransient {
			t.Fatalf("tick %d: outcome = %s err = %v, want transient", i, out, err)
		}
		now = now.Add(3 * time.Minute)
	}
	if store.sess == nil {
		t.Fatal("unreachable backend must not clear the session")
	}
}

func TestValidateDeniedClearsImmediately(t *testing.T) {
	up := &stubUpstream{
		validateFn: func() (bool, error) { return false, nil },
	}
	svc, store, _ := newTestService(t, up)

	// A denial one minute after login is still authoritative.
	base := time.Now()
	svc.now = func() time.Time { return base }
	seedActive(svc, store, base.Add(-time.Minute))

	out, err := svc.Validate(context.Background())
	if err != nil || out != ports.ValidationInvalid {
		t.Fatalf("outcome = %s err = %v, want invalid", out, err)
	}
	if store.sess != nil {
		t.Fatal("denied session not cleared")
	}
	if got := svc.LastClearReason(); got != domain.ReasonInvalid {
		t.Fatalf("clear reason = %s, want invalid", got)
	}
	if svc.State() != domain.StateLoggedOut {
		t.Fatalf("state = %s, want logged_out", svc.State())
	}
}

func TestValidateKeepsActivityRecordedMidFlight(t *testing.T) {
	base := time.Now()
	touched := base.Add(2 * time.Minute)

	up := &stubUpstream{}
	svc, store, _ := newTestService(t, up)
	svc.now = func() time.Time { return base.Add(3 * time.Minute) }
	seedActive(svc, store, base)

	// An activity write landing between the validation read and its
	// write-back must not be stomped by the stale copy.
	up.validateFn = func() (bool, error) {
		sess, err := store.Get(context.Background())
		if err != nil {
			t.Fatalf("Get during validation: %v", err)
		}
		sess.TouchActivity(touched)
		if err := store.Put(context.Background(), sess); err != nil {
			t.Fatalf("Put during validation: %v", err)
		}
		return true, nil
	}

	out, err := svc.Validate(context.Background())
	if err != nil || out != ports.ValidationValid {
		t.Fatalf("outcome = %s err = %v, want valid", out, err)
	}
	if !store.sess.LastActivityAt.Equal(touched) {
		t.Fatalf("LastActivityAt = %v after validation write-back, want %v", store.sess.LastActivityAt, touched)
	}
}

func TestExpireIfIdleClearsWithInactiveReason(t *testing.T) {
	svc, store, _ := newTestService(t, &stubUpstream{})

	base := time.Now()
	svc.now = func() time.Time { return base }
	seedActive(svc, store, base.Add(-45*time.Minute))

	if !svc.expireIfIdle(context.Background()) {
		t.Fatal("idle session not expired")
	}
	if got := svc.LastClearReason(); got != domain.ReasonInactive {
		t.Fatalf("clear reason = %s, want inactive", got)
	}

	// A second observer of the same expiry must not retrigger a transition.
	if svc.expireIfIdle(context.Background()) {
		t.Fatal("expiry fired twice")
	}
}

func TestRecordActivityDebounce(t *testing.T) {
	svc, store, log := newTestService(t, &stubUpstream{})

	base := time.Now()
	now := base
	svc.now = func() time.Time { return now }
	seedActive(svc, store, base)

	svc.RecordActivity(context.Background(), "Update Household", "E-0001")
	svc.RecordActivity(context.Background(), "Update Household", "E-0002")
	if got := log.count(); got != 1 {
		t.Fatalf("events = %d, want 1 (second call debounced)", got)
	}

	// Different action fires immediately.
	svc.RecordActivity(context.Background(), "Create Record", "")
	if got := log.count(); got != 2 {
		t.Fatalf("events = %d, want 2", got)
	}

	// Past the window the same action fires again.
	now = base.Add(11 * time.Second)
	svc.RecordActivity(context.Background(), "Update Household", "E-0003")
	if got := log.count(); got != 3 {
		t.Fatalf("events = %d, want 3", got)
	}
}

func TestRecordActivityAdvancesIdleClock(t *testing.T) {
	svc, store, _ := newTestService(t, &stubUpstream{})

	base := time.Now()
	svc.now = func() time.Time { return base.Add(5 * time.Minute) }
	seedActive(svc, store, base)

	svc.RecordActivity(context.Background(), "Update Household", "")
	if !store.sess.LastActivityAt.Equal(base.Add(5 * time.Minute)) {
		t.Fatalf("LastActivityAt = %v, want advanced", store.sess.LastActivityAt)
	}
}

func TestHeartbeatDoesNotCountAsActivity(t *testing.T) {
	svc, store, _ := newTestService(t, &stubUpstream{})

	base := time.Now()
	svc.now = func() time.Time { return base.Add(20 * time.Minute) }
	seedActive(svc, store, base)

	svc.Heartbeat(context.Background())
	if !store.sess.LastActivityAt.Equal(base) {
		t.Fatalf("heartbeat moved LastActivityAt to %v", store.sess.LastActivityAt)
	}
}

func TestRenewRotatesSessionID(t *testing.T) {
	up := &stubUpstream{
		renewFn: func() (string, error) { return "sess-2", nil },
	}
	svc, store, _ := newTestService(t, up)
	seedActive(svc, store, time.Now())

	if err := svc.Renew(context.Background()); err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if store.sess.SessionID != "sess-2" {
		t.Fatalf("SessionID = %q, want sess-2", store.sess.SessionID)
	}
}

func TestRenewDeclinedKeepsCurrentToken(t *testing.T) {
	svc, store, _ := newTestService(t, &stubUpstream{})
	seedActive(svc, store, time.Now())

	if err := svc.Renew(context.Background()); err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if store.sess.SessionID != "s" {
		t.Fatalf("SessionID = %q, want unchanged", store.sess.SessionID)
	}
}

func TestLogoutClearsAndNotifies(t *testing.T) {
	up := &stubUpstream{}
	svc, store, _ := newTestService(t, up)
	seedActive(svc, store, time.Now())

	if err := svc.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if store.sess != nil {
		t.Fatal("session survived logout")
	}
	if up.logouts != 1 {
		t.Fatalf("logouts = %d, want 1", up.logouts)
	}
	if got := svc.LastClearReason(); got != domain.ReasonLogout {
		t.Fatalf("clear reason = %s, want logout", got)
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t, &stubUpstream{})

	if _, err := svc.Login(context.Background(), "u", "password", ""); err != nil {
		t.Fatalf("Login: %v", err)
	}
	username, pwHash, err := svc.Credentials(context.Background())
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if username != "u" || pwHash != hashPassword("password") {
		t.Fatalf("unexpected credentials %q %q", username, pwHash)
	}
}
