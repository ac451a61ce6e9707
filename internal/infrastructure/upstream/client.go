// Package upstream implements the hosted-script backend contract: form-encoded
// POSTs selected by an "action" field, plain GETs for read-only lookups, JSON
// responses. The backend is an opaque collaborator — the client conforms to
// its shapes and classifies failures, nothing more.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mdrrmo/evac-gateway/internal/api/metrics"
	"github.com/mdrrmo/evac-gateway/internal/core/domain"
	"github.com/mdrrmo/evac-gateway/internal/core/ports"
)

// Backend error codes the client maps to domain errors.
const (
	codeAlreadyLoggedIn = "ALREADY_LOGGED_IN"
	codeSessionExpired  = "SESSION_EXPIRED"
)

// Config captures the settings for reaching the hosted-script backend.
type Config struct {
	URL            string
	LoginTimeout   time.Duration
	RequestTimeout time.Duration
}

// Client talks to the hosted-script backend. All methods honour the caller's
// context and additionally cap each call with the configured timeout, since a
// hung call to the script host must always be abortable.
type Client struct {
	baseURL        string
	http           *http.Client
	loginTimeout   time.Duration
	requestTimeout time.Duration
	log            zerolog.Logger
}

var _ ports.Upstream = (*Client)(nil)

func NewClient(cfg Config, log zerolog.Logger) *Client {
	loginTimeout := cfg.LoginTimeout
	if loginTimeout <= 0 {
		loginTimeout = 30 * time.Second
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.URL, "/"),
		http:           &http.Client{},
		loginTimeout:   loginTimeout,
		requestTimeout: requestTimeout,
		log:            log,
	}
}

// ── Response envelopes ────────────────────────────────────────────────────────

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type userPayload struct {
	Username         string `json:"Username"`
	FullName         string `json:"FullName"`
	Role             string `json:"Role"`
	AssignedBarangay string `json:"AssignedBarangay"`
}

type loginResponse struct {
	statusResponse
	User           *userPayload `json:"user"`
	SessionID      string       `json:"sessionId"`
	SessionStarted string       `json:"sessionStarted"`
	LastActivity   string       `json:"lastActivity"`
}

type validateResponse struct {
	statusResponse
	IsLoggedIn bool `json:"isLoggedIn"`
}

type renewResponse struct {
	statusResponse
	NewSessionID string `json:"newSessionId"`
}

type usersResponse struct {
	Success bool          `json:"success"`
	Users   []userPayload `json:"users"`
}

type recordsResponse struct {
	Success bool                `json:"success"`
	Header  []string            `json:"header"`
	Rows    []map[string]string `json:"rows"`
}

type logPayload struct {
	Timestamp string `json:"Timestamp"`
	Username  string `json:"Username"`
	Actor     string `json:"Actor"`
	Action    string `json:"Action"`
	Details   string `json:"Details"`
}

type logsResponse struct {
	Success bool         `json:"success"`
	Logs    []logPayload `json:"logs"`
}

// ── Session operations ────────────────────────────────────────────────────────

func (c *Client) Login(ctx context.Context, username, pwHash, deviceInfo string) (*ports.LoginResult, error) {
	form := url.Values{}
	form.Set("action", "login")
	form.Set("username", username)
	form.Set("pwHash", pwHash)
	if deviceInfo != "" {
		form.Set("deviceInfo", deviceInfo)
	}

	var resp loginResponse
	if err := c.postForm(ctx, "login", c.loginTimeout, form, &resp); err != nil {
		return nil, err
	}

	if !resp.Success {
		switch resp.Code {
		case codeAlreadyLoggedIn:
			return nil, &domain.ConflictError{
				Message:        resp.Message,
				SessionStarted: resp.SessionStarted,
				LastActivity:   resp.LastActivity,
			}
		case codeSessionExpired:
			return nil, domain.ErrSessionExpired
		default:
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCredentials, resp.Message)
		}
	}
	if resp.User == nil || resp.SessionID == "" {
		return nil, fmt.Errorf("%w: login response missing user or session id", domain.ErrUpstreamUnavailable)
	}

	return &ports.LoginResult{
		User:      toProfile(*resp.User),
		SessionID: resp.SessionID,
	}, nil
}

// ValidateSession asks the backend whether the session is still live. A
// decoded response yields an explicit answer; everything else is transient.
func (c *Client) ValidateSession(ctx context.Context, username, sessionID string) (bool, error) {
	form := url.Values{}
	form.Set("action", "validateSession")
	form.Set("username", username)
	form.Set("sessionId", sessionID)

	var resp validateResponse
	if err := c.postForm(ctx, "validateSession", c.requestTimeout, form, &resp); err != nil {
		return false, err
	}
	return resp.Success && resp.IsLoggedIn, nil
}

// RenewSession rotates the session token. A declined renewal is not an error:
// the caller keeps the current token.
func (c *Client) RenewSession(ctx context.Context, username, sessionID string) (string, error) {
	form := url.Values{}
	form.Set("action", "renewSession")
	form.Set("username", username)
	form.Set("sessionId", sessionID)

	var resp renewResponse
	if err := c.postForm(ctx, "renewSession", c.requestTimeout, form, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.NewSessionID == "" {
		return "", nil
	}
	return resp.NewSessionID, nil
}

func (c *Client) Logout(ctx context.Context, username, sessionID string) error {
	form := url.Values{}
	form.Set("action", "logout")
	form.Set("username", username)
	form.Set("sessionId", sessionID)

	var resp statusResponse
	return c.postForm(ctx, "logout", c.requestTimeout, form, &resp)
}

func (c *Client) ForceLogout(ctx context.Context, username, actor string) error {
	form := url.Values{}
	form.Set("action", "forceLogout")
	form.Set("username", username)
	form.Set("actor", actor)

	var resp statusResponse
	if err := c.postForm(ctx, "forceLogout", c.requestTimeout, form, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &domain.RejectedError{Action: "forceLogout", Message: resp.Message}
	}
	return nil
}

// LogActivity reports a named action. The backend reads the first "action"
// value as the operation selector and the second as the event name, so both
// are sent under the same field in that order.
func (c *Client) LogActivity(ctx context.Context, username, actor, action, details string) error {
	form := url.Values{}
	form["action"] = []string{"logActivity", action}
	form.Set("username", username)
	form.Set("actor", actor)
	if details != "" {
		form.Set("details", details)
	}

	var resp statusResponse
	return c.postForm(ctx, "logActivity", c.requestTimeout, form, &resp)
}

// ── User and log lookups ──────────────────────────────────────────────────────

func (c *Client) FetchUser(ctx context.Context, username, pwHash string) (*ports.UserProfile, error) {
	users, err := c.ListUsers(ctx, username, pwHash)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (c *Client) ListUsers(ctx context.Context, username, pwHash string) ([]ports.UserProfile, error) {
	params := url.Values{}
	params.Set("action", "users")
	params.Set("username", username)
	params.Set("pwHash", pwHash)

	var resp usersResponse
	if err := c.getJSON(ctx, "users", params, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, domain.ErrForbidden
	}

	out := make([]ports.UserProfile, 0, len(resp.Users))
	for _, u := range resp.Users {
		out = append(out, toProfile(u))
	}
	return out, nil
}

func (c *Client) ListLogs(ctx context.Context, username, pwHash string) ([]domain.Activity, error) {
	params := url.Values{}
	params.Set("action", "logs")
	params.Set("username", username)
	params.Set("pwHash", pwHash)

	var resp logsResponse
	if err := c.getJSON(ctx, "logs", params, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, domain.ErrForbidden
	}

	out := make([]domain.Activity, 0, len(resp.Logs))
	for _, l := range resp.Logs {
		ts, _ := time.Parse(time.RFC3339, l.Timestamp)
		out = append(out, domain.Activity{
			Username:  l.Username,
			Actor:     l.Actor,
			Action:    l.Action,
			Details:   l.Details,
			Timestamp: ts,
		})
	}
	return out, nil
}

// ── Record operations ─────────────────────────────────────────────────────────

func (c *Client) GetRecords(ctx context.Context, q ports.RecordQuery) (*ports.RecordPage, error) {
	params := url.Values{}
	params.Set("action", "getRecords")
	params.Set("filterBarangay", q.Barangay)
	params.Set("filterStage", "")
	params.Set("q", q.Search)

	var resp recordsResponse
	if err := c.getJSON(ctx, "getRecords", params, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &domain.RejectedError{Action: "getRecords", Message: "record fetch rejected"}
	}

	rows := make([]domain.Row, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		rows = append(rows, domain.Row(r))
	}
	return &ports.RecordPage{Header: resp.Header, Rows: rows}, nil
}

func (c *Client) CreateRecord(ctx context.Context, fields map[string]string) error {
	return c.writeRecord(ctx, "createRecord", "", fields)
}

func (c *Client) UpdateRecord(ctx context.Context, dataID string, fields map[string]string) error {
	return c.writeRecord(ctx, "updateRecord", dataID, fields)
}

func (c *Client) DeleteHousehold(ctx context.Context, dataID string) error {
	return c.writeRecord(ctx, "deleteHousehold", dataID, nil)
}

func (c *Client) writeRecord(ctx context.Context, action, dataID string, fields map[string]string) error {
	form := url.Values{}
	form.Set("action", action)
	if dataID != "" {
		form.Set("dataID", dataID)
	}
	for k, v := range fields {
		form.Set(k, v)
	}

	var resp statusResponse
	if err := c.postForm(ctx, action, c.requestTimeout, form, &resp); err != nil {
		return err
	}
	if !resp.Success {
		metrics.UpstreamErrorsTotal.WithLabelValues(action, "rejected").Inc()
		return &domain.RejectedError{Action: action, Message: resp.Message}
	}
	return nil
}

// ── Transport plumbing ────────────────────────────────────────────────────────

func (c *Client) postForm(ctx context.Context, action string, timeout time.Duration, form url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrUpstreamUnavailable, err)
	}
	// A safelisted content type: the hosted-script origin does not answer
	// preflights, so no custom headers may be set.
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, action, out)
}

func (c *Client) getJSON(ctx context.Context, action string, params url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	// Cache-buster: the script host aggressively caches GETs.
	params.Set("t", strconv.FormatInt(time.Now().UnixMilli(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrUpstreamUnavailable, err)
	}

	return c.do(req, action, out)
}

func (c *Client) do(req *http.Request, action string, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues(action, "transport").Inc()
		return fmt.Errorf("%w: %s: %v", domain.ErrUpstreamUnavailable, action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamErrorsTotal.WithLabelValues(action, "transport").Inc()
		return fmt.Errorf("%w: %s: status %d", domain.ErrUpstreamUnavailable, action, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues(action, "transport").Inc()
		return fmt.Errorf("%w: %s: read body: %v", domain.ErrUpstreamUnavailable, action, err)
	}

	// Malformed JSON is transient by policy, never "session invalid".
	if err := json.Unmarshal(body, out); err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues(action, "transport").Inc()
		c.log.Debug().Str("action", action).Str("body", truncate(body, 256)).Msg("undecodable upstream response")
		return fmt.Errorf("%w: %s: malformed response", domain.ErrUpstreamUnavailable, action)
	}
	return nil
}

func toProfile(u userPayload) ports.UserProfile {
	return ports.UserProfile{
		Username:         u.Username,
		FullName:         u.FullName,
		Role:             u.Role,
		AssignedBarangay: u.AssignedBarangay,
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}
