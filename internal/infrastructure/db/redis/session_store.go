package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
	"github.com/mdrrmo/evac-gateway/internal/core/ports"
)

const (
	sessionKey   = "evac:session"
	ephemeralKey = "evac:session:ephemeral"
)

// SessionStore keeps the station's session record in Redis, split the way the
// browser split it: a persistent document and an ephemeral one that expires
// with the session token. Both halves are written in one MULTI/EXEC so readers
// never observe a partial record.
type SessionStore struct {
	client *redis.Client
}

var _ ports.SessionStore = (*SessionStore)(nil)

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

type persistentDoc struct {
	Username         string    `json:"username"`
	DisplayName      string    `json:"display_name"`
	Role             string    `json:"role"`
	AssignedBarangay string    `json:"assigned_barangay"`
	LoggedIn         bool      `json:"logged_in"`
	LoginAt          time.Time `json:"login_at"`
	LastActivityAt   time.Time `json:"last_activity_at"`
	SealedPwHash     []byte    `json:"sealed_pw_hash"`
}

type ephemeralDoc struct {
	SessionID     string    `json:"session_id"`
	SessionExpiry time.Time `json:"session_expiry"`
}

// Get loads the session. A missing, expired, or undecodable record reads as
// logged out — incomplete sessions are never handed to callers.
func (s *SessionStore) Get(ctx context.Context) (*domain.Session, error) {
	vals, err := s.client.MGet(ctx, sessionKey, ephemeralKey).Result()
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}

	pRaw, pOK := vals[0].(string)
	eRaw, eOK := vals[1].(string)
	if !pOK || !eOK {
		return nil, domain.ErrNotLoggedIn
	}

	var p persistentDoc
	var e ephemeralDoc
	if json.Unmarshal([]byte(pRaw), &p) != nil || json.Unmarshal([]byte(eRaw), &e) != nil {
		return nil, domain.ErrNotLoggedIn
	}

	sess := &domain.Session{
		Username:         p.Username,
		DisplayName:      p.DisplayName,
		Role:             p.Role,
		AssignedBarangay: p.AssignedBarangay,
		LoggedIn:         p.LoggedIn,
		LoginAt:          p.LoginAt,
		LastActivityAt:   p.LastActivityAt,
		SealedPwHash:     p.SealedPwHash,
		SessionID:        e.SessionID,
		SessionExpiry:    e.SessionExpiry,
	}
	if !sess.Complete() {
		return nil, domain.ErrNotLoggedIn
	}
	return sess, nil
}

// Put writes the full record. The ephemeral half carries a TTL matching the
// session expiry so a dead token can never outlive its window.
func (s *SessionStore) Put(ctx context.Context, sess *domain.Session) error {
	p, err := json.Marshal(persistentDoc{
		Username:         sess.Username,
		DisplayName:      sess.DisplayName,
		Role:             sess.Role,
		AssignedBarangay: sess.AssignedBarangay,
		LoggedIn:         sess.LoggedIn,
		LoginAt:          sess.LoginAt,
		LastActivityAt:   sess.LastActivityAt,
		SealedPwHash:     sess.SealedPwHash,
	})
	if err != nil {
		return fmt.Errorf("session marshal: %w", err)
	}
	e, err := json.Marshal(ephemeralDoc{
		SessionID:     sess.SessionID,
		SessionExpiry: sess.SessionExpiry,
	})
	if err != nil {
		return fmt.Errorf("session marshal: %w", err)
	}

	var ttl time.Duration
	if !sess.SessionExpiry.IsZero() {
		ttl = time.Until(sess.SessionExpiry)
		if ttl <= 0 {
			return s.Clear(ctx)
		}
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey, p, 0)
	pipe.Set(ctx, ephemeralKey, e, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session put: %w", err)
	}
	return nil
}

// Clear removes both halves of the record.
func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, sessionKey, ephemeralKey).Err(); err != nil {
		return fmt.Errorf("session clear: %w", err)
	}
	return nil
}
