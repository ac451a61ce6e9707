package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
	"github.com/mdrrmo/evac-gateway/internal/core/ports"
)

const (
	activityListKey   = "evac:activity:recent"
	activityLatestKey = "evac:activity:latest"
)

// ActivityStore is the bounded recent-activity buffer: newest first, oldest
// evicted past the cap, plus the most-recent slot that header widgets poll.
type ActivityStore struct {
	client *redis.Client
	cap    int64
}

var _ ports.ActivityLog = (*ActivityStore)(nil)

func NewActivityStore(client *redis.Client, cap int) *ActivityStore {
	if cap <= 0 {
		cap = 50
	}
	return &ActivityStore{client: client, cap: int64(cap)}
}

// Append pushes the event to the head of the list, trims to the cap, and
// refreshes the latest slot — one pipeline, so the list and the slot agree.
func (s *ActivityStore) Append(ctx context.Context, a domain.Activity) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("activity marshal: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, activityListKey, raw)
	pipe.LTrim(ctx, activityListKey, 0, s.cap-1)
	pipe.Set(ctx, activityLatestKey, raw, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("activity append: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *ActivityStore) Recent(ctx context.Context, limit int) ([]domain.Activity, error) {
	if limit <= 0 || int64(limit) > s.cap {
		limit = int(s.cap)
	}
	raws, err := s.client.LRange(ctx, activityListKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("activity recent: %w", err)
	}

	out := make([]domain.Activity, 0, len(raws))
	for _, raw := range raws {
		var a domain.Activity
		if json.Unmarshal([]byte(raw), &a) != nil {
			continue // tolerate a corrupt entry rather than losing the rest
		}
		out = append(out, a)
	}
	return out, nil
}

// Latest returns the most recent event, or nil when nothing has happened yet.
func (s *ActivityStore) Latest(ctx context.Context) (*domain.Activity, error) {
	raw, err := s.client.Get(ctx, activityLatestKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("activity latest: %w", err)
	}

	var a domain.Activity
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, nil
	}
	return &a, nil
}
