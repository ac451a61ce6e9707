package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupTTL = time.Hour

// DedupChecker collapses broadcast events that arrive over both delivery
// paths (latest-slot poll and pub/sub) into a single delivery.
// Key format: evac:dedup:<action>:<unix_millis>
type DedupChecker struct {
	client *redis.Client
}

// NewDedupChecker creates a DedupChecker wrapping the given Redis client.
func NewDedupChecker(client *redis.Client) *DedupChecker {
	return &DedupChecker{client: client}
}

// IsDuplicate reports whether this exact event has already been delivered.
func (d *DedupChecker) IsDuplicate(ctx context.Context, action string, ts time.Time) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(action, ts)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return n > 0, nil
}

// Mark records that this event has been delivered (expires after dedupTTL).
func (d *DedupChecker) Mark(ctx context.Context, action string, ts time.Time) error {
	return d.client.Set(ctx, d.key(action, ts), "1", dedupTTL).Err()
}

func (d *DedupChecker) key(action string, ts time.Time) string {
	return fmt.Sprintf("evac:dedup:%s:%d", action, ts.UnixMilli())
}
