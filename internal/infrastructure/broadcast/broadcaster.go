// Package broadcast carries the "data changed" hint between sibling clients
// of the same gateway. Two delivery paths mirror the browser mechanism it
// replaces: a latest-slot key (the storage-event analog, pollable by clients
// that missed the live message) and a named pub/sub topic (the broadcast
// channel analog). It is a liveness hint, not a log: no ordering beyond
// channel order, no delivery to subscribers that were not listening.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mdrrmo/evac-gateway/internal/api/metrics"
	"github.com/mdrrmo/evac-gateway/internal/core/domain"
	"github.com/mdrrmo/evac-gateway/internal/core/ports"
	"github.com/mdrrmo/evac-gateway/internal/infrastructure/db/redis"
)

const (
	channelName = "evac:data-updates"
	slotKey     = "evac:data-update:latest"
)

type Broadcaster struct {
	client *goredis.Client
	dedup  *redis.DedupChecker
	log    zerolog.Logger
}

var _ ports.Broadcaster = (*Broadcaster)(nil)

func New(client *goredis.Client, dedup *redis.DedupChecker, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{client: client, dedup: dedup, log: log}
}

// Publish writes the latest slot and posts the same payload on the topic.
// Non-broadcastable actions are dropped silently — callers log everything,
// siblings only hear about data changes.
func (b *Broadcaster) Publish(ctx context.Context, a domain.Activity) error {
	if !a.Broadcastable() {
		return nil
	}

	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("broadcast marshal: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, slotKey, raw, 0)
	pipe.Publish(ctx, channelName, raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("broadcast publish: %w", err)
	}

	metrics.BroadcastPublishedTotal.WithLabelValues(a.Action).Inc()
	return nil
}

// Subscribe delivers events to fn until ctx is cancelled. Events are
// de-duplicated by action+timestamp so a subscriber that also polls the
// latest slot sees each change once.
func (b *Broadcaster) Subscribe(ctx context.Context, fn func(domain.Activity)) error {
	sub := b.client.Subscribe(ctx, channelName)
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("broadcast subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.deliver(ctx, msg.Payload, fn)
			}
		}
	}()
	return nil
}

func (b *Broadcaster) deliver(ctx context.Context, payload string, fn func(domain.Activity)) {
	var a domain.Activity
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		b.log.Debug().Err(err).Msg("undecodable broadcast payload dropped")
		return
	}

	action, ts := a.DedupKey()
	isDup, err := b.dedup.IsDuplicate(ctx, action, ts)
	if err != nil {
		b.log.Warn().Err(err).Str("action", action).Msg("dedup check failed, delivering anyway")
	} else if isDup {
		metrics.BroadcastDedupTotal.WithLabelValues("hit").Inc()
		return
	}
	if err := b.dedup.Mark(ctx, action, ts); err != nil {
		b.log.Warn().Err(err).Str("action", action).Msg("failed to set dedup key")
	}

	metrics.BroadcastDedupTotal.WithLabelValues("miss").Inc()
	fn(a)
}

// LatestSlot reads the last published hint, for clients that were not
// listening at publish time and want to catch up on reconnect.
func (b *Broadcaster) LatestSlot(ctx context.Context) (*domain.Activity, error) {
	raw, err := b.client.Get(ctx, slotKey).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("broadcast slot: %w", err)
	}

	var a domain.Activity
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, nil
	}
	return &a, nil
}
