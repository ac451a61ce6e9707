package ports

import (
	"context"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
)

// Broadcaster fans a data-change hint out to sibling clients: the latest-slot
// write plus a named pub/sub topic. Delivery is best-effort — a hint, not a
// log. Subscribers must see each event at most once even though it travels
// both paths.
type Broadcaster interface {
	Publish(ctx context.Context, a domain.Activity) error
	Subscribe(ctx context.Context, fn func(domain.Activity)) error
}
