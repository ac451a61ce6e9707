package ports

import (
	"context"
	"time"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
)

// SessionStore persists the station's single session record. Put must write
// the whole record as one coherent unit so readers never observe a partial
// session; Get must report domain.ErrNotLoggedIn both when nothing is stored
// and when what is stored fails to decode.
type SessionStore interface {
	Get(ctx context.Context) (*domain.Session, error)
	Put(ctx context.Context, s *domain.Session) error
	Clear(ctx context.Context) error
}

// ActivityLog is the bounded recent-activity buffer plus the most-recent slot
// that header widgets poll.
type ActivityLog interface {
	Append(ctx context.Context, a domain.Activity) error
	Recent(ctx context.Context, limit int) ([]domain.Activity, error)
	Latest(ctx context.Context) (*domain.Activity, error)
}

// ActivityArchive is the durable, insert-only audit trail.
type ActivityArchive interface {
	Insert(ctx context.Context, a domain.Activity) error
}

// RecordCache keeps the last successful household fetch so listings can be
// served while the upstream is unreachable.
type RecordCache interface {
	PutSnapshot(ctx context.Context, page *RecordPage) error
	Snapshot(ctx context.Context) (*RecordPage, time.Time, error)
}

// ExportArchiver stores generated CSV exports off-box.
type ExportArchiver interface {
	Store(ctx context.Context, name string, body []byte) error
}
