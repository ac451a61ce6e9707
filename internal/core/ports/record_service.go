package ports

import (
	"context"
	"time"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
)

// RecordListing is a grouped household listing. Stale marks a result served
// from the local cache because the upstream was unreachable.
type RecordListing struct {
	Header     []string           `json:"header"`
	Households []domain.Household `json:"households"`
	Stale      bool               `json:"stale"`
	FetchedAt  time.Time          `json:"fetched_at"`
}

// RecordService proxies household CRUD to the upstream and broadcasts the
// matching data-change hint after every successful write.
type RecordService interface {
	List(ctx context.Context, q RecordQuery) (*RecordListing, error)
	Create(ctx context.Context, fields map[string]string) error
	Update(ctx context.Context, dataID string, fields map[string]string) error
	Delete(ctx context.Context, dataID string) error
	// ExportCSV renders the grouped listing as CSV and returns the body plus
	// a suggested filename.
	ExportCSV(ctx context.Context, q RecordQuery) ([]byte, string, error)
}
