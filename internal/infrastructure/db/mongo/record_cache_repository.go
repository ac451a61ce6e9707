package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
	"github.com/mdrrmo/evac-gateway/internal/core/ports"
)

const recordCacheCollection = "record_cache"

// snapshotID is the single cache document. The cache is last-write-wins: one
// snapshot of the most recent successful upstream fetch.
const snapshotID = "latest"

// RecordCacheRepository keeps the last successful household fetch so listings
// can degrade to local data when the upstream is unreachable.
type RecordCacheRepository struct {
	coll *mongo.Collection
}

var _ ports.RecordCache = (*RecordCacheRepository)(nil)

func NewRecordCacheRepository(db *mongo.Database) *RecordCacheRepository {
	return &RecordCacheRepository{coll: db.Collection(recordCacheCollection)}
}

type snapshotDoc struct {
	ID        string              `bson:"_id"`
	Header    []string            `bson:"header"`
	Rows      []map[string]string `bson:"rows"`
	FetchedAt int64               `bson:"fetched_at"`
}

func (r *RecordCacheRepository) PutSnapshot(ctx context.Context, page *ports.RecordPage) error {
	rows := make([]map[string]string, 0, len(page.Rows))
	for _, row := range page.Rows {
		rows = append(rows, map[string]string(row))
	}
	doc := snapshotDoc{
		ID:        snapshotID,
		Header:    page.Header,
		Rows:      rows,
		FetchedAt: time.Now().UnixMilli(),
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"_id": snapshotID}, doc, opts); err != nil {
		return fmt.Errorf("cache snapshot: %w", err)
	}
	return nil
}

func (r *RecordCacheRepository) Snapshot(ctx context.Context) (*ports.RecordPage, time.Time, error) {
	var doc snapshotDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": snapshotID}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, time.Time{}, domain.ErrRecordNotFound
		}
		return nil, time.Time{}, fmt.Errorf("read snapshot: %w", err)
	}

	rows := make([]domain.Row, 0, len(doc.Rows))
	for _, row := range doc.Rows {
		rows = append(rows, domain.Row(row))
	}
	return &ports.RecordPage{Header: doc.Header, Rows: rows},
		time.UnixMilli(doc.FetchedAt).UTC(), nil
}
