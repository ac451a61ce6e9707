package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
	"github.com/mdrrmo/evac-gateway/internal/core/ports"
)

const activityCollection = "activity_log"

// ActivityRepository is the durable audit trail: insert-only, mirroring the
// upstream activity sheet so history survives upstream outages.
type ActivityRepository struct {
	coll *mongo.Collection
}

var _ ports.ActivityArchive = (*ActivityRepository)(nil)

func NewActivityRepository(db *mongo.Database) *ActivityRepository {
	return &ActivityRepository{coll: db.Collection(activityCollection)}
}

type activityDoc struct {
	EventID   string `bson:"event_id,omitempty"`
	Username  string `bson:"username"`
	Actor     string `bson:"actor"`
	Action    string `bson:"action"`
	Details   string `bson:"details,omitempty"`
	Timestamp int64  `bson:"timestamp"`
}

func (r *ActivityRepository) Insert(ctx context.Context, a domain.Activity) error {
	doc := activityDoc{
		EventID:   a.ID,
		Username:  a.Username,
		Actor:     a.Actor,
		Action:    a.Action,
		Details:   a.Details,
		Timestamp: a.Timestamp.UnixMilli(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}
