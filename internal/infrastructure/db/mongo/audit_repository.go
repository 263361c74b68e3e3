package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hms/hospital-auth/internal/core/domain"
	"github.com/hms/hospital-auth/internal/core/ports"
)

const auditCollection = "audit_log"

// AuditRepository implements ports.AuditRepository using MongoDB.
type AuditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{coll: db.Collection(auditCollection)}
}

type mongoAuditEvent struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id,omitempty"`
	Username    string    `bson:"username,omitempty"`
	EventType   string    `bson:"event_type"`
	Description string    `bson:"description"`
	IPAddress   string    `bson:"ip_address,omitempty"`
	Timestamp   time.Time `bson:"timestamp"`
}

// EnsureIndexes creates the timestamp index used by List.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create audit index: %w", err)
	}
	return nil
}

func (r *AuditRepository) Insert(ctx context.Context, ev *domain.AuditEvent) error {
	_, err := r.coll.InsertOne(ctx, mongoAuditEvent{
		ID:          ev.ID,
		UserID:      ev.UserID,
		Username:    ev.Username,
		EventType:   string(ev.EventType),
		Description: ev.Description,
		IPAddress:   ev.IPAddress,
		Timestamp:   ev.Timestamp.UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (r *AuditRepository) List(ctx context.Context, f ports.AuditFilter) ([]*domain.AuditEvent, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.EventType != "" {
		filter["event_type"] = string(f.EventType)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(f.Limit))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoAuditEvent
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode audit events: %w", err)
	}

	out := make([]*domain.AuditEvent, 0, len(docs))
	for _, d := range docs {
		out = append(out, &domain.AuditEvent{
			ID:          d.ID,
			UserID:      d.UserID,
			Username:    d.Username,
			EventType:   domain.AuditEventType(d.EventType),
			Description: d.Description,
			IPAddress:   d.IPAddress,
			Timestamp:   d.Timestamp.UTC(),
		})
	}
	return out, nil
}
