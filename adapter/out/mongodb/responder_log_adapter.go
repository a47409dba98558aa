package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"responder_server/core/domain"
	"responder_server/core/port/out"
)

const collectionProcessingLogs = "processing_logs"

// LogAdapter implements out.LogRepository using MongoDB. The collection is
// append-only; entries are never updated or deleted by the pipeline.
type LogAdapter struct {
	collection *mongo.Collection
}

func NewLogAdapter(db *mongo.Database) *LogAdapter {
	return &LogAdapter{collection: db.Collection(collectionProcessingLogs)}
}

// EnsureIndexes creates the collection indexes.
func (a *LogAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "message_id", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "account", Value: 1},
				{Key: "action", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

type logDocument struct {
	ID             string         `bson:"id"`
	MessageID      string         `bson:"message_id,omitempty"`
	Account        string         `bson:"account"`
	Action         string         `bson:"action"`
	Status         string         `bson:"status"`
	Message        string         `bson:"message,omitempty"`
	Details        map[string]any `bson:"details,omitempty"`
	ElapsedSeconds float64        `bson:"elapsed_seconds,omitempty"`
	APICalls       int            `bson:"api_calls,omitempty"`
	CreatedAt      time.Time      `bson:"created_at"`
}

func (a *LogAdapter) Append(ctx context.Context, entry *domain.ProcessingLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	doc := logDocument{
		ID:             entry.ID,
		MessageID:      entry.MessageID,
		Account:        entry.Account,
		Action:         entry.Action,
		Status:         string(entry.Status),
		Message:        entry.Message,
		Details:        entry.Details,
		ElapsedSeconds: entry.ElapsedSeconds,
		APICalls:       entry.APICalls,
		CreatedAt:      entry.CreatedAt,
	}

	if _, err := a.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

// CountByAction aggregates entry counts per action for one account.
func (a *LogAdapter) CountByAction(ctx context.Context, account string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"account": account}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$action",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := a.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate log entries: %w", err)
	}
	defer cursor.Close(ctx)

	counts := make(map[string]int64)
	for cursor.Next(ctx) {
		var row struct {
			Action string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		counts[row.Action] = row.Count
	}
	return counts, cursor.Err()
}

var _ out.LogRepository = (*LogAdapter)(nil)
