// Package mongo persists summary records in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
)

// CollectionSummaries holds one document per call.
const CollectionSummaries = "conversation_summaries"

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// Connect opens a pooled client, verifies it and ensures the indexes exist.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(20).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	s := &Store{client: client, coll: client.Database(database).Collection(CollectionSummaries), now: time.Now}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// NewFromCollection wraps an existing collection handle.
func NewFromCollection(coll *mongo.Collection) *Store {
	return &Store{coll: coll, now: time.Now}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "callId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "callerNumber", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create %s indexes: %w", CollectionSummaries, err)
	}
	return nil
}

// Ping checks if the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// Save upserts the record keyed by callId and returns the stored document.
func (s *Store) Save(ctx context.Context, summary domain.Summary) (domain.Summary, error) {
	update := bson.M{
		"$set": bson.M{
			"ultravoxCallId":  summary.RemoteSessionID,
			"callerNumber":    summary.CallerID,
			"summary":         summary.SummaryText,
			"topicsDiscussed": summary.Topics,
			"degraded":        summary.Degraded,
			"createdAt":       s.now().UTC(),
			"callStartedAt":   summary.CallStartedAt,
			"callEndedAt":     summary.CallEndedAt,
		},
		"$setOnInsert": bson.M{"_id": uuid.NewString()},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var saved domain.Summary
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"callId": summary.CallID}, update, opts).Decode(&saved)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("save summary %s: %w", summary.CallID, err)
	}
	return saved, nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.Summary, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) GetByCallID(ctx context.Context, callID string) (domain.Summary, error) {
	return s.findOne(ctx, bson.M{"callId": callID})
}

// List returns all records, most recent first.
func (s *Store) List(ctx context.Context) ([]domain.Summary, error) {
	return s.find(ctx, bson.M{})
}

// ListByCaller returns the caller's records, most recent first.
func (s *Store) ListByCaller(ctx context.Context, callerID string) ([]domain.Summary, error) {
	return s.find(ctx, bson.M{"callerNumber": callerID})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (domain.Summary, error) {
	var out domain.Summary
	if err := s.coll.FindOne(ctx, filter).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Summary{}, domain.ErrNotFound
		}
		return domain.Summary{}, err
	}
	return out, nil
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]domain.Summary, error) {
	cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	out := []domain.Summary{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
