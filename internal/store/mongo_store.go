package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/rohansen856/database-layering/internal/model"
)

type mongoRecord struct {
	Key       string    `bson:"key"`
	Value     string    `bson:"value"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore implements Store over a MongoDB partition. Records live in a
// "records" collection with a unique index on key.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	maxPool    int32
	logger     *zap.Logger
}

// NewMongoStore connects to one MongoDB partition and ensures the unique
// key index exists
func NewMongoStore(uri, database string, maxPoolSize int, logger *zap.Logger) (Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Client().ApplyURI(uri).SetMaxPoolSize(uint64(maxPoolSize))
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	collection := client.Database(database).Collection("records")
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ensure key index: %w", err)
	}

	return &MongoStore{
		client:     client,
		collection: collection,
		maxPool:    int32(maxPoolSize),
		logger:     logger,
	}, nil
}

// Put upserts a record. $setOnInsert keeps created_at stable across
// updates; UpsertedCount tells an insert apart from an update.
func (s *MongoStore) Put(ctx context.Context, key, value string) (model.Record, bool, error) {
	now := time.Now().UTC()

	result, err := s.collection.UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{
			"$set":         bson.M{"value": value, "updated_at": now},
			"$setOnInsert": bson.M{"key": key, "created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return model.Record{}, false, fmt.Errorf("failed to upsert record: %w", err)
	}

	rec, err := s.Get(ctx, key)
	if err != nil {
		return model.Record{}, false, fmt.Errorf("failed to read back record: %w", err)
	}

	return rec, result.UpsertedCount > 0, nil
}

// Get retrieves a record by key
func (s *MongoStore) Get(ctx context.Context, key string) (model.Record, error) {
	var doc mongoRecord
	err := s.collection.FindOne(ctx, bson.M{"key": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Record{}, ErrNotFound
		}
		return model.Record{}, fmt.Errorf("failed to get record: %w", err)
	}

	return model.Record{
		Key:       doc.Key,
		Value:     doc.Value,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// Count returns the number of records in this partition
func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// Ping checks the mongodb connection
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// PoolStats reports pool limits. The mongo driver manages its pool
// internally and only the configured ceiling is visible here.
func (s *MongoStore) PoolStats() PoolStats {
	return PoolStats{MaxConns: s.maxPool}
}

// Close disconnects from mongodb
func (s *MongoStore) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		s.logger.Warn("failed to disconnect mongodb client", zap.Error(err))
	}
}
