package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"greendrake/dunning/internal/db"
	"greendrake/dunning/internal/models"
)

// IdempotencyProvider tags dunning rows in the shared processed-event ledger.
const IdempotencyProvider = "dunning"

// IIdempotencyStore is a dedupe-by-key ledger.
// MarkProcessed is insert-if-absent: it returns ErrAlreadyProcessed when the key
// already exists, so two concurrent callers cannot both succeed.
type IIdempotencyStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, key string) error
}

// mongoIdempotencyStore keeps keys as _id in the processed-event collection.
type mongoIdempotencyStore struct {
	db *mongo.Database
}

// NewMongoIdempotencyStore creates a store backed by the webhook_events collection.
func NewMongoIdempotencyStore(db *mongo.Database) IIdempotencyStore {
	return &mongoIdempotencyStore{db: db}
}

func (s *mongoIdempotencyStore) Exists(ctx context.Context, key string) (bool, error) {
	count, err := s.db.Collection(db.ProcessedEventsCollection).CountDocuments(ctx, bson.M{"_id": key})
	if err != nil {
		return false, fmt.Errorf("failed to check processed event %s: %w", key, err)
	}
	return count > 0, nil
}

func (s *mongoIdempotencyStore) MarkProcessed(ctx context.Context, key string) error {
	collection := s.db.Collection(db.ProcessedEventsCollection)
	err := db.Try(func() error {
		_, err := collection.InsertOne(ctx, models.ProcessedEvent{
			Key:         key,
			Provider:    IdempotencyProvider,
			ProcessedAt: time.Now().UTC(),
		})
		return err
	})
	if db.IsDuplicateKeyError(err) {
		return ErrAlreadyProcessed
	}
	if err != nil {
		return fmt.Errorf("failed to mark event %s processed: %w", key, err)
	}
	return nil
}

// redisIdempotencyStore keeps keys as expiring Redis strings.
type redisIdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisIdempotencyStore creates a Redis-backed store. Keys expire after ttl,
// which must outlive the dedupe key's calendar day.
func NewRedisIdempotencyStore(rdb *redis.Client, ttl time.Duration) IIdempotencyStore {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &redisIdempotencyStore{rdb: rdb, ttl: ttl}
}

func redisProcessedKey(key string) string {
	return "dunning:processed:" + key
}

func (s *redisIdempotencyStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, redisProcessedKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check processed key %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *redisIdempotencyStore) MarkProcessed(ctx context.Context, key string) error {
	ok, err := s.rdb.SetNX(ctx, redisProcessedKey(key), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to mark key %s processed: %w", key, err)
	}
	if !ok {
		return ErrAlreadyProcessed
	}
	return nil
}
