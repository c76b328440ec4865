package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"greendrake/dunning/internal/logger"
)

// Collection names shared by the services.
const (
	InvoicesCollection        = "invoices"
	CustomersCollection       = "customers"
	OrganizationsCollection   = "organizations"
	DunningEventsCollection   = "dunning_events"
	ProcessedEventsCollection = "webhook_events"
)

// ConnectDB initializes and returns a MongoDB client and database instance.
func ConnectDB(uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the primary node
	ctxPing, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(dbName)
	logger.Get().Info().Str("db", dbName).Msg("connected to MongoDB")

	return client, db, nil
}

// DisconnectDB closes the MongoDB client connection.
func DisconnectDB(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	logger.Get().Info().Msg("MongoDB connection closed")
	return nil
}

// EnsureIndexes creates the indexes the dunning queries and ledgers rely on.
// CreateMany is idempotent for identical index specs.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		InvoicesCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "due_at", Value: 1}}},
			{Keys: bson.D{{Key: "org_id", Value: 1}, {Key: "due_at", Value: 1}}},
		},
		DunningEventsCollection: {
			{Keys: bson.D{{Key: "invoice_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "run_id", Value: 1}}},
		},
		ProcessedEventsCollection: {
			{Keys: bson.D{{Key: "provider", Value: 1}, {Key: "processed_at", Value: -1}}},
		},
	}
	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
