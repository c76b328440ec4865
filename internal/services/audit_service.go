package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"greendrake/dunning/internal/db"
	"greendrake/dunning/internal/models"
)

// IAuditService appends dunning audit rows.
type IAuditService interface {
	Record(ctx context.Context, event *models.DunningEvent) error
	ListByInvoice(ctx context.Context, invoiceID string, limit int) ([]models.DunningEvent, error)
}

// auditService implements IAuditService.
type auditService struct {
	db *mongo.Database
}

// NewAuditService creates a new AuditService.
func NewAuditService(db *mongo.Database) IAuditService {
	return &auditService{db: db}
}

// Record inserts the event, assigning an id and creation time when missing.
func (s *auditService) Record(ctx context.Context, event *models.DunningEvent) error {
	event.GenIDIfEmpty()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	collection := s.db.Collection(db.DunningEventsCollection)
	err := db.Try(func() error {
		_, err := collection.InsertOne(ctx, event)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert dunning event for invoice %s: %w", event.InvoiceID, err)
	}
	return nil
}

// ListByInvoice returns the newest audit rows of one invoice first.
func (s *auditService) ListByInvoice(ctx context.Context, invoiceID string, limit int) ([]models.DunningEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.db.Collection(db.DunningEventsCollection).Find(ctx, bson.M{"invoice_id": invoiceID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query dunning events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []models.DunningEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode dunning events: %w", err)
	}
	return events, nil
}
