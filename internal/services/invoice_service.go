package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"greendrake/dunning/internal/config"
	"greendrake/dunning/internal/db"
	"greendrake/dunning/internal/models"
)

// IInvoiceService is the dunning view of the invoice store: the overdue read
// model plus the reminder bookkeeping writes.
type IInvoiceService interface {
	FindOverdue(ctx context.Context, orgID string, limit int, now time.Time) ([]models.OverdueInvoiceRow, error)
	RecordReminderSent(ctx context.Context, invoiceID string, sentAt, nextAt time.Time) error
	RescheduleReminder(ctx context.Context, invoiceID string, nextAt time.Time) error
}

// invoiceService implements IInvoiceService.
type invoiceService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(db *mongo.Database, cfg *config.Config) IInvoiceService {
	return &invoiceService{
		db:  db,
		cfg: cfg,
	}
}

// FindOverdue returns unpaid, uncancelled invoices past due whose customer has not
// opted out, oldest due date first. An empty orgID means every organization.
// Invoices still cooling down (next_reminder_at in the future) or at the
// reminder maximum are excluded here so they do not use up the limit.
func (s *invoiceService) FindOverdue(ctx context.Context, orgID string, limit int, now time.Time) ([]models.OverdueInvoiceRow, error) {
	match := bson.M{
		"status":  bson.M{"$nin": bson.A{models.InvoiceStatusPaid, models.InvoiceStatusCancelled, models.InvoiceStatusDraft}},
		"paid_at": nil,
		"due_at":  bson.M{"$lt": now},
		"$or": bson.A{
			bson.M{"next_reminder_at": nil},
			bson.M{"next_reminder_at": bson.M{"$lte": now}},
		},
	}
	if s.cfg.DunningMaxReminders > 0 {
		match["reminder_count"] = bson.M{"$lt": s.cfg.DunningMaxReminders}
	}
	if orgID != "" {
		match["org_id"] = orgID
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "due_at", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         db.CustomersCollection,
			"localField":   "customer_id",
			"foreignField": "_id",
			"as":           "customer",
		}}},
		{{Key: "$unwind", Value: "$customer"}},
		{{Key: "$match", Value: bson.M{"customer.dunning_opt_out": bson.M{"$ne": true}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$project", Value: bson.M{
		"invoice_number":   1,
		"total_cents":      1,
		"due_at":           1,
		"last_reminder_at": 1,
		"next_reminder_at": 1,
		"reminder_count":   1,
		"paid_at":          1,
		"status":           1,
		"severity_tag":     1,
		"org_id":           1,
		"customer_id":      1,
		"payment_url":      1,
		"customer_name":    "$customer.name",
		"customer_email":   "$customer.email",
		"customer_phone":   "$customer.phone",
		"dunning_opt_out":  "$customer.dunning_opt_out",
	}}})

	cursor, err := s.db.Collection(db.InvoicesCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue invoices: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []models.OverdueInvoiceRow
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode overdue invoices: %w", err)
	}
	for i := range rows {
		rows[i].DaysOverdue = DaysOverdue(rows[i].DueAt, now)
	}
	return rows, nil
}

// DaysOverdue counts whole days between dueAt and now, never negative.
func DaysOverdue(dueAt, now time.Time) int {
	d := int(now.Sub(dueAt).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// RecordReminderSent stamps a confirmed send on the invoice.
func (s *invoiceService) RecordReminderSent(ctx context.Context, invoiceID string, sentAt, nextAt time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"last_reminder_at": sentAt,
			"next_reminder_at": nextAt,
		},
		"$inc": bson.M{"reminder_count": 1},
	}
	return s.updateInvoice(ctx, invoiceID, update)
}

// RescheduleReminder moves next_reminder_at without counting a send.
func (s *invoiceService) RescheduleReminder(ctx context.Context, invoiceID string, nextAt time.Time) error {
	return s.updateInvoice(ctx, invoiceID, bson.M{"$set": bson.M{"next_reminder_at": nextAt}})
}

func (s *invoiceService) updateInvoice(ctx context.Context, invoiceID string, update bson.M) error {
	if invoiceID == "" {
		return ErrInvalidInvoiceID
	}
	collection := s.db.Collection(db.InvoicesCollection)

	var result *mongo.UpdateResult
	err := db.Try(func() error {
		var err error
		result, err = collection.UpdateOne(ctx, bson.M{"_id": invoiceID}, update)
		return err
	})
	if err != nil {
		return fmt.Errorf("db error updating invoice %s: %w", invoiceID, err)
	}
	if result.MatchedCount == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}
