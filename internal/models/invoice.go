package models

import (
	"time"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Invoice represents a bill issued by an organization to one of its customers.
// Only the reminder bookkeeping fields are written by the dunning engine.
type Invoice struct {
	Base          `bson:",inline"`
	OrgID         string        `bson:"org_id" json:"org_id"`
	CustomerID    string        `bson:"customer_id" json:"customer_id"`
	InvoiceNumber string        `bson:"invoice_number" json:"invoice_number"`
	TotalCents    int64         `bson:"total_cents" json:"total_cents"` // Minor currency units
	Status        InvoiceStatus `bson:"status" json:"status"`
	IssuedAt      time.Time     `bson:"issued_at" json:"issued_at"`
	DueAt         time.Time     `bson:"due_at" json:"due_at"`
	PaidAt        *time.Time    `bson:"paid_at,omitempty" json:"paid_at,omitempty"` // Null until paid
	PaymentURL    string        `bson:"payment_url,omitempty" json:"payment_url,omitempty"`
	SeverityTag   SeverityTag   `bson:"severity_tag,omitempty" json:"severity_tag,omitempty"` // Set by upstream scoring, may be empty

	// Reminder bookkeeping
	LastReminderAt *time.Time `bson:"last_reminder_at,omitempty" json:"last_reminder_at,omitempty"`
	NextReminderAt *time.Time `bson:"next_reminder_at,omitempty" json:"next_reminder_at,omitempty"`
	ReminderCount  int        `bson:"reminder_count" json:"reminder_count"`
}
