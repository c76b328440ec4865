package models

import (
	"time"
)

// Severity is the overdue-urgency classification driving tone and template choice.
type Severity string

const (
	SeverityGentle Severity = "gentle"
	SeverityFirm   Severity = "firm"
	SeverityUrgent Severity = "urgent"
	SeverityFinal  Severity = "final"
)

// SeverityTag is the coarse classification an upstream read model may supply.
type SeverityTag string

const (
	SeverityTagMild     SeverityTag = "mild"
	SeverityTagModerate SeverityTag = "moderate"
	SeverityTagSevere   SeverityTag = "severe"
)

// Channel identifies where a reminder went (or "system" for engine-level outcomes).
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
	ChannelSystem   Channel = "system"
)

// OverdueInvoiceRow is one row of the overdue-invoices read model.
type OverdueInvoiceRow struct {
	InvoiceID      string      `bson:"_id" json:"invoice_id"`
	InvoiceNumber  string      `bson:"invoice_number" json:"invoice_number"`
	TotalCents     int64       `bson:"total_cents" json:"total_cents"`
	DueAt          time.Time   `bson:"due_at" json:"due_at"`
	LastReminderAt *time.Time  `bson:"last_reminder_at,omitempty" json:"last_reminder_at,omitempty"`
	NextReminderAt *time.Time  `bson:"next_reminder_at,omitempty" json:"next_reminder_at,omitempty"`
	ReminderCount  int         `bson:"reminder_count" json:"reminder_count"`
	PaidAt         *time.Time  `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	Status         string      `bson:"status" json:"status"`
	CustomerName   string      `bson:"customer_name" json:"customer_name"`
	CustomerEmail  string      `bson:"customer_email,omitempty" json:"customer_email,omitempty"`
	CustomerPhone  string      `bson:"customer_phone,omitempty" json:"customer_phone,omitempty"`
	DunningOptOut  bool        `bson:"dunning_opt_out" json:"dunning_opt_out"`
	DaysOverdue    int         `bson:"days_overdue" json:"days_overdue"`
	SeverityTag    SeverityTag `bson:"severity_tag,omitempty" json:"severity_tag,omitempty"`
	OrgID          string      `bson:"org_id" json:"org_id"`
	CustomerID     string      `bson:"customer_id" json:"customer_id"`
	PaymentURL     string      `bson:"payment_url,omitempty" json:"payment_url,omitempty"`
}

// Candidate is an overdue invoice under consideration in the current run.
// It is a projection built fresh every run and never persisted.
type Candidate struct {
	InvoiceID     string    `json:"invoice_id"`
	OrgID         string    `json:"org_id"`
	CustomerID    string    `json:"customer_id"`
	CustomerName  string    `json:"customer_name"`
	InvoiceNumber string    `json:"invoice_number"`
	TotalCents    int64     `json:"total_cents"`
	DueAt         time.Time `json:"due_at"`
	DaysOverdue   int       `json:"days_overdue"`
	WhatsApp      string    `json:"whatsapp,omitempty"` // Raw phone
	Email         string    `json:"email,omitempty"`
	Severity      Severity  `json:"severity"`
	PaymentURL    string    `json:"payment_url,omitempty"`
}
