package models

import (
	"time"
)

// AuditEventType classifies an audit row.
type AuditEventType string

const (
	EventReminderSent   AuditEventType = "reminder_sent"
	EventOptedOut       AuditEventType = "opted_out"
	EventManualFollowUp AuditEventType = "manual_follow_up"
)

// AuditResult is the outcome recorded for a candidate.
type AuditResult string

const (
	ResultSent    AuditResult = "sent"
	ResultSkipped AuditResult = "skipped"
	ResultError   AuditResult = "error"
)

// DunningEvent is an append-only audit row; one per candidate per run outcome.
type DunningEvent struct {
	Base         `bson:",inline"`
	RunID        string         `bson:"run_id" json:"run_id"`
	InvoiceID    string         `bson:"invoice_id" json:"invoice_id"`
	OrgID        string         `bson:"org_id" json:"org_id"`
	CustomerID   string         `bson:"customer_id" json:"customer_id"`
	Channel      Channel        `bson:"channel" json:"channel"`
	EventType    AuditEventType `bson:"event_type" json:"event_type"`
	Result       AuditResult    `bson:"result" json:"result"`
	TemplateUsed string         `bson:"template_used,omitempty" json:"template_used,omitempty"`
	Error        string         `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt    time.Time      `bson:"created_at" json:"created_at"`
	DeliveredAt  *time.Time     `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"` // Only when Result is sent
}
