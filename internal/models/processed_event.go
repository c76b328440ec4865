package models

import (
	"time"
)

// ProcessedEvent is a row in the generic processed-event ledger. The _id is the
// dedupe key, so inserting an existing key fails with a duplicate-key error.
type ProcessedEvent struct {
	Key         string    `bson:"_id" json:"key"`
	Provider    string    `bson:"provider" json:"provider"`
	ProcessedAt time.Time `bson:"processed_at" json:"processed_at"`
}
