package db

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// IsRetryable decides whether a failed operation should be attempted again.
type IsRetryable func(err error) bool

const DefaultMaxRetries = 3

// Try executes a write with default retry settings for transient Mongo errors
// (network errors and timeouts). Duplicate-key errors are never retried.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsTransientError)
}

// WithRetries executes an operation, retrying up to maxRetries times while
// isRetryable reports true for the returned error.
func WithRetries(op Operation, maxRetries int, isRetryable IsRetryable) error {
	var err error
	// Loop for initial attempt (attempt = 0) + maxRetries
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == maxRetries || !isRetryable(err) {
			break
		}
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond) // Simple incremental backoff
	}
	return err
}

// IsDuplicateKeyError checks if an error from MongoDB is a duplicate key error (code 11000).
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var e mongo.WriteException
	if errors.As(err, &e) {
		for _, we := range e.WriteErrors {
			if we.Code == 11000 {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, writeError := range bwe.WriteErrors {
			if writeError.Code == 11000 {
				return true
			}
		}
	}
	return mongo.IsDuplicateKeyError(err)
}

// IsTransientError reports network failures and timeouts, which are worth retrying.
func IsTransientError(err error) bool {
	if err == nil || IsDuplicateKeyError(err) {
		return false
	}
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err)
}
