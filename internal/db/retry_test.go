package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

// mockMongoDuplicateKeyError creates an error that IsDuplicateKeyError will recognize.
func mockMongoDuplicateKeyError(key string) error {
	mongoErr := mongo.WriteError{
		Code:    11000,
		Message: fmt.Sprintf("E11000 duplicate key error collection: test.webhook_events index: _id_ dup key: { : \"%s\" }", key),
	}
	return mongo.WriteException{WriteErrors: []mongo.WriteError{mongoErr}}
}

func TestWithRetries_SuccessfulFirstAttempt(t *testing.T) {
	var opCalled int
	operation := func() error {
		opCalled++
		return nil
	}

	err := WithRetries(operation, 3, IsTransientError)
	assert.NoError(t, err)
	assert.Equal(t, 1, opCalled)
}

func TestWithRetries_NonRetryableReturnsImmediately(t *testing.T) {
	var opCalled int
	expectedErr := errors.New("some other error")
	operation := func() error {
		opCalled++
		return expectedErr
	}

	err := WithRetries(operation, 3, IsTransientError)
	assert.ErrorIs(t, err, expectedErr)
	assert.Equal(t, 1, opCalled)
}

func TestWithRetries_DuplicateKeyIsNotRetried(t *testing.T) {
	var opCalled int
	operation := func() error {
		opCalled++
		return mockMongoDuplicateKeyError("dunning:inv-1:whatsapp:whatsapp_gentle:2026-10-15")
	}

	err := WithRetries(operation, 3, IsTransientError)
	assert.True(t, IsDuplicateKeyError(err))
	assert.Equal(t, 1, opCalled)
}

func TestWithRetries_ExhaustRetries(t *testing.T) {
	var opCalled int
	operation := func() error {
		opCalled++
		return context.DeadlineExceeded
	}

	maxRetries := 3
	err := WithRetries(operation, maxRetries, func(err error) bool { return errors.Is(err, context.DeadlineExceeded) })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, maxRetries+1, opCalled)
}

func TestWithRetries_RecoversAfterTransientFailure(t *testing.T) {
	var opCalled int
	operation := func() error {
		opCalled++
		if opCalled < 3 {
			return context.DeadlineExceeded
		}
		return nil
	}

	err := WithRetries(operation, 3, func(err error) bool { return errors.Is(err, context.DeadlineExceeded) })
	assert.NoError(t, err)
	assert.Equal(t, 3, opCalled)
}

func TestIsDuplicateKeyError(t *testing.T) {
	assert.True(t, IsDuplicateKeyError(mockMongoDuplicateKeyError("k")))
	assert.True(t, IsDuplicateKeyError(fmt.Errorf("wrapped: %w", mockMongoDuplicateKeyError("k"))))
	assert.False(t, IsDuplicateKeyError(errors.New("boom")))
	assert.False(t, IsDuplicateKeyError(nil))
}

func TestIsTransientError(t *testing.T) {
	assert.False(t, IsTransientError(nil))
	assert.False(t, IsTransientError(mockMongoDuplicateKeyError("k")))
	assert.True(t, IsTransientError(context.DeadlineExceeded))
}
