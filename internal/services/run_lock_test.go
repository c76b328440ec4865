package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLock_ExclusiveUntilReleased(t *testing.T) {
	_, rdb := setupMiniRedis(t)
	lock := NewRunLock(rdb, time.Minute)
	ctx := context.Background()

	release, err := lock.Acquire(ctx)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx)
	assert.ErrorIs(t, err, ErrRunInProgress)

	release()
	release2, err := lock.Acquire(ctx)
	require.NoError(t, err)
	release2()
}

func TestRunLock_ExpiresAfterTTL(t *testing.T) {
	mr, rdb := setupMiniRedis(t)
	lock := NewRunLock(rdb, time.Minute)
	ctx := context.Background()

	_, err := lock.Acquire(ctx)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	_, err = lock.Acquire(ctx)
	assert.NoError(t, err)
}

func TestRunLock_StaleReleaseKeepsNewHolder(t *testing.T) {
	mr, rdb := setupMiniRedis(t)
	lock := NewRunLock(rdb, time.Minute)
	ctx := context.Background()

	staleRelease, err := lock.Acquire(ctx)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	_, err = lock.Acquire(ctx)
	require.NoError(t, err)

	staleRelease()
	assert.True(t, mr.Exists(runLockKey))
}
