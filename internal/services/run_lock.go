package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const runLockKey = "dunning:run_lock"

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// IRunLock keeps dunning runs from overlapping across processes.
type IRunLock interface {
	// Acquire returns a release func, or ErrRunInProgress when another run holds the lock.
	Acquire(ctx context.Context) (release func(), err error)
}

// redisRunLock implements IRunLock with SET NX and a TTL.
type redisRunLock struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRunLock creates a Redis run lock. The TTL bounds how long a crashed run can
// block the next one.
func NewRunLock(rdb *redis.Client, ttl time.Duration) IRunLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &redisRunLock{rdb: rdb, ttl: ttl}
}

func (l *redisRunLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, runLockKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{runLockKey}, token).Err()
	}
	return release, nil
}
