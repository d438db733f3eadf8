package redis

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requires a reachable Redis at REDIS_HOST
func newTestClient(t *testing.T) *Client {
	t.Helper()

	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("REDIS_HOST not set")
	}
	port := 6379
	if p := os.Getenv("REDIS_PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		require.NoError(t, err)
	}

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	client, err := NewClient(context.Background(), Config{Host: host, Port: port}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLocker(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	locker := NewLocker(client, "fern:test:"+uuid.NewString()+":")

	lock, err := locker.Acquire(ctx, "email:a@x.com", time.Second)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "email:a@x.com", time.Second)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	_, err = locker.TryAcquire(ctx, "email:a@x.com", time.Second, 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, lock.Release(ctx))
	assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)

	again, err := locker.TryAcquire(ctx, "email:a@x.com", time.Second, 30*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestLocker_ExpiredLockIsFree(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	locker := NewLocker(client, "fern:test:"+uuid.NewString()+":")

	_, err := locker.Acquire(ctx, "phone:111", 20*time.Millisecond)
	require.NoError(t, err)

	lock, err := locker.TryAcquire(ctx, "phone:111", time.Second, time.Second)
	require.NoError(t, err)
	require.NoError(t, lock.Release(ctx))
}
