package locks

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/cockroachdb/errors"
)

var _ identity.Locker = (*Redis)(nil)

const (
	DefaultLockTTL  = 10 * time.Second
	DefaultLockWait = 2 * time.Second
)

// Redis holds identifier locks in Redis so that replicas sharing a database
// serialize on the same keys. The locks are released after the transaction
// ends; TTL bounds how long a crashed holder blocks others.
type Redis struct {
	locker *redis.Locker
	ttl    time.Duration
	wait   time.Duration
	logger ectologger.Logger
}

func NewRedis(locker *redis.Locker, ttl, wait time.Duration, logger ectologger.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if wait <= 0 {
		wait = DefaultLockWait
	}
	return &Redis{
		locker: locker,
		ttl:    ttl,
		wait:   wait,
		logger: logger,
	}
}

// Acquire takes every key in order. A key still busy after the wait is a
// conflict, so the engine re-runs the reconciliation.
func (r *Redis) Acquire(ctx context.Context, keys []string) (identity.ReleaseFunc, error) {
	held := make([]*redis.Lock, 0, len(keys))
	release := func(ctx context.Context) {
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Release(ctx); err != nil {
				r.logger.WithContext(ctx).WithError(err).Warn("failed to release identifier lock")
			}
		}
	}

	for _, key := range keys {
		lock, err := r.locker.TryAcquire(ctx, key, r.ttl, r.wait)
		if err != nil {
			release(context.WithoutCancel(ctx))
			if errors.Is(err, redis.ErrLockNotAcquired) {
				return nil, identity.Conflict(errors.Wrapf(err, "identifier lock %q is busy", key))
			}
			return nil, errors.Wrapf(err, "failed to acquire identifier lock %q", key)
		}
		held = append(held, lock)
	}

	return release, nil
}
