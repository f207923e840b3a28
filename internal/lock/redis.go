// Package lock provides a Redis-backed ledger.Locker for multi-replica
// deployments.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/rs/zerolog"

	"github.com/warp/billing-engine/ledger"
)

// Redis obtains a short-lived lock per key, retrying with linear backoff
// until the context ends or the attempts run out.
type Redis struct {
	client  *redislock.Client
	ttl     time.Duration
	backoff time.Duration
	retries int
}

var _ ledger.Locker = (*Redis)(nil)

// NewRedis wraps a redislock client. ttl bounds how long a crashed holder
// can block an account.
func NewRedis(client *redislock.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl, backoff: 50 * time.Millisecond, retries: 40}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(r.backoff), r.retries),
	}
	l, err := r.client.Obtain(ctx, key, r.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("lock %s not obtained: %w", key, err)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func() {
		// An unreleased lock expires after ttl.
		if err := l.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("release ledger lock")
		}
	}, nil
}
