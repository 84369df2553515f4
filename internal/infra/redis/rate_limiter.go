package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Decision is the rate limiter's advice for one request. The limiter never
// blocks and never raises user-facing errors; callers translate a denial into
// HTTP 429 themselves.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// RateLimiter keeps a counter per (key, window-bucket) in Redis. Keys are
// caller-supplied, so call sites can share or isolate limits by namespacing
// (e.g. "validate:"+ip). Any Redis failure fails OPEN: an infrastructure blip
// on the limiter must never block legitimate checkouts.
type RateLimiter struct {
	client RedisClient
	now    func() time.Time
	log    *zerolog.Logger
}

func NewRateLimiter(client RedisClient, logger *zerolog.Logger) *RateLimiter {
	l := logger.With().Str("component", "RateLimiter").Logger()
	return &RateLimiter{client: client, now: time.Now, log: &l}
}

func (r *RateLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) Decision {
	now := r.now()
	bucket := now.Truncate(window)
	resetAt := bucket.Add(window)

	k := fmt.Sprintf("rate_limit:%s:%d", key, bucket.Unix())
	count, err := r.client.Incr(ctx, k)
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("limiter unavailable; failing open")
		return Decision{Allowed: true, Remaining: limit, ResetAt: resetAt}
	}
	if count == 1 {
		// Counter keys self-expire; a failed EXPIRE only delays cleanup.
		if err := r.client.Expire(ctx, k, window); err != nil {
			r.log.Warn().Err(err).Str("key", key).Msg("failed to set counter expiry")
		}
	}

	d := Decision{ResetAt: resetAt}
	if count > int64(limit) {
		d.RetryAfter = resetAt.Sub(now)
		return d
	}
	d.Allowed = true
	d.Remaining = limit - int(count)
	return d
}
