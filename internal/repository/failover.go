package repository

import (
	"context"
	"sync/atomic"
	"time"

	"shareit/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverRateLimiter serves from the primary limiter until it errors, then
// switches to the fallback and probes the primary once a minute.
type FailoverRateLimiter struct {
	primary   domain.RateLimiter
	fallback  domain.RateLimiter
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverRateLimiter(primary, fallback domain.RateLimiter, logger *zerolog.Logger) *FailoverRateLimiter {
	return &FailoverRateLimiter{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverRateLimiter) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, userID, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.logger.Error().Err(err).Msg("Primary rate limiter failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck.Store(time.Now().UnixNano())
	}

	// Probe the primary after a minute of downtime
	if r.isDown.Load() && time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute {
		allowed, err := r.primary.CheckRateLimit(ctx, userID, limit, window)
		if err == nil {
			r.isDown.Store(false)
			return allowed, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.CheckRateLimit(ctx, userID, limit, window)
}
