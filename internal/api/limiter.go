package api

import (
	"context"
	"sync"

	"eventmarket/internal/config"
	"eventmarket/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const rateLimitKeyPrefix = "api:"

// rateLimiter combines a per-key token bucket with an optional shared window
// counter. A failing window store does not block requests.
type rateLimiter struct {
	limiters sync.Map
	cfg      *config.APIConfig
	store    domain.LimitStore
	log      zerolog.Logger
}

func newRateLimiter(cfg *config.APIConfig, store domain.LimitStore, logger zerolog.Logger) *rateLimiter {
	return &rateLimiter{
		cfg:   cfg,
		store: store,
		log:   logger,
	}
}

func (l *rateLimiter) allow(ctx context.Context, key string) error {
	if l.cfg.RateLimit.RPS > 0 && !l.getLimiter(key).Allow() {
		return errRateLimited
	}

	if l.store == nil || l.cfg.RateLimit.Limit <= 0 || l.cfg.RateLimit.Window <= 0 {
		return nil
	}
	ok, err := l.store.CheckRateLimit(ctx, rateLimitKeyPrefix+key, l.cfg.RateLimit.Limit, l.cfg.RateLimit.Window)
	if err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("rate limit store unavailable")
		return nil
	}
	if !ok {
		return errRateLimited
	}
	return nil
}

func (l *rateLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		if lim, ok := v.(*rate.Limiter); ok {
			return lim
		}
	}

	burst := l.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(l.cfg.RateLimit.RPS), burst)
	actual, loaded := l.limiters.LoadOrStore(key, lim)
	if loaded {
		if actualLim, ok := actual.(*rate.Limiter); ok {
			return actualLim
		}
	}
	return lim
}
