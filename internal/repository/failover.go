package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"eventmarket/internal/domain"

	"github.com/rs/zerolog"
)

const defaultRecoverAfter = time.Minute

// FailoverLimitStore counts in primary until it fails, then in fallback. The
// primary is retried once recoverAfter has passed since the last failure.
type FailoverLimitStore struct {
	primary      domain.LimitStore
	fallback     domain.LimitStore
	logger       *zerolog.Logger
	recoverAfter time.Duration

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverLimitStore(primary, fallback domain.LimitStore, logger *zerolog.Logger) *FailoverLimitStore {
	return &FailoverLimitStore{
		primary:      primary,
		fallback:     fallback,
		logger:       logger,
		recoverAfter: defaultRecoverAfter,
	}
}

func (r *FailoverLimitStore) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary limit store failed, falling back to memory")
	r.isDown.Store(true)
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

func (r *FailoverLimitStore) shouldRetry() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastCheck) > r.recoverAfter
}

func (r *FailoverLimitStore) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	if !r.isDown.Load() || r.shouldRetry() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			if r.isDown.Swap(false) {
				r.logger.Info().Msg("Primary limit store recovered")
			}
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}

// Degraded reports whether counting currently happens in the fallback.
func (r *FailoverLimitStore) Degraded() bool { return r.isDown.Load() }

// Ping succeeds while either store can count.
func (r *FailoverLimitStore) Ping(ctx context.Context) error {
	if p, ok := r.primary.(domain.HealthChecker); ok && !r.isDown.Load() {
		if err := p.Ping(ctx); err != nil {
			r.markDown(err)
		}
	}
	if p, ok := r.fallback.(domain.HealthChecker); ok && r.isDown.Load() {
		return p.Ping(ctx)
	}
	return nil
}
