package domain

import (
	"context"
	"time"
)

// EventPublisher receives domain events raised by the services.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// LimitStore counts hits per key in fixed windows. CheckRateLimit records one
// hit and reports whether the key is still within limit for the current window.
type LimitStore interface {
	CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}

// HealthChecker is implemented by dependencies probed by the readiness check.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
