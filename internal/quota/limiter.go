// Package quota implements a token bucket limiter for calls against the
// metadata provider, keeping a worker pool inside the provider's request
// quota.
package quota

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter paces provider requests with a shared token bucket.
type Limiter struct {
	limiter *rate.Limiter
}

// Config holds limiter configuration.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// New creates a Limiter. A non-positive rate disables pacing.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(r, burst)}
}

// Wait blocks until a token is available, respecting the context.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("acquire quota token: %w", err)
	}
	return nil
}

// Allow reports whether a request may proceed immediately.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
