package sources

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter wraps a rate.Limiter that speeds up while an API answers
// and backs off when it returns 429. The rate stays between a quarter of and
// twice the configured rate.
type AdaptiveLimiter struct {
	name    string
	limiter *rate.Limiter

	mu      sync.Mutex
	current rate.Limit
	maxRate rate.Limit
	minRate rate.Limit
}

// NewAdaptiveLimiter creates a limiter starting at r requests per second.
func NewAdaptiveLimiter(name string, r rate.Limit, burst int) *AdaptiveLimiter {
	if burst < 1 {
		burst = 1
	}
	return &AdaptiveLimiter{
		name:    name,
		limiter: rate.NewLimiter(r, burst),
		current: r,
		maxRate: r * 2,
		minRate: r / 4,
	}
}

// Wait blocks until a request may be sent.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate by 20%.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.set(min(a.current*1.2, a.maxRate))
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.set(max(a.current*0.5, a.minRate))
	zap.L().Warn("sources: reducing request rate after 429",
		zap.String("source", a.name),
		zap.Float64("rate", float64(a.current)),
	)
}

func (a *AdaptiveLimiter) set(r rate.Limit) {
	a.current = r
	a.limiter.SetLimit(r)
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}
