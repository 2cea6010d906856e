package callms

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterRegistry holds one token bucket per logical service plus an
// optional fallback bucket for services without their own. A nil registry
// means rate limiting is disabled and every dispatch is allowed.
type RateLimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	fallback *rate.Limiter
}

// NewRateLimiterRegistry creates a registry with the given fallback limiter.
// A nil fallback leaves services without a dedicated bucket unrestricted.
func NewRateLimiterRegistry(fallback *rate.Limiter) *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limiters: make(map[string]*rate.Limiter),
		fallback: fallback,
	}
}

// SetLimit installs a dedicated bucket for service, replacing any previous
// one.
func (r *RateLimiterRegistry) SetLimit(service string, limit rate.Limit, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[service] = rate.NewLimiter(limit, burst)
}

// limiterFor returns the bucket governing service, or nil when unrestricted.
func (r *RateLimiterRegistry) limiterFor(service string) *rate.Limiter {
	r.mu.RLock()
	limiter, ok := r.limiters[service]
	r.mu.RUnlock()
	if ok {
		return limiter
	}
	return r.fallback
}

// Allow reports whether a dispatch for service may proceed now, consuming a
// token when it may.
func (r *RateLimiterRegistry) Allow(service string) bool {
	if r == nil {
		return true
	}
	limiter := r.limiterFor(service)
	if limiter == nil {
		return true
	}
	return limiter.Allow()
}

// Tokens reports the tokens currently available to service, for metrics.
// Unrestricted services report -1.
func (r *RateLimiterRegistry) Tokens(service string) float64 {
	if r == nil {
		return -1
	}
	limiter := r.limiterFor(service)
	if limiter == nil {
		return -1
	}
	return limiter.Tokens()
}
