package callms

import (
	"sync"
	"sync/atomic"
	"time"
)

// CircuitState is the breaker position for one service.
type CircuitState int

const (
	// StateClosed lets dispatches through and counts failures.
	StateClosed CircuitState = iota

	// StateOpen refuses dispatches until the recovery timeout elapses.
	StateOpen

	// StateHalfOpen lets probe dispatches through to test recovery.
	StateHalfOpen
)

// String names the state for logs and metrics.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes the per-service breakers. Zero fields take the
// defaults noted on each.
type CircuitBreakerConfig struct {
	// FailureThreshold is the failure count that opens the circuit.
	// Default 5.
	FailureThreshold int

	// RecoveryTimeout is how long an open circuit waits before letting a
	// probe through. Default 60s.
	RecoveryTimeout time.Duration

	// SuccessThreshold is the probe-success count that closes a half-open
	// circuit. Default 2.
	SuccessThreshold int
}

// CircuitBreaker tracks the health of one service with lock-free state
// transitions, so the dispatch hot path never blocks on it.
type CircuitBreaker struct {
	config      CircuitBreakerConfig
	state       int64
	failures    int64
	lastFailure int64
	successes   int64
}

// NewCircuitBreaker creates a breaker, filling zero config fields with the
// defaults.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}
	return &CircuitBreaker{
		config: config,
		state:  int64(StateClosed),
	}
}

// Allow reports whether a dispatch may go through. An open circuit past its
// recovery timeout transitions to half-open and admits the caller as a probe.
func (cb *CircuitBreaker) Allow() bool {
	now := time.Now().UnixNano()

	switch CircuitState(atomic.LoadInt64(&cb.state)) {
	case StateClosed:
		return true
	case StateOpen:
		lastFailure := atomic.LoadInt64(&cb.lastFailure)
		if now-lastFailure >= int64(cb.config.RecoveryTimeout) {
			if atomic.CompareAndSwapInt64(&cb.state, int64(StateOpen), int64(StateHalfOpen)) {
				atomic.StoreInt64(&cb.successes, 0)
				return true
			}
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

// RecordFailure counts a failed exchange. Reaching the failure threshold
// opens the circuit; any failure while half-open reopens it immediately.
func (cb *CircuitBreaker) RecordFailure() {
	atomic.StoreInt64(&cb.lastFailure, time.Now().UnixNano())

	switch CircuitState(atomic.LoadInt64(&cb.state)) {
	case StateClosed:
		if atomic.AddInt64(&cb.failures, 1) >= int64(cb.config.FailureThreshold) {
			atomic.StoreInt64(&cb.state, int64(StateOpen))
		}
	case StateHalfOpen:
		atomic.AddInt64(&cb.failures, 1)
		atomic.StoreInt64(&cb.state, int64(StateOpen))
		atomic.StoreInt64(&cb.successes, 0)
	}
}

// RecordSuccess counts a successful exchange. Enough probe successes close a
// half-open circuit and reset the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	if CircuitState(atomic.LoadInt64(&cb.state)) != StateHalfOpen {
		return
	}
	if atomic.AddInt64(&cb.successes, 1) >= int64(cb.config.SuccessThreshold) {
		atomic.StoreInt64(&cb.state, int64(StateClosed))
		atomic.StoreInt64(&cb.failures, 0)
		atomic.StoreInt64(&cb.successes, 0)
	}
}

// State reports the current breaker position.
func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(atomic.LoadInt64(&cb.state))
}

// breakerRegistry lazily creates one breaker per logical service, all sharing
// the same config. A nil registry means breakers are disabled.
type breakerRegistry struct {
	mu       sync.Mutex
	config   CircuitBreakerConfig
	breakers map[string]*CircuitBreaker
}

func newBreakerRegistry(config CircuitBreakerConfig) *breakerRegistry {
	return &breakerRegistry{
		config:   config,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// get returns the breaker for service, creating it on first use.
func (r *breakerRegistry) get(service string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[service]
	if !ok {
		cb = NewCircuitBreaker(r.config)
		r.breakers[service] = cb
	}
	return cb
}
