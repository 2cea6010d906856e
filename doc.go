// Package callms dispatches calls to logical service names across a
// microservice mesh, layering composable reliability primitives over a
// pluggable transport:
//
//   - Retries on a cumulative checkpoint schedule (default 1s, 5s, 15s, 25s)
//   - Lazily bootstrapped routing table fed by a route registry
//   - Response classification separating retryable from terminal failures
//   - Rate limiting (token bucket, per service or shared)
//   - Circuit breaker (open / half-open / closed states)
//   - Middleware chain for cross-cutting concerns (auth, logging, tracing, etc.)
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - Callers speak logical names, never hosts and ports
//   - Safe concurrent use of a single *Client instance
//   - Extensibility via user supplied middleware & pluggable transport / metrics
//
// Typical usage:
//
//	client := callms.New(
//	    callms.WithRegistry("localhost", 8111),
//	    callms.WithSchedule(1*time.Second, 5*time.Second, 15*time.Second, 25*time.Second),
//	    callms.WithCircuitBreaker(callms.CircuitBreakerConfig{}),
//	)
//	value, err := client.Call(ctx, "users", map[string]string{"name": "anu"})
//
// The routing table is fetched on first use by dispatching to the reserved
// "--routes" name; prefix a name with "once:" to force a single attempt for
// one call. The library avoids opinionated logging: provide a Logger (e.g. via
// WithSimpleLogger) + enable debug flags selectively (WithDebug / WithDebugConfig)
// for insight without noise.
package callms
