package callms

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/theproductiveprogrammer/call-ms/internal/schedule"
)

// WithTransport sets the transport used for every exchange.
func WithTransport(transport Transport) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

// WithHTTPClient wraps a custom *http.Client as the transport, for callers
// that need to tune connection pooling or TLS.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.transport = NewHTTPTransport(client)
	}
}

// WithMethod sets the default HTTP verb for dispatches.
func WithMethod(method string) Option {
	return func(c *Client) {
		c.method = method
	}
}

// WithSchedule sets the default retry checkpoints: cumulative delays from
// the first failure, strictly increasing. Calling it with no checkpoints
// disables retries.
func WithSchedule(checkpoints ...time.Duration) Option {
	return func(c *Client) {
		c.schedule = checkpoints
	}
}

// WithTimeout sets the default per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHeader adds a default header sent on every dispatch.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithHeaders merges headers into the default header set.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithRegistry sets where the route registry listens.
func WithRegistry(host string, port int) Option {
	return func(c *Client) {
		c.locator.registry = Endpoint{Host: host, Port: port}
	}
}

// WithRouteHost sets the host assigned to endpoints discovered during
// bootstrap, for meshes not co-located on one machine.
func WithRouteHost(host string) Option {
	return func(c *Client) {
		c.locator.host = host
	}
}

// WithStatusPolicy replaces the verdict table consulted for every response.
func WithStatusPolicy(policy StatusPolicy) Option {
	return func(c *Client) {
		c.statusPolicy = policy
	}
}

// WithRateLimit installs a fallback rate limit applied to every service that
// has no dedicated limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if c.limiters == nil {
			c.limiters = NewRateLimiterRegistry(rate.NewLimiter(rate.Limit(rps), burst))
			return
		}
		c.limiters.fallback = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithServiceRateLimit installs a dedicated rate limit for one service.
func WithServiceRateLimit(service string, rps float64, burst int) Option {
	return func(c *Client) {
		if c.limiters == nil {
			c.limiters = NewRateLimiterRegistry(nil)
		}
		c.limiters.SetLimit(service, rate.Limit(rps), burst)
	}
}

// WithCircuitBreaker enables per-service circuit breakers sharing config.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.breakers = newBreakerRegistry(config)
	}
}

// WithMiddleware adds middleware wrapping the transport, outermost first.
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithDebug enables debug logging with the default configuration.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithLogger sets the logger receiving boundary diagnostics.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a console logger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom request ID generator.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration validates the client configuration and returns an
// error naming every problem found.
func (c *Client) ValidateConfiguration() error {
	var problems []string

	problems = append(problems, c.validateScheduleConfig()...)
	problems = append(problems, c.validateRegistryConfig()...)
	problems = append(problems, c.validateTransportConfig()...)
	problems = append(problems, c.validateCircuitBreakerConfig()...)
	problems = append(problems, c.validateDebugConfig()...)
	problems = append(problems, c.validateMiddlewareConfig()...)
	problems = append(problems, c.validateExtremeValues()...)

	if len(problems) > 0 {
		return &CallError{
			Type:      ErrorTypeValidation,
			Message:   "configuration validation failed",
			Retryable: false,
			Cause:     fmt.Errorf("validation errors: %v", problems),
		}
	}

	return nil
}

// validateScheduleConfig validates the retry schedule and call defaults.
func (c *Client) validateScheduleConfig() []string {
	var problems []string

	if err := schedule.Validate(c.schedule); err != nil {
		problems = append(problems, fmt.Sprintf("schedule: %v", err))
	}

	if c.timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}

	if c.method == "" {
		problems = append(problems, "method must not be empty")
	}

	if c.statusPolicy == nil {
		problems = append(problems, "status policy must not be nil")
	}

	return problems
}

// validateRegistryConfig validates the route registry location.
func (c *Client) validateRegistryConfig() []string {
	var problems []string

	if c.locator.registry.Host == "" {
		problems = append(problems, "registry host must not be empty")
	}
	if c.locator.registry.Port <= 0 || c.locator.registry.Port > 65535 {
		problems = append(problems, "registry port must be between 1 and 65535")
	}
	if c.locator.host == "" {
		problems = append(problems, "route host must not be empty")
	}

	return problems
}

// validateTransportConfig validates the transport.
func (c *Client) validateTransportConfig() []string {
	var problems []string

	if c.transport == nil {
		problems = append(problems, "transport cannot be nil")
	}

	return problems
}

// validateCircuitBreakerConfig validates circuit breaker configuration.
func (c *Client) validateCircuitBreakerConfig() []string {
	var problems []string

	if c.breakers != nil {
		if c.breakers.config.FailureThreshold < 0 {
			problems = append(problems, "circuitBreaker FailureThreshold must be non-negative")
		}
		if c.breakers.config.RecoveryTimeout < 0 {
			problems = append(problems, "circuitBreaker RecoveryTimeout must be non-negative")
		}
		if c.breakers.config.SuccessThreshold < 0 {
			problems = append(problems, "circuitBreaker SuccessThreshold must be non-negative")
		}
	}

	return problems
}

// validateDebugConfig validates debug configuration.
func (c *Client) validateDebugConfig() []string {
	var problems []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			problems = append(problems, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			problems = append(problems, "logger must be set when debug is enabled")
		}
	}

	return problems
}

// validateMiddlewareConfig validates middleware configuration.
func (c *Client) validateMiddlewareConfig() []string {
	var problems []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			problems = append(problems, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}

	return problems
}

// validateExtremeValues flags configuration that is technically valid but
// almost certainly a mistake.
func (c *Client) validateExtremeValues() []string {
	var problems []string

	if len(c.schedule) > 100 {
		problems = append(problems, "schedule with more than 100 checkpoints may retry excessively")
	}
	if n := len(c.schedule); n > 0 && c.schedule[n-1] > time.Hour {
		problems = append(problems, "schedule reaching past 1h may cause extremely long delays")
	}
	if c.timeout > 10*time.Minute {
		problems = append(problems, "timeout > 10m may cause calls to hang for too long")
	}

	return problems
}
