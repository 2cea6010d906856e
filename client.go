package callms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/theproductiveprogrammer/call-ms/internal/schedule"
)

// OncePrefix on a logical name strips to the bare name and forces a single
// attempt, for calls whose upstream caller already retries.
const OncePrefix = "once:"

// Client dispatches calls to logical service names, layering a routing
// table, a checkpoint retry scheduler, response classification, per-service
// rate limits and circuit breakers, middleware and metrics over a pluggable
// transport. It is safe for concurrent use.
type Client struct {
	transport    Transport
	middleware   []Middleware
	method       string
	schedule     []time.Duration
	timeout      time.Duration
	headers      map[string]string
	statusPolicy StatusPolicy

	locator  *locator
	limiters *RateLimiterRegistry
	breakers *breakerRegistry

	metrics *MetricsCollector
	debug   *DebugConfig
	logger  Logger

	// sleep is swapped in tests to observe retry gaps without waiting.
	sleep func(time.Duration)

	validationError error
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
// Dispatching with an invalid configuration fails terminally.
func New(options ...Option) *Client {
	client := &Client{
		transport:    NewHTTPTransport(&http.Client{}),
		middleware:   []Middleware{},
		method:       http.MethodPost,
		schedule:     schedule.Default(),
		timeout:      10 * time.Second,
		headers:      map[string]string{},
		statusPolicy: DefaultStatusPolicy,
		locator: &locator{
			registry: DefaultRegistryEndpoint,
			host:     DefaultRouteHost,
		},
		metrics: nil,
		debug:   DefaultDebugConfig(),
		logger:  nil,
		sleep:   time.Sleep,
	}

	for _, option := range options {
		option(client)
	}

	client.locator.fetch = client.fetchRoutes
	client.locator.logger = client.logger
	client.locator.debug = client.debug
	client.locator.metrics = client.metrics

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// Call dispatches params to the named service and waits for the outcome.
func (c *Client) Call(ctx context.Context, service string, params any) (any, error) {
	return c.Do(ctx, &CallRequest{Service: service, Params: params})
}

// Do dispatches a fully specified call request and waits for the outcome.
func (c *Client) Do(ctx context.Context, req *CallRequest) (any, error) {
	value, callErr := c.dispatch(ctx, req)
	if callErr != nil {
		return nil, callErr
	}
	return value, nil
}

// Go dispatches asynchronously. cb receives the outcome exactly once, from a
// separate goroutine; exactly one of its arguments is set.
func (c *Client) Go(ctx context.Context, req *CallRequest, cb Callback) {
	go func() {
		value, callErr := c.dispatch(ctx, req)
		if cb != nil {
			cb(value, callErr)
		}
	}()
}

// Routes returns a copy of the routing table, nil until a bootstrap has
// succeeded.
func (c *Client) Routes() map[string]Endpoint {
	return c.locator.snapshot()
}

// resolvedCall is one dispatch with every per-call option folded over the
// client defaults.
type resolvedCall struct {
	service  string
	path     string
	method   string
	schedule []time.Duration
	timeout  time.Duration
	headers  map[string]string
	body     []byte
	id       string
}

// dispatch resolves and runs one call. A panic anywhere below becomes a
// terminal validation error so an async completion cannot crash the process.
func (c *Client) dispatch(ctx context.Context, req *CallRequest) (value any, callErr *CallError) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			callErr = &CallError{
				Type:      ErrorTypeValidation,
				Message:   fmt.Sprintf("dispatch panic: %v", r),
				Retryable: false,
			}
			if req != nil {
				callErr.Service = req.Service
			}
		}
	}()

	if c.validationError != nil {
		return nil, &CallError{
			Type:      ErrorTypeValidation,
			Message:   "client configuration invalid",
			Retryable: false,
			Cause:     c.validationError,
		}
	}

	resolved, verr := c.resolve(req)
	if verr != nil {
		c.metrics.RecordError(verr.Type, verr.Service)
		return nil, verr
	}

	start := time.Now()
	c.metrics.RecordCallStart(resolved.service)
	if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		c.logger.Debug("dispatching call", "requestID", resolved.id, "service", resolved.service, "method", resolved.method, "attempts", len(resolved.schedule)+1)
	}

	value, callErr = c.run(ctx, resolved)

	c.metrics.RecordCallEnd(resolved.service)
	status := http.StatusOK
	if callErr != nil {
		status = callErr.StatusCode
		c.metrics.RecordError(callErr.Type, resolved.service)
		if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
			c.logger.Debug("call failed", "requestID", resolved.id, "service", resolved.service, "type", callErr.Type, "error", callErr.Message)
		}
	} else if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		c.logger.Debug("call completed", "requestID", resolved.id, "service", resolved.service, "duration", time.Since(start).String())
	}
	c.metrics.RecordCall(resolved.service, status, time.Since(start))

	return value, callErr
}

// resolve folds req over the client defaults and validates the result.
func (c *Client) resolve(req *CallRequest) (*resolvedCall, *CallError) {
	if req == nil {
		return nil, &CallError{Type: ErrorTypeValidation, Message: "nil call request", Retryable: false}
	}

	service := strings.TrimSpace(req.Service)
	once := req.Once
	if strings.HasPrefix(service, OncePrefix) {
		service = strings.TrimPrefix(service, OncePrefix)
		once = true
	}
	if service == "" {
		return nil, &CallError{Type: ErrorTypeValidation, Message: "empty service name", Retryable: false}
	}

	resolved := &resolvedCall{
		service: service,
		path:    "/" + service,
		method:  c.method,
		timeout: c.timeout,
	}
	if service == RouteService {
		resolved.path = registryPath
	}
	if req.Method != "" {
		resolved.method = req.Method
	}
	if req.Timeout > 0 {
		resolved.timeout = req.Timeout
	}

	checkpoints := c.schedule
	if req.Schedule != nil {
		checkpoints = req.Schedule
	}
	if err := schedule.Validate(checkpoints); err != nil {
		return nil, &CallError{
			Type:      ErrorTypeValidation,
			Message:   fmt.Sprintf("invalid retry schedule: %v", err),
			Service:   service,
			Retryable: false,
			Cause:     err,
		}
	}
	if once {
		checkpoints = nil
	}
	resolved.schedule = checkpoints

	resolved.headers = make(map[string]string, len(c.headers)+len(req.Headers))
	for k, v := range c.headers {
		resolved.headers[k] = v
	}
	for k, v := range req.Headers {
		resolved.headers[k] = v
	}

	if req.Params != nil {
		body, err := json.Marshal(req.Params)
		if err != nil {
			return nil, &CallError{
				Type:      ErrorTypeValidation,
				Message:   fmt.Sprintf("encode params: %v", err),
				Service:   service,
				Retryable: false,
				Cause:     err,
			}
		}
		resolved.body = body
	}

	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		resolved.id = c.debug.RequestIDGen()
	}

	return resolved, nil
}

// run drives the retry loop: the initial attempt plus one attempt per
// checkpoint, stopping early on success or a terminal failure. Checkpoints
// are cumulative elapsed-time marks, so the wait before attempt i+1 is the
// gap between consecutive checkpoints. A scheduled wait always elapses in
// full; cancellation is only observed at attempt boundaries.
func (c *Client) run(ctx context.Context, resolved *resolvedCall) (any, *CallError) {
	for attempt := 0; ; attempt++ {
		value, callErr := c.attempt(ctx, resolved, attempt)
		if callErr == nil {
			return value, nil
		}
		callErr.Attempt = attempt

		if !callErr.Retryable || attempt >= len(resolved.schedule) {
			return nil, callErr
		}

		gap := schedule.Gap(resolved.schedule, attempt)
		c.metrics.RecordRetry(resolved.service, attempt+1)
		if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
			c.logger.Info("retrying call", "requestID", resolved.id, "service", resolved.service, "attempt", attempt+1, "of", len(resolved.schedule), "in", gap.String(), "reason", callErr.Message)
		}
		c.sleep(gap)
	}
}

// attempt performs one gated, guarded exchange and classifies its outcome.
func (c *Client) attempt(ctx context.Context, resolved *resolvedCall, attempt int) (any, *CallError) {
	if err := ctx.Err(); err != nil {
		return nil, &CallError{
			Type:      ErrorTypeCanceled,
			Message:   "call canceled: " + err.Error(),
			Service:   resolved.service,
			Retryable: false,
			Cause:     err,
		}
	}

	if !c.limiters.Allow(resolved.service) {
		if c.debug != nil && c.debug.Enabled && c.debug.LogRateLimit && c.logger != nil {
			c.logger.Warn("rate limit exceeded", "requestID", resolved.id, "service", resolved.service)
		}
		return nil, &CallError{
			Type:      ErrorTypeRateLimit,
			Message:   "rate limit exceeded",
			Service:   resolved.service,
			Retryable: false,
		}
	}
	if c.limiters != nil {
		c.metrics.RecordRateLimiterTokens(resolved.service, c.limiters.Tokens(resolved.service))
	}

	var breaker *CircuitBreaker
	if c.breakers != nil {
		breaker = c.breakers.get(resolved.service)
		if !breaker.Allow() {
			if c.debug != nil && c.debug.Enabled && c.debug.LogCircuit && c.logger != nil {
				c.logger.Warn("circuit breaker open", "requestID", resolved.id, "service", resolved.service, "state", breaker.State().String())
			}
			c.metrics.RecordCircuitBreakerState(resolved.service, breaker.State())
			return nil, &CallError{
				Type:      ErrorTypeCircuitOpen,
				Message:   "circuit breaker is open",
				Service:   resolved.service,
				Retryable: false,
			}
		}
	}

	endpoint, ok, err := c.locator.locate(ctx, resolved.service)
	if err != nil {
		cause := asCallError(err)
		return nil, &CallError{
			Type:       cause.Type,
			Message:    "route lookup failed: " + cause.Message,
			Service:    resolved.service,
			StatusCode: cause.StatusCode,
			Retryable:  cause.Retryable,
			Cause:      cause,
		}
	}
	if !ok {
		return nil, &CallError{
			Type:      ErrorTypeNoRoute,
			Message:   fmt.Sprintf("Error - no route to %s found", resolved.service),
			Service:   resolved.service,
			Retryable: false,
		}
	}

	wireReq := &WireRequest{
		Endpoint: endpoint,
		Method:   resolved.method,
		Path:     resolved.path,
		Headers:  resolved.headers,
		Body:     resolved.body,
	}
	resp, xerr := c.exchange(ctx, resolved, wireReq)

	if breaker != nil {
		if xerr != nil || (resp != nil && resp.StatusCode >= 500) {
			breaker.RecordFailure()
		} else {
			breaker.RecordSuccess()
		}
		c.metrics.RecordCircuitBreakerState(resolved.service, breaker.State())
	}

	if xerr != nil {
		var callErr *CallError
		if errors.As(xerr, &callErr) {
			return nil, callErr
		}
		if errors.Is(xerr, context.DeadlineExceeded) {
			return nil, &CallError{
				Type:      ErrorTypeTimeout,
				Message:   fmt.Sprintf("no response within %v", resolved.timeout),
				Service:   resolved.service,
				Retryable: true,
				Cause:     xerr,
			}
		}
		if errors.Is(xerr, context.Canceled) {
			return nil, &CallError{
				Type:      ErrorTypeCanceled,
				Message:   "call canceled: " + xerr.Error(),
				Service:   resolved.service,
				Retryable: false,
				Cause:     xerr,
			}
		}
		// Connection-level failure: classify under status 0 so the policy
		// decides, and the error text becomes the failure message.
		return c.classify(resolved.service, 0, []byte(xerr.Error()))
	}

	return c.classify(resolved.service, resp.StatusCode, resp.Body)
}

// exchange performs one guarded transport exchange. The transport goroutine
// and the attempt deadline race into a single-fire latch, so exactly one
// outcome completes the attempt even when both signal.
func (c *Client) exchange(ctx context.Context, resolved *resolvedCall, req *WireRequest) (*WireResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, resolved.timeout)
	defer cancel()

	comp := newCompletion()
	go func() {
		resp, err := c.roundTrip(attemptCtx, req)
		comp.deliver(resp, err)
	}()

	select {
	case <-comp.fired():
	case <-attemptCtx.Done():
		comp.deliver(nil, c.deadlineError(ctx, resolved))
	}
	return comp.outcome()
}

// deadlineError distinguishes an expired attempt from an abandoned call.
func (c *Client) deadlineError(parent context.Context, resolved *resolvedCall) *CallError {
	if err := parent.Err(); err != nil {
		return &CallError{
			Type:      ErrorTypeCanceled,
			Message:   "call canceled: " + err.Error(),
			Service:   resolved.service,
			Retryable: false,
			Cause:     err,
		}
	}
	return &CallError{
		Type:      ErrorTypeTimeout,
		Message:   fmt.Sprintf("no response within %v", resolved.timeout),
		Service:   resolved.service,
		Retryable: true,
	}
}

// fetchRoutes is the bootstrap dispatch: a self-referential call to the
// reserved registry name, re-entering the full dispatch path so the
// bootstrap enjoys the same retries and classification as any other call.
func (c *Client) fetchRoutes(ctx context.Context) (map[string]Endpoint, error) {
	value, callErr := c.dispatch(ctx, &CallRequest{Service: RouteService})
	if callErr != nil {
		return nil, callErr
	}

	table, err := parseRoutes(value, c.locator.host)
	if err != nil {
		return nil, &CallError{
			Type:      ErrorTypeClient,
			Message:   err.Error(),
			Service:   RouteService,
			Retryable: false,
			Cause:     err,
		}
	}
	return table, nil
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// ValidateConfigurationStrict panics if configuration is invalid.
func (c *Client) ValidateConfigurationStrict() {
	if err := c.ValidateConfiguration(); err != nil {
		panic(fmt.Sprintf("invalid client configuration: %v", err))
	}
}

// MustValidateConfiguration re-runs validation returning an error (no panic).
func (c *Client) MustValidateConfiguration() error {
	return c.ValidateConfiguration()
}
