package callms

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestWithTransport(t *testing.T) {
	custom := TransportFunc(func(ctx context.Context, req *WireRequest) (*WireResponse, error) {
		return &WireResponse{StatusCode: 200}, nil
	})

	client := New(WithTransport(custom))

	if client.transport == nil {
		t.Fatal("Expected transport to be set")
	}
	resp, err := client.transport.Send(context.Background(), &WireRequest{})
	if err != nil || resp.StatusCode != 200 {
		t.Errorf("Expected the custom transport to answer, got %v, %v", resp, err)
	}
}

func TestWithHTTPClient(t *testing.T) {
	customClient := &http.Client{Timeout: 60 * time.Second}

	client := New(WithHTTPClient(customClient))

	transport, ok := client.transport.(*HTTPTransport)
	if !ok {
		t.Fatalf("Expected *HTTPTransport, got %T", client.transport)
	}
	if transport.client != customClient {
		t.Error("Expected custom HTTP client to be wrapped")
	}
}

func TestWithMethod(t *testing.T) {
	client := New(WithMethod(http.MethodGet))

	if client.method != http.MethodGet {
		t.Errorf("Expected method=GET, got %s", client.method)
	}
}

func TestWithSchedule(t *testing.T) {
	client := New(WithSchedule(1*time.Second, 5*time.Second, 15*time.Second))

	if len(client.schedule) != 3 {
		t.Fatalf("Expected 3 checkpoints, got %d", len(client.schedule))
	}
	if client.schedule[2] != 15*time.Second {
		t.Errorf("Expected last checkpoint=15s, got %v", client.schedule[2])
	}
}

func TestWithScheduleNoCheckpointsDisablesRetries(t *testing.T) {
	client := New(WithSchedule())

	if client.schedule == nil {
		t.Fatal("Expected an empty schedule, got nil")
	}
	if len(client.schedule) != 0 {
		t.Errorf("Expected 0 checkpoints, got %d", len(client.schedule))
	}
}

func TestWithTimeout(t *testing.T) {
	timeout := 45 * time.Second
	client := New(WithTimeout(timeout))

	if client.timeout != timeout {
		t.Errorf("Expected timeout=%v, got %v", timeout, client.timeout)
	}
}

func TestWithHeader(t *testing.T) {
	client := New(WithHeader("X-Api-Key", "secret"))

	if client.headers["X-Api-Key"] != "secret" {
		t.Errorf("Expected header to be set, got %v", client.headers)
	}
}

func TestWithHeadersMerges(t *testing.T) {
	client := New(
		WithHeader("X-Api-Key", "secret"),
		WithHeaders(map[string]string{"X-Tenant": "acme", "X-Api-Key": "rotated"}),
	)

	if client.headers["X-Tenant"] != "acme" {
		t.Errorf("Expected merged header, got %v", client.headers)
	}
	if client.headers["X-Api-Key"] != "rotated" {
		t.Errorf("Expected later option to win, got %v", client.headers)
	}
}

func TestWithRegistry(t *testing.T) {
	client := New(WithRegistry("registry.internal", 9000))

	want := Endpoint{Host: "registry.internal", Port: 9000}
	if client.locator.registry != want {
		t.Errorf("Expected registry=%v, got %v", want, client.locator.registry)
	}
}

func TestWithRouteHost(t *testing.T) {
	client := New(WithRouteHost("10.0.0.7"))

	if client.locator.host != "10.0.0.7" {
		t.Errorf("Expected route host=10.0.0.7, got %s", client.locator.host)
	}
}

func TestWithStatusPolicy(t *testing.T) {
	policy := func(statusCode int) Verdict {
		if statusCode == 418 {
			return VerdictSucceed
		}
		return DefaultStatusPolicy(statusCode)
	}

	client := New(WithStatusPolicy(policy))

	if client.statusPolicy == nil {
		t.Fatal("Expected status policy to be set")
	}
	if client.statusPolicy(418) != VerdictSucceed {
		t.Error("Expected the custom policy to be consulted")
	}
}

func TestWithRateLimit(t *testing.T) {
	client := New(WithRateLimit(100, 10))

	if client.limiters == nil {
		t.Fatal("Expected rate limiter registry to be set")
	}
	if client.limiters.fallback == nil {
		t.Error("Expected fallback limiter to be set")
	}
}

func TestWithServiceRateLimit(t *testing.T) {
	client := New(WithServiceRateLimit("users", 5, 1))

	if client.limiters == nil {
		t.Fatal("Expected rate limiter registry to be set")
	}
	if !client.limiters.Allow("users") {
		t.Error("Expected the first request to pass the dedicated limit")
	}
	if client.limiters.Allow("users") {
		t.Error("Expected burst=1 to deny the second immediate request")
	}
	if !client.limiters.Allow("orders") {
		t.Error("Expected services without a dedicated limit to be unrestricted")
	}
}

func TestWithRateLimitAndServiceRateLimit(t *testing.T) {
	client := New(
		WithRateLimit(100, 10),
		WithServiceRateLimit("users", 5, 1),
	)

	if client.limiters.fallback == nil {
		t.Error("Expected fallback limiter to survive the dedicated limit")
	}
	if len(client.limiters.limiters) != 1 {
		t.Errorf("Expected 1 dedicated limiter, got %d", len(client.limiters.limiters))
	}
}

func TestWithCircuitBreaker(t *testing.T) {
	config := CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  45 * time.Second,
		SuccessThreshold: 2,
	}

	client := New(WithCircuitBreaker(config))

	if client.breakers == nil {
		t.Fatal("Expected circuit breakers to be set")
	}
	if client.breakers.config.FailureThreshold != 3 {
		t.Errorf("Expected FailureThreshold=3, got %d", client.breakers.config.FailureThreshold)
	}
	if client.breakers.config.RecoveryTimeout != 45*time.Second {
		t.Errorf("Expected RecoveryTimeout=45s, got %v", client.breakers.config.RecoveryTimeout)
	}
}

func TestWithMiddleware(t *testing.T) {
	passthrough := func(ctx context.Context, req *WireRequest, next Transport) (*WireResponse, error) {
		return next.Send(ctx, req)
	}

	client := New(WithMiddleware(passthrough, passthrough))

	if len(client.middleware) != 2 {
		t.Errorf("Expected 2 middleware functions, got %d", len(client.middleware))
	}
}

func TestWithMetricsCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewMetricsCollectorWithRegistry(registry)

	client := New(WithMetricsCollector(collector))

	if client.metrics != collector {
		t.Error("Expected custom metrics collector to be set")
	}
	if client.locator.metrics != collector {
		t.Error("Expected the locator to share the metrics collector")
	}
}

func TestWithDebugRequiresLogger(t *testing.T) {
	client := New(WithDebug())

	if client.IsValid() {
		t.Fatal("Expected debug without a logger to fail validation")
	}
	if !strings.Contains(client.ValidationError().Error(), "logger") {
		t.Errorf("Expected the validation error to name the logger, got %v", client.ValidationError())
	}
}

func TestWithDebugAndLogger(t *testing.T) {
	client := New(WithDebug(), WithLogger(NewSimpleLogger()))

	if !client.IsValid() {
		t.Fatalf("Expected a valid configuration, got %v", client.ValidationError())
	}
	if !client.debug.Enabled {
		t.Error("Expected debug to be enabled")
	}
}

func TestWithSimpleLogger(t *testing.T) {
	client := New(WithSimpleLogger())

	if !client.debug.Enabled {
		t.Error("Expected debug to be enabled")
	}
	if client.logger == nil {
		t.Error("Expected a logger to be installed")
	}
	if !client.IsValid() {
		t.Errorf("Expected a valid configuration, got %v", client.ValidationError())
	}
}

func TestWithRequestIDGenerator(t *testing.T) {
	client := New(WithRequestIDGenerator(func() string { return "fixed-id" }))

	if client.debug.RequestIDGen() != "fixed-id" {
		t.Error("Expected the custom generator to be used")
	}
}

func TestValidateConfigurationAggregatesProblems(t *testing.T) {
	client := New(
		WithTimeout(-1*time.Second),
		WithMethod(""),
		WithRegistry("", 0),
	)

	err := client.ValidateConfiguration()
	if err == nil {
		t.Fatal("Expected validation to fail")
	}
	callErr := asCallError(err)
	if callErr.Type != ErrorTypeValidation {
		t.Errorf("Expected %s error, got %s", ErrorTypeValidation, callErr.Type)
	}
	for _, fragment := range []string{"timeout", "method", "registry host", "registry port"} {
		if !strings.Contains(callErr.Cause.Error(), fragment) {
			t.Errorf("Expected validation errors to mention %q, got %v", fragment, callErr.Cause)
		}
	}
}

func TestValidateConfigurationRejectsUnorderedSchedule(t *testing.T) {
	client := New(WithSchedule(5*time.Second, 5*time.Second))

	if client.IsValid() {
		t.Fatal("Expected a non-increasing schedule to fail validation")
	}
	if !strings.Contains(client.ValidationError().Error(), "schedule") {
		t.Errorf("Expected the error to name the schedule, got %v", client.ValidationError())
	}
}

func TestValidateConfigurationRejectsNilMiddleware(t *testing.T) {
	client := New(WithMiddleware(nil))

	if client.IsValid() {
		t.Fatal("Expected nil middleware to fail validation")
	}
	if !strings.Contains(client.ValidationError().Error(), "middleware[0]") {
		t.Errorf("Expected the error to name the middleware slot, got %v", client.ValidationError())
	}
}

func TestValidateConfigurationFlagsExtremeValues(t *testing.T) {
	longSchedule := make([]time.Duration, 101)
	for i := range longSchedule {
		longSchedule[i] = time.Duration(i+1) * time.Second
	}

	tests := []struct {
		name     string
		options  []Option
		fragment string
	}{
		{
			name:     "too many checkpoints",
			options:  []Option{WithSchedule(longSchedule...)},
			fragment: "100 checkpoints",
		},
		{
			name:     "schedule reaching past an hour",
			options:  []Option{WithSchedule(30 * time.Minute, 2 * time.Hour)},
			fragment: "past 1h",
		},
		{
			name:     "timeout beyond ten minutes",
			options:  []Option{WithTimeout(11 * time.Minute)},
			fragment: "10m",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := New(tt.options...)
			err := client.ValidationError()
			if err == nil {
				t.Fatal("Expected validation to fail")
			}
			if !strings.Contains(err.Error(), tt.fragment) {
				t.Errorf("Expected error to mention %q, got %v", tt.fragment, err)
			}
		})
	}
}

func TestValidateConfigurationStrictPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected ValidateConfigurationStrict to panic on invalid config")
		}
	}()

	New(WithTimeout(-1 * time.Second)).ValidateConfigurationStrict()
}

func TestMustValidateConfigurationReturnsError(t *testing.T) {
	if err := New(WithTimeout(-1 * time.Second)).MustValidateConfiguration(); err == nil {
		t.Error("Expected MustValidateConfiguration to return the validation error")
	}
	if err := New().MustValidateConfiguration(); err != nil {
		t.Errorf("Expected a default client to validate, got %v", err)
	}
}

func TestOptionsOrderIndependence(t *testing.T) {
	client1 := New(
		WithMethod(http.MethodPut),
		WithTimeout(30*time.Second),
		WithSchedule(time.Second, 2*time.Second),
	)
	client2 := New(
		WithSchedule(time.Second, 2*time.Second),
		WithTimeout(30*time.Second),
		WithMethod(http.MethodPut),
	)

	if client1.method != client2.method {
		t.Error("Option order affected method")
	}
	if client1.timeout != client2.timeout {
		t.Error("Option order affected timeout")
	}
	if len(client1.schedule) != len(client2.schedule) {
		t.Error("Option order affected schedule")
	}
}

func TestDefaultValuesWithoutOptions(t *testing.T) {
	client := New()

	if client.method != http.MethodPost {
		t.Errorf("Expected default method=POST, got %s", client.method)
	}
	if client.timeout != 10*time.Second {
		t.Errorf("Expected default timeout=10s, got %v", client.timeout)
	}
	if len(client.schedule) != 4 {
		t.Errorf("Expected 4 default checkpoints, got %d", len(client.schedule))
	}
	if client.locator.registry != DefaultRegistryEndpoint {
		t.Errorf("Expected default registry=%v, got %v", DefaultRegistryEndpoint, client.locator.registry)
	}
	if client.limiters != nil {
		t.Error("Expected default limiters=nil")
	}
	if client.breakers != nil {
		t.Error("Expected default breakers=nil")
	}
	if client.metrics != nil {
		t.Error("Expected default metrics=nil")
	}
	if len(client.middleware) != 0 {
		t.Errorf("Expected default middleware count=0, got %d", len(client.middleware))
	}
}
