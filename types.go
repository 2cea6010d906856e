package callms

import (
	"context"
	"net"
	"strconv"
	"time"
)

// Endpoint is the resolved network location backing a logical service name.
type Endpoint struct {
	Host string
	Port int
}

// Addr renders the endpoint as host:port.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// IsZero reports whether the endpoint carries no location.
func (e Endpoint) IsZero() bool {
	return e.Host == "" && e.Port == 0
}

// CallRequest describes one logical call. Zero-valued fields inherit the
// client defaults, so most callers only set Service and Params.
type CallRequest struct {
	// Service is the logical name of the target service. A "once:" prefix
	// is stripped and implies Once.
	Service string

	// Params is the call payload, JSON-encoded into the request body.
	// nil sends an empty body.
	Params any

	// Method overrides the HTTP verb for this call.
	Method string

	// Schedule overrides the retry checkpoints: cumulative delays measured
	// from the first failure, strictly increasing. An empty non-nil schedule
	// disables retries for this call; nil inherits the client schedule.
	Schedule []time.Duration

	// Timeout bounds each individual attempt.
	Timeout time.Duration

	// Headers are merged over the client defaults; the request wins on
	// conflict.
	Headers map[string]string

	// Once forces a single attempt regardless of any schedule. Set it on
	// calls whose upstream caller already retries, so retries do not
	// multiply across hops.
	Once bool
}

// WireRequest is one concrete exchange handed to the transport.
type WireRequest struct {
	Endpoint Endpoint
	Method   string
	Path     string
	Headers  map[string]string
	Body     []byte
}

// WireResponse is the raw outcome of one exchange. StatusCode 0 is reserved
// for connection-level failures that never produced a status line.
type WireResponse struct {
	StatusCode int
	Body       []byte
}

// Transport issues a single request/response exchange against a resolved
// endpoint. Implementations must honor ctx cancellation so a timed-out
// attempt releases its underlying connection.
type Transport interface {
	Send(ctx context.Context, req *WireRequest) (*WireResponse, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *WireRequest) (*WireResponse, error)

// Send implements Transport.
func (f TransportFunc) Send(ctx context.Context, req *WireRequest) (*WireResponse, error) {
	return f(ctx, req)
}

// Callback receives the outcome of an asynchronous dispatch exactly once.
// Exactly one of result and err is set.
type Callback func(result any, err *CallError)

// Option configures a Client.
type Option func(*Client)
