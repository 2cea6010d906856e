package callms

import (
	"errors"
	"fmt"
)

// Error taxonomy carried by CallError.Type. The Retryable flag on the error
// is authoritative; the type names the failure class for logs and metrics.
const (
	// ErrorTypeNoRoute marks a logical name the populated routing table has
	// no endpoint for. Terminal: retrying cannot conjure a route.
	ErrorTypeNoRoute = "NoRoute"

	// ErrorTypeTransport marks a connection-level failure that never produced
	// a status line (refused, reset, DNS).
	ErrorTypeTransport = "Transport"

	// ErrorTypeServer marks a 5xx response from the service.
	ErrorTypeServer = "Server"

	// ErrorTypeClient marks any other failed status, typically a 4xx the
	// caller must fix rather than repeat.
	ErrorTypeClient = "Client"

	// ErrorTypeTimeout marks an attempt whose deadline expired before any
	// response arrived.
	ErrorTypeTimeout = "Timeout"

	// ErrorTypeCanceled marks a call abandoned because the caller's context
	// was canceled. Terminal.
	ErrorTypeCanceled = "Canceled"

	// ErrorTypeValidation marks a malformed request or an invalid client
	// configuration. Terminal.
	ErrorTypeValidation = "Validation"

	// ErrorTypeRateLimit marks a dispatch denied by the per-service rate
	// gate. Terminal.
	ErrorTypeRateLimit = "RateLimit"

	// ErrorTypeCircuitOpen marks a dispatch refused because the service's
	// circuit breaker is open. Terminal.
	ErrorTypeCircuitOpen = "CircuitOpen"
)

// CallError is the classified outcome of a failed call. Retryable tells the
// scheduler whether another attempt may follow; an error is never retried in
// place, a fresh attempt produces a fresh CallError.
type CallError struct {
	Type       string
	Message    string
	Service    string
	StatusCode int
	Attempt    int
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Cause)
	}
	if e.Service != "" {
		msg = fmt.Sprintf("[%s] %s", e.Service, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d)", msg, e.Attempt+1)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *CallError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *CallError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*CallError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// IsRetryable reports whether err carries a retryable classification. Errors
// outside the CallError taxonomy are conservatively not retryable.
func IsRetryable(err error) bool {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Retryable
	}
	return false
}

// asCallError coerces err into a *CallError, wrapping foreign errors as
// terminal failures so every path speaks the same taxonomy.
func asCallError(err error) *CallError {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr
	}
	return &CallError{
		Type:      ErrorTypeValidation,
		Message:   err.Error(),
		Retryable: false,
		Cause:     err,
	}
}
