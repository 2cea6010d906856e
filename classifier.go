package callms

import (
	"encoding/json"
	"net/http"
	"strings"
)

// DefaultFailureMessage stands in for empty response bodies and for markup
// error pages that are suppressed before they reach a caller.
const DefaultFailureMessage = "Failed to complete. Please try again after some time."

// Verdict is the classifier's ruling for a transport status.
type Verdict int

const (
	// VerdictSucceed delivers the parsed body as the call result.
	VerdictSucceed Verdict = iota

	// VerdictRetry marks the failure transient; the scheduler may try again.
	VerdictRetry

	// VerdictFail marks the failure terminal.
	VerdictFail
)

// StatusPolicy maps a transport status code to a Verdict. Status 0 stands
// for a connection-level failure that produced no status line. One policy
// governs a whole client; install a custom table with WithStatusPolicy
// instead of branching per call site.
type StatusPolicy func(statusCode int) Verdict

// DefaultStatusPolicy treats 200 as success, connection failures and 500 as
// retryable, and every other status as terminal.
func DefaultStatusPolicy(statusCode int) Verdict {
	switch statusCode {
	case http.StatusOK:
		return VerdictSucceed
	case 0, http.StatusInternalServerError:
		return VerdictRetry
	default:
		return VerdictFail
	}
}

// markupMarkers are the fragments whose presence, three or more case
// insensitively, marks a body as an accidental HTML error page rather than a
// payload. The "<head " entry keeps its trailing space so it cannot shadow
// shorter header-like payload text.
var markupMarkers = []string{
	"<html", "</html>",
	"<head ", "</head>",
	"<body", "</body>",
	"<pre", "</pre>",
	"<span>", "</span>",
	"<div>", "</div>",
}

// looksLikeMarkup reports whether s reads like an HTML error page.
func looksLikeMarkup(s string) bool {
	lower := strings.ToLower(s)
	hits := 0
	for _, marker := range markupMarkers {
		if strings.Contains(lower, marker) {
			hits++
			if hits >= 3 {
				return true
			}
		}
	}
	return false
}

// parseBody turns a raw response body into the value handed to callers:
// structured JSON stays structured, free text is wrapped as {"msg": text},
// and an empty body becomes the default failure message. A body that reads
// like an HTML error page is logged and replaced so raw markup never reaches
// application code.
func (c *Client) parseBody(service string, body []byte) any {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return map[string]any{"msg": DefaultFailureMessage}
	}
	var value any
	if err := json.Unmarshal(body, &value); err == nil {
		return value
	}
	if looksLikeMarkup(text) {
		if c.logger != nil {
			c.logger.Warn("suppressing markup error page", "service", service, "bytes", len(body))
		}
		text = DefaultFailureMessage
	}
	return map[string]any{"msg": text}
}

// classify folds one attempt's raw outcome into either a result value or a
// classified error carrying the retry verdict. Every failure funnels through
// this single decision point.
func (c *Client) classify(service string, statusCode int, body []byte) (any, *CallError) {
	value := c.parseBody(service, body)
	verdict := c.statusPolicy(statusCode)
	if verdict == VerdictSucceed {
		return value, nil
	}

	message := failureMessage(value)
	if looksLikeMarkup(message) {
		if c.logger != nil {
			c.logger.Warn("suppressing markup error page", "service", service, "status", statusCode, "bytes", len(message))
		}
		message = DefaultFailureMessage
	}

	return nil, &CallError{
		Type:       errorTypeForStatus(statusCode),
		Message:    message,
		Service:    service,
		StatusCode: statusCode,
		Retryable:  verdict == VerdictRetry,
	}
}

// failureMessage extracts the human-readable message from a parsed body.
func failureMessage(value any) string {
	switch v := value.(type) {
	case map[string]any:
		if s, ok := v["msg"].(string); ok && s != "" {
			return s
		}
	case string:
		if v != "" {
			return v
		}
	}
	if raw, err := json.Marshal(value); err == nil && len(raw) > 0 && string(raw) != "null" {
		return string(raw)
	}
	return DefaultFailureMessage
}

// errorTypeForStatus names the taxonomy bucket for a failed status.
func errorTypeForStatus(statusCode int) string {
	switch {
	case statusCode == 0:
		return ErrorTypeTransport
	case statusCode >= 500:
		return ErrorTypeServer
	default:
		return ErrorTypeClient
	}
}
