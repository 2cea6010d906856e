package callms

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// HTTPTransport is the default Transport: one HTTP exchange per Send over a
// shared *http.Client.
type HTTPTransport struct {
	client *http.Client
	scheme string
}

// NewHTTPTransport wraps client as a Transport speaking plain HTTP, the
// usual choice inside a mesh. A nil client gets a default with a 30 second
// safety timeout.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{client: client, scheme: "http"}
}

// NewHTTP2Transport returns a Transport speaking HTTP/2 over TLS, for meshes
// whose services terminate TLS themselves.
func NewHTTP2Transport(tlsConfig *tls.Config) *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{Transport: &http2.Transport{TLSClientConfig: tlsConfig}},
		scheme: "https",
	}
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, req *WireRequest) (*WireResponse, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	url := fmt.Sprintf("%s://%s%s", t.scheme, req.Endpoint.Addr(), req.Path)
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, err
	}
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &WireResponse{StatusCode: resp.StatusCode, Body: raw}, nil
}
