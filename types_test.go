package callms

import (
	"context"
	"testing"
	"time"
)

func TestEndpointAddr(t *testing.T) {
	tests := []struct {
		endpoint Endpoint
		want     string
	}{
		{Endpoint{Host: "localhost", Port: 8123}, "localhost:8123"},
		{Endpoint{Host: "10.0.0.7", Port: 80}, "10.0.0.7:80"},
		{Endpoint{Host: "::1", Port: 8123}, "[::1]:8123"},
	}

	for _, tt := range tests {
		if got := tt.endpoint.Addr(); got != tt.want {
			t.Errorf("Addr(%v) = %q, want %q", tt.endpoint, got, tt.want)
		}
	}
}

func TestEndpointIsZero(t *testing.T) {
	if !(Endpoint{}).IsZero() {
		t.Error("Expected the zero endpoint to report IsZero")
	}
	if (Endpoint{Host: "localhost", Port: 8123}).IsZero() {
		t.Error("Expected a located endpoint to not report IsZero")
	}
	if (Endpoint{Port: 8123}).IsZero() {
		t.Error("Expected a port-only endpoint to not report IsZero")
	}
}

func TestTransportFunc(t *testing.T) {
	callCount := 0

	transport := TransportFunc(func(ctx context.Context, req *WireRequest) (*WireResponse, error) {
		callCount++
		return &WireResponse{StatusCode: 200}, nil
	})

	resp, err := transport.Send(context.Background(), &WireRequest{})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestCallRequestZeroValueInherits(t *testing.T) {
	req := &CallRequest{Service: "users"}

	if req.Method != "" {
		t.Errorf("Expected Method to default empty, got %q", req.Method)
	}
	if req.Schedule != nil {
		t.Error("Expected Schedule to default nil (inherit)")
	}
	if req.Timeout != 0 {
		t.Errorf("Expected Timeout to default 0, got %v", req.Timeout)
	}
	if req.Once {
		t.Error("Expected Once to default false")
	}
}

func TestOptionType(t *testing.T) {
	callCount := 0

	option := Option(func(c *Client) {
		callCount++
		c.timeout = 42 * time.Second
	})

	client := &Client{}
	option(client)

	if callCount != 1 {
		t.Errorf("Expected option to be called once, got %d", callCount)
	}
	if client.timeout != 42*time.Second {
		t.Errorf("Expected timeout=42s, got %v", client.timeout)
	}
}
