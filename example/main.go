// Minimal example for call-ms demonstrating a basic dispatch by logical name
// plus a slightly more advanced client showing a custom status policy,
// middleware, metrics and circuit breaking. The mesh here is local: a route
// registry and a users service on real listeners. See README for extended
// patterns.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	callms "github.com/theproductiveprogrammer/call-ms"
)

const (
	registryPort = 8111
	usersPort    = 8123
)

func main() {
	startMesh()

	// --- Basic client (batteries-included defaults) ---
	basic := callms.New(
		callms.WithRegistry("localhost", registryPort),
		callms.WithSchedule(1*time.Second, 5*time.Second, 15*time.Second, 25*time.Second),
		callms.WithSimpleLogger(),
	)
	if !basic.IsValid() {
		log.Fatalf("invalid basic client config: %v", basic.ValidationError())
	}
	ctx := context.Background()
	value, err := basic.Call(ctx, "users", map[string]string{"name": "anu"})
	if err != nil {
		log.Fatalf("basic call failed: %v", err)
	}
	fmt.Println("basic call returned", value)

	// --- Advanced snippet: custom status policy + middleware + metrics ---
	advanced := callms.New(
		callms.WithRegistry("localhost", registryPort),
		callms.WithStatusPolicy(func(statusCode int) callms.Verdict {
			switch {
			case statusCode == http.StatusOK || statusCode == http.StatusCreated:
				return callms.VerdictSucceed
			case statusCode == 0 || statusCode >= 500:
				return callms.VerdictRetry
			default:
				return callms.VerdictFail
			}
		}),
		callms.WithMiddleware(func(ctx context.Context, req *callms.WireRequest, next callms.Transport) (*callms.WireResponse, error) {
			start := time.Now()
			resp, err := next.Send(ctx, req)
			fmt.Printf("request to %s took %v\n", req.Endpoint.Addr(), time.Since(start))
			return resp, err
		}),
		callms.WithMetrics(),
		callms.WithCircuitBreaker(callms.CircuitBreakerConfig{FailureThreshold: 3, RecoveryTimeout: 5 * time.Second, SuccessThreshold: 1}),
	)
	// The once: prefix forces a single attempt for this call.
	v2, err := advanced.Call(ctx, "once:users", map[string]string{"name": "raj"})
	if err != nil {
		log.Fatalf("advanced call failed: %v", err)
	}
	fmt.Println("advanced call returned", v2)
}

// startMesh runs a local route registry plus a users service.
func startMesh() {
	registry := http.NewServeMux()
	registry.HandleFunc("/routes", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"type": "users", "port": usersPort},
		})
	})
	go func() {
		log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", registryPort), registry))
	}()

	users := http.NewServeMux()
	users.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		var params map[string]string
		json.NewDecoder(r.Body).Decode(&params)
		json.NewEncoder(w).Encode(map[string]any{"user": params["name"], "status": "active"})
	})
	go func() {
		log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", usersPort), users))
	}()

	// Let the listeners come up.
	time.Sleep(100 * time.Millisecond)
}
