package callms

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/theproductiveprogrammer/call-ms/internal/flight"
)

// RouteService is the reserved logical name that resolves to the registry
// itself instead of going through the routing table. Dispatching to it is
// how the table gets populated without a chicken-and-egg problem.
const RouteService = "--routes"

// registryPath is the well-known path the registry answers route dumps on.
const registryPath = "/routes"

// DefaultRegistryEndpoint is where the route registry is expected to listen
// unless WithRegistry says otherwise.
var DefaultRegistryEndpoint = Endpoint{Host: "localhost", Port: 8111}

// DefaultRouteHost is the host assigned to endpoints discovered during
// bootstrap; the registry only reports ports.
const DefaultRouteHost = "localhost"

// routeRecord is one entry of the registry's route dump.
type routeRecord struct {
	Type string `json:"type"`
	Port int    `json:"port"`
}

// locator resolves logical names to endpoints. The routing table starts
// absent and is populated by a bootstrap dispatch to the registry, issued
// through the owning client itself; lookups racing an absent table share a
// single in-flight bootstrap. A failed bootstrap leaves the table absent so
// the next call tries again.
type locator struct {
	registry Endpoint
	host     string

	mu    sync.RWMutex
	table map[string]Endpoint

	boot  flight.Group[map[string]Endpoint]
	fetch func(ctx context.Context) (map[string]Endpoint, error)

	logger  Logger
	debug   *DebugConfig
	metrics *MetricsCollector
}

// locate resolves service to an endpoint. ok=false with a nil error means
// the populated table holds no route, a terminal condition the dispatcher
// names for the caller. A non-nil error is a failed bootstrap.
func (l *locator) locate(ctx context.Context, service string) (Endpoint, bool, error) {
	if service == RouteService {
		return l.registry, true, nil
	}

	l.mu.RLock()
	table := l.table
	l.mu.RUnlock()

	if table == nil {
		fetched, err, _ := l.boot.Do("bootstrap", func() (map[string]Endpoint, error) {
			// Re-check under the flight: a caller that lost the race to a
			// just-finished bootstrap must not trigger another one.
			l.mu.RLock()
			existing := l.table
			l.mu.RUnlock()
			if existing != nil {
				return existing, nil
			}
			return l.bootstrap(ctx)
		})
		if err != nil {
			return Endpoint{}, false, err
		}
		table = fetched
	}

	endpoint, ok := table[service]
	if ok {
		l.metrics.RecordRouteHit(service)
	} else {
		l.metrics.RecordRouteMiss(service)
	}
	return endpoint, ok, nil
}

// bootstrap performs the registry dispatch and publishes the table.
func (l *locator) bootstrap(ctx context.Context) (map[string]Endpoint, error) {
	if l.debug != nil && l.debug.Enabled && l.debug.LogRoutes && l.logger != nil {
		l.logger.Info("bootstrapping routing table", "registry", l.registry.Addr())
	}

	table, err := l.fetch(ctx)
	if err != nil {
		l.metrics.RecordBootstrap("failure")
		if l.logger != nil {
			l.logger.Error("routing table bootstrap failed", "registry", l.registry.Addr(), "error", err.Error())
		}
		return nil, err
	}

	l.mu.Lock()
	l.table = table
	l.mu.Unlock()

	l.metrics.RecordBootstrap("success")
	l.metrics.RecordRouteTableSize(len(table))
	if l.debug != nil && l.debug.Enabled && l.debug.LogRoutes && l.logger != nil {
		l.logger.Info("routing table populated", "routes", len(table))
	}
	return table, nil
}

// snapshot returns the current table for inspection; nil means no bootstrap
// has succeeded yet.
func (l *locator) snapshot() map[string]Endpoint {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.table == nil {
		return nil
	}
	out := make(map[string]Endpoint, len(l.table))
	for name, endpoint := range l.table {
		out[name] = endpoint
	}
	return out
}

// parseRoutes converts a classified registry response into a routing table.
// Records without a name or a usable port are skipped; registries may dump
// entries for transports this client does not speak.
func parseRoutes(value any, host string) (map[string]Endpoint, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("re-encode registry response: %w", err)
	}
	var records []routeRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("registry response is not a route list: %w", err)
	}

	table := make(map[string]Endpoint, len(records))
	for _, record := range records {
		if record.Type == "" || record.Port <= 0 {
			continue
		}
		table[record.Type] = Endpoint{Host: host, Port: record.Port}
	}
	return table, nil
}
