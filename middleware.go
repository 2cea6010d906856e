package callms

import "context"

// Middleware wraps the transport for cross-cutting concerns such as auth
// headers or tracing. next is the rest of the chain.
type Middleware func(ctx context.Context, req *WireRequest, next Transport) (*WireResponse, error)

// roundTrip sends the request through the middleware chain, outermost first.
func (c *Client) roundTrip(ctx context.Context, req *WireRequest) (*WireResponse, error) {
	if len(c.middleware) == 0 {
		return c.transport.Send(ctx, req)
	}

	current := TransportFunc(c.transport.Send)
	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = TransportFunc(func(ctx context.Context, r *WireRequest) (*WireResponse, error) {
			return middleware(ctx, r, next)
		})
	}

	return current.Send(ctx, req)
}
