// Package kit is the transport-neutral endpoint layer shared by the HTTP and
// MCP surfaces. An Endpoint takes a decoded request and returns a value that
// the transport serialises.
package kit

import "context"

// Endpoint is one operation, independent of how it is invoked.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware decorates an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so that the first one is outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
