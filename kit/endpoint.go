// Package kit holds the transport-neutral endpoint shape shared by the HTTP
// handlers and the MCP tools.
//
// An Endpoint takes a decoded request and returns a response value that the
// transport marshals to JSON. Middlewares wrap endpoints in the usual way.
package kit

import "context"

// Endpoint is a transport-neutral operation.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware decorates an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares. The first one is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// RequestID assigns newID() as the request ID when the context has none.
// HTTP handlers reuse the trace ID; transports without one get a fresh ID.
func RequestID(newID func() string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			if GetRequestID(ctx) == "" {
				ctx = WithRequestID(ctx, newID())
			}
			return next(ctx, req)
		}
	}
}
