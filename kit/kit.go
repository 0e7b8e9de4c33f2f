// Package kit holds the small cross-cutting pieces every vitrine feature
// package shares: the Endpoint abstraction, middleware chaining, typed
// context accessors, and the MCP tool adapter.
//
// Usage:
//
//	ep := func(ctx context.Context, req any) (any, error) { ... }
//	wrapped := kit.Chain(logMW, authMW)(ep)
package kit

import "context"

// Endpoint is the transport-agnostic unit of work: every feature operation
// exposed over HTTP or MCP reduces to one of these.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behavior.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first argument is the outermost wrapper.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
