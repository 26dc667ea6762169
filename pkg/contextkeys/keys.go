// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the application must be defined here so that
// producers and consumers agree on the key and the stored type.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains *auth.Identity for the authenticated caller.
	// Set by: authz.Middleware after token/credential validation
	// Type: *auth.Identity
	IdentityKey Key = "identity"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger scoped to the request
	// Set by: httputil.LoggingMiddleware
	// Type: *observability.Logger
	LoggerKey Key = "logger"

	// RequestStartTimeKey contains the request start timestamp
	// Used for request duration calculation in audit events
	// Type: time.Time
	RequestStartTimeKey Key = "request_start_time"
)

// WithValue stores a value under a typed key.
func WithValue(ctx context.Context, key Key, value interface{}) context.Context {
	return context.WithValue(ctx, key, value)
}

// Value retrieves a value stored under a typed key, or nil.
func Value(ctx context.Context, key Key) interface{} {
	return ctx.Value(key)
}
