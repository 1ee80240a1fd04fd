// Package correlation carries the per-request correlation ID through
// context so handlers, loggers, queue workers and webhook deliveries can tie
// their output to the request that triggered them.
package correlation

import "context"

// Header is the HTTP header that carries the correlation ID.
const Header = "X-Correlation-Id"

type contextKey string

const idKey = contextKey("correlation-id")

// WithID returns a context carrying the given correlation ID. Queue workers
// use this to re-establish the publishing request's context on the consuming
// side.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey, id)
}

// ID extracts the correlation ID from the context.
// Returns empty string if not found.
func ID(ctx context.Context) string {
	if id, ok := ctx.Value(idKey).(string); ok {
		return id
	}
	return ""
}
