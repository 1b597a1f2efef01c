// Package middleware holds the HTTP middleware shared by every route:
// request IDs, request-scoped logging, and Prometheus instrumentation.
package middleware

// contextKey is a private type for context keys to avoid collisions
type contextKey string
