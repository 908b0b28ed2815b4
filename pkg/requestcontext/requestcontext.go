// Package requestcontext carries per-request values through context:
// the request ID, client metadata and the authenticated admin identity.
package requestcontext

import "context"

type contextKey int

const (
	requestIDKey contextKey = iota
	clientIPKey
	userAgentKey
	adminIDKey
	scopesKey
)

// WithRequestID returns a context carrying the given request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request ID from the context, or "" if unset.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithClientMetadata returns a context carrying the client IP and User-Agent.
func WithClientMetadata(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey, ip)
	return context.WithValue(ctx, userAgentKey, userAgent)
}

// ClientIP returns the client IP from the context, or "" if unset.
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}

// UserAgent returns the client User-Agent from the context, or "" if unset.
func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(userAgentKey).(string)
	return v
}

// WithAdmin returns a context carrying the authenticated admin identity.
func WithAdmin(ctx context.Context, adminID string, scopes []string) context.Context {
	ctx = context.WithValue(ctx, adminIDKey, adminID)
	return context.WithValue(ctx, scopesKey, scopes)
}

// AdminID returns the authenticated admin ID, or "" if the request is anonymous.
func AdminID(ctx context.Context) string {
	v, _ := ctx.Value(adminIDKey).(string)
	return v
}

// Scopes returns the scopes granted to the authenticated admin.
func Scopes(ctx context.Context) []string {
	v, _ := ctx.Value(scopesKey).([]string)
	return v
}
