// Package tracing provides a lightweight tracing abstraction for the
// presence client.
//
// It defines an internal tracer interface that doesn't depend directly on
// OpenTelemetry APIs, allowing the gateway to emit distributed traces while
// remaining decoupled from specific tracing implementations.
//
// Implementations:
//   - NoopTracer: For tests (zero overhead)
//   - OTelTracer: OpenTelemetry adapter for production
package tracing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span, recording any error that occurred.
	// If err is non-nil, the span is marked as failed.
	// End must be called exactly once, typically via defer.
	End(err error)

	// SetAttributes adds key-value pairs to the span.
	SetAttributes(attrs ...Attribute)

	// AddEvent records a timestamped event within the span.
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans for distributed tracing.
// Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a new span with the given name and attributes.
	// The returned context contains the new span and should be passed to
	// child operations. The span must be ended by calling Span.End().
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Float64 creates a float64 attribute.
func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashUserID returns a SHA-256 hash of the user ID for safe logging in
// traces. This allows correlation of traces without exposing identifiers
// to the tracing backend.
func HashUserID(userID string) string {
	if userID == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(hash[:8])
}

// Span names used by the action gateway.
const (
	SpanFetchUsers   = "presence.fetch_users"
	SpanFetchStats   = "presence.fetch_stats"
	SpanFetchTenant  = "presence.fetch_tenant"
	SpanFetchSession = "presence.fetch_session"
	SpanSetOffline   = "presence.set_offline"
	SpanBulkOffline  = "presence.bulk_offline"
	SpanCleanup      = "presence.cleanup"
	SpanRefresh      = "presence.refresh"
)

// Attribute keys used by the action gateway.
const (
	AttrUserHash      = "user.hash"
	AttrTenantID      = "tenant.id"
	AttrHTTPStatus    = "http.status_code"
	AttrBulkRequested = "bulk.requested"
	AttrBulkUpdated   = "bulk.updated"
	AttrBulkFailed    = "bulk.failed"
	AttrFilterLimit   = "filter.limit"
	AttrFilterOffset  = "filter.offset"
)

// Event names used by the action gateway.
const (
	EventOptimisticApplied = "presence.optimistic_applied"
)
