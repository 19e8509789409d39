package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyLoadID    contextKey = "load_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithLoadID adds a load ID to the context
func WithLoadID(ctx context.Context, loadID string) context.Context {
	return context.WithValue(ctx, ContextKeyLoadID, loadID)
}

// LoadIDFromContext extracts the load ID from context
func LoadIDFromContext(ctx context.Context) string {
	if loadID, ok := ctx.Value(ContextKeyLoadID).(string); ok {
		return loadID
	}
	return ""
}
