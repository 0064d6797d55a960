package observability

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	correlationIDCtxKey contextKey = "correlation_id"
	requestIDCtxKey     contextKey = "request_id"
	userIDCtxKey        contextKey = "user_id"
)

// Attribute keys shared by logs and metric tags.
const (
	CorrelationIDKey = "correlation_id"
	RequestIDKey     = "request_id"
	UserIDKey        = "user_id"
	OperationKey     = "operation"
	DurationKey      = "duration_ms"
	ErrorKey         = "error"
	StatusKey        = "status"
)

// WithCorrelationID stores id, or a fresh UUID when id is empty. The
// correlation id ends up in the metadata of every event a request emits.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, correlationIDCtxKey, id)
}

// CorrelationIDFromContext returns the correlation id or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, correlationIDCtxKey)
}

// WithRequestID stores id, or a fresh UUID when id is empty.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, requestIDCtxKey, id)
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDCtxKey)
}

// WithUserID stores the acting user for log records.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext returns the acting user or "".
func UserIDFromContext(ctx context.Context) string {
	return stringValue(ctx, userIDCtxKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
