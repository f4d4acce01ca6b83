package utils

import (
	"context"

	"github.com/lithammer/shortuuid/v3"
)

// CorrelationIDHeader carries the request correlation id in and out of the API
const CorrelationIDHeader = "X-Correlation-ID"

type correlationIDKey struct{}

// NewCorrelationID returns a short random id for a request without one
func NewCorrelationID() string {
	return shortuuid.New()
}

// ContextWithCorrelationID stores id on ctx
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFromContext returns the id stored on ctx, or "" if there is none
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}
