package core

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	// RequestIDKey is the context key for the request ID (uuid.UUID). The same ID is shared between the request and response
	RequestIDKey contextKey = "RequestID"
	// RequestTimeKey is the context key for the request timestamp (time.Time), used to report latency
	RequestTimeKey contextKey = "RequestTime"
	// SkipKey is the context key for the flag (bool) to indicate that the response should not be styled,
	// e.g. the CA download served by the proxy itself
	SkipKey contextKey = "Skip"
)

// ContextWithRequestID returns a new request with a request ID in the context
func ContextWithRequestID(req *http.Request, requestId uuid.UUID) *http.Request {
	ctx := context.WithValue(req.Context(), RequestIDKey, requestId)
	return req.WithContext(ctx)
}

// RequestIDFromContext returns the request ID from the context if it exists
func RequestIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(RequestIDKey).(uuid.UUID)
	return id, ok
}

// ContextWithRequestTime returns a new request with the request time in the context
func ContextWithRequestTime(req *http.Request, requestTime time.Time) *http.Request {
	ctx := context.WithValue(req.Context(), RequestTimeKey, requestTime)
	return req.WithContext(ctx)
}

// RequestTimeFromContext returns the request time from the context if it exists
func RequestTimeFromContext(ctx context.Context) (time.Time, bool) {
	timestamp, ok := ctx.Value(RequestTimeKey).(time.Time)
	return timestamp, ok
}

// ContextWithSkipFlag returns a new request with the skipped flag in the context
func ContextWithSkipFlag(req *http.Request, skip bool) *http.Request {
	ctx := context.WithValue(req.Context(), SkipKey, skip)
	return req.WithContext(ctx)
}

// SkipFlagFromContext returns the value of the skipped flag from the context if it exists
func SkipFlagFromContext(ctx context.Context) (bool, bool) {
	skip, ok := ctx.Value(SkipKey).(bool)
	return skip, ok
}
