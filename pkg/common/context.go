package common

import (
	"context"
	"time"
)

// ContextKey represents a context key type
type ContextKey string

// Context keys
const (
	ContextKeyUserID    ContextKey = "user_id"
	ContextKeyRequestID ContextKey = "request_id"
	ContextKeyStartTime ContextKey = "start_time"
)

// WithUserID adds user ID to context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(ContextKeyUserID).(string)
	return userID, ok && userID != ""
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// GetRequestID extracts request ID from context
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(ContextKeyRequestID).(string)
	return requestID, ok && requestID != ""
}

// WithStartTime adds start time to context
func WithStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyStartTime, startTime)
}

// GetElapsedTime returns time since WithStartTime, or zero if unset.
func GetElapsedTime(ctx context.Context) time.Duration {
	start, ok := ctx.Value(ContextKeyStartTime).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start)
}

// EnrichContext adds common metadata to context
func EnrichContext(ctx context.Context, userID, requestID string) context.Context {
	ctx = WithUserID(ctx, userID)
	ctx = WithRequestID(ctx, requestID)
	ctx = WithStartTime(ctx, time.Now())
	return ctx
}

// ContextMetadata contains all context metadata
type ContextMetadata struct {
	UserID    string        `json:"user_id,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// ExtractMetadata extracts all metadata from context
func ExtractMetadata(ctx context.Context) ContextMetadata {
	meta := ContextMetadata{}
	if userID, ok := GetUserID(ctx); ok {
		meta.UserID = userID
	}
	if requestID, ok := GetRequestID(ctx); ok {
		meta.RequestID = requestID
	}
	meta.Duration = GetElapsedTime(ctx)
	return meta
}
