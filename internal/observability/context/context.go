package context

import (
	"context"
	"strconv"
)

type requestIDKey struct{}
type userIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithUserID records the authenticated user for log correlation.
func WithUserID(ctx context.Context, userID int64) context.Context {
	if userID <= 0 {
		return ctx
	}
	return context.WithValue(ctx, userIDKey{}, userID)
}

func UserIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	value, ok := ctx.Value(userIDKey{}).(int64)
	return value, ok && value > 0
}

// UserIDString is the log-friendly form of the user id.
func UserIDString(ctx context.Context) string {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
