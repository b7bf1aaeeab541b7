// Package obscontext carries request-scoped correlation values for logs and spans.
package obscontext

import (
	"context"
	"strings"
)

type requestIDKey struct{}

type userIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, strings.TrimSpace(id))
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// WithUserID stores the authenticated user id forwarded by the gateway.
func WithUserID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		return ctx
	}
	return context.WithValue(ctx, userIDKey{}, strings.TrimSpace(id))
}

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(userIDKey{}).(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
