// Package requestcontext carries request-scoped identifiers through context.
package requestcontext

import (
	"context"

	id "skillbadge/pkg/domain"
)

type (
	contextKeyRequestID struct{}
	contextKeyUserID    struct{}
)

// WithRequestID stores the request correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID{}, requestID)
}

// RequestID returns the request correlation ID, or "" outside an HTTP request.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyRequestID{}).(string); ok {
		return v
	}
	return ""
}

// WithUserID stores the authenticated user.
func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, contextKeyUserID{}, userID)
}

// UserID returns the authenticated user, or the zero UserID when unauthenticated.
func UserID(ctx context.Context) id.UserID {
	if v, ok := ctx.Value(contextKeyUserID{}).(id.UserID); ok {
		return v
	}
	return ""
}
