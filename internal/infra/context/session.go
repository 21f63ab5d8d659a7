package context

import (
	"context"
)

const (
	contextKeySessionID = contextKey("sessionID")
	contextKeyClientID  = contextKey("clientID")
)

// SessionIDFromContext extracts the session ID (token jti) of an authenticated request.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(contextKeySessionID).(string)

	return sessionID, ok
}

// WithSessionID creates a new context carrying the session ID of the verified token.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, contextKeySessionID, sessionID)
}

// ClientIDFromContext extracts the client identifier (forwarded IP) of the request.
// Returns "unknown" when no identifier was recorded.
func ClientIDFromContext(ctx context.Context) string {
	if clientID, ok := ctx.Value(contextKeyClientID).(string); ok && clientID != "" {
		return clientID
	}

	return "unknown"
}

// WithClientID creates a new context carrying the client identifier.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, contextKeyClientID, clientID)
}
