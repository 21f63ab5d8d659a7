package http

import (
	"net"
	"net/http"
	"strings"

	context_ "github.com/mkrupp/promptbank/internal/infra/context"
)

// ClientIdentifier derives the rate limiting key of a request: the first
// X-Forwarded-For entry, then X-Real-IP, then the peer address.
func ClientIdentifier(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}

	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}

// ClientIdentifyingMiddleware stores the request's client identifier in its context.
func ClientIdentifyingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context_.WithClientID(r.Context(), ClientIdentifier(r))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
