package http

import (
	"context"
	"net/http"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/audit"
	context_ "github.com/mkrupp/promptbank/internal/infra/context"
	"github.com/mkrupp/promptbank/internal/infra/logging"
)

// SessionVerifier checks session tokens.
type SessionVerifier interface {
	// Claims returns the claims of a valid token or an error for any invalid one.
	Claims(ctx context.Context, token string) (domain.SessionClaims, error)
}

// AuthorizingMiddleware creates middleware that requires a valid session cookie.
// Requests without one are answered with 401 {"error":"Unauthorized"} and never
// reach next. On success the session ID is added to the request context.
func AuthorizingMiddleware(
	next http.Handler,
	verifier SessionVerifier,
	events *audit.SecurityLog,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, err := verifier.Claims(ctx, SessionToken(r))
		if err != nil {
			log.DebugContext(ctx, "request rejected", "error", err, logging.Group("http",
				"method", r.Method,
				"path", r.URL.Path,
			))
			events.Log(ctx, audit.EventUnauthorized, audit.Details{"path": r.URL.Path})
			WriteError(w, http.StatusUnauthorized, "Unauthorized")

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithSessionID(ctx, claims.SessionID)))
	})
}
