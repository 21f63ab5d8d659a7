package authsvc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/mkrupp/promptbank/internal/domain"
	context_ "github.com/mkrupp/promptbank/internal/infra/context"
	"github.com/mkrupp/promptbank/internal/infra/logging"
	http_ "github.com/mkrupp/promptbank/internal/infra/transport/http"
	"github.com/mkrupp/promptbank/internal/util/clock"
)

const maxLoginBodyBytes = 4 << 10

// LoginFailedResponse is the body of a rejected password.
type LoginFailedResponse struct {
	Error     string `json:"error"`
	Remaining int    `json:"remaining"`
}

// VerifyResponse is the body of the session check.
type VerifyResponse struct {
	Authenticated bool `json:"authenticated"`
}

// HTTPTransport handles HTTP requests for the authentication service.
// It provides endpoints for login, session verification and logout.
type HTTPTransport struct {
	authSvc *AuthService
	cookie  http_.SessionCookieConfig
	clock   clock.Clock
	log     logging.Logger
	mux     *http.ServeMux
}

// NewHTTPTransport creates a new HTTPTransport instance.
func NewHTTPTransport(authSvc *AuthService, cookie http_.SessionCookieConfig, clk clock.Clock) *HTTPTransport {
	if clk == nil {
		clk = clock.Real{}
	}

	ht := &HTTPTransport{
		authSvc: authSvc,
		cookie:  cookie,
		clock:   clk,
		log:     logging.GetLogger("svc.authsvc.http_transport"),
		mux:     http.NewServeMux(),
	}

	ht.mux.HandleFunc("POST /api/auth/login", ht.HandleLogin)
	ht.mux.HandleFunc("GET /api/auth/verify", ht.HandleVerify)
	ht.mux.HandleFunc("POST /api/auth/logout", ht.HandleLogout)

	return ht
}

// ServeHTTP implements http.Handler and routes the auth endpoints:
// - POST /api/auth/login: exchange the password for a session cookie
// - GET /api/auth/verify: report whether the session cookie is valid
// - POST /api/auth/logout: clear (and revoke) the session.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// HandleLogin processes login requests.
// Expects a JSON body {"password": "..."}.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogin(w, r)
}

func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	clientID := context_.ClientIDFromContext(r.Context())
	log := ht.log.With(logging.Group("http", "method", r.Method, "path", r.URL.Path, "client", clientID))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "login rejected", "error", err)
		} else {
			log.DebugContext(ctx, "login accepted")
		}
	}(r.Context())

	var req domain.LoginRequest

	// an unreadable body still counts as an attempt and falls through as a wrong password
	decodeErr := http_.DecodeJSON(w, r, maxLoginBodyBytes, &req)

	result, err := ht.authSvc.Login(r.Context(), clientID, req.Password)

	switch {
	case errors.Is(err, domain.ErrRateLimited):
		w.Header().Set("Retry-After", strconv.Itoa(ht.retryAfterSeconds(result.Decision.ResetAt)))
		http_.WriteError(w, http.StatusTooManyRequests, ht.rateLimitMessage(result.Decision))

		return fmt.Errorf("login: %w", err)
	case errors.Is(err, domain.ErrInvalidCredentials):
		_ = http_.WriteJSON(w, http.StatusUnauthorized, LoginFailedResponse{
			Error:     "Incorrect password",
			Remaining: result.Decision.Remaining,
		})

		return errors.Join(fmt.Errorf("login: %w", err), decodeErr)
	case err != nil:
		http_.WriteError(w, http.StatusInternalServerError, "Authentication failed")

		return fmt.Errorf("login: %w", err)
	}

	http_.SetSessionCookie(w, result.Token, ht.authSvc.Tokens().TTL(), ht.cookie)

	if err := http_.WriteJSON(w, http.StatusOK, http_.SuccessResponse{Success: true}); err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	return nil
}

// HandleVerify reports whether the request carries a valid session cookie.
func (ht *HTTPTransport) HandleVerify(w http.ResponseWriter, r *http.Request) {
	authenticated := ht.authSvc.Verify(r.Context(), http_.SessionToken(r))

	if err := http_.WriteJSON(w, http.StatusOK, VerifyResponse{Authenticated: authenticated}); err != nil {
		ht.log.ErrorContext(r.Context(), "verify response failed", "error", err)
	}
}

// HandleLogout clears the session cookie and revokes its token.
func (ht *HTTPTransport) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := ht.authSvc.Logout(r.Context(), http_.SessionToken(r)); err != nil {
		ht.log.ErrorContext(r.Context(), "logout failed", "error", err)
		http_.WriteError(w, http.StatusInternalServerError, "Logout failed")

		return
	}

	http_.ClearSessionCookie(w, ht.cookie)
	_ = http_.WriteJSON(w, http.StatusOK, http_.SuccessResponse{Success: true})
}

// rateLimitMessage appends the wait time to a blacklist denial, whose
// limiter message carries none.
func (ht *HTTPTransport) rateLimitMessage(decision domain.RateLimitDecision) string {
	if !decision.Blacklisted {
		return decision.Message
	}

	minutes := max(1, int(math.Ceil(decision.ResetAt.Sub(ht.clock.Now()).Minutes())))

	return fmt.Sprintf("%s. Try again in %d minutes.", decision.Message, minutes)
}

func (ht *HTTPTransport) retryAfterSeconds(resetAt time.Time) int {
	return max(1, int(math.Ceil(resetAt.Sub(ht.clock.Now()).Seconds())))
}
