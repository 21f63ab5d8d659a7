package authsvc

import (
	"context"
	"fmt"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/audit"
	"github.com/mkrupp/promptbank/internal/infra/logging"
)

// Limiter throttles login attempts per client identifier.
type Limiter interface {
	Check(ctx context.Context, id string) domain.RateLimitDecision
	Reset(ctx context.Context, id string)
}

// LoginResult describes the outcome of a login attempt.
type LoginResult struct {
	Token    string                   // Session token, set on success only
	Decision domain.RateLimitDecision // Rate limit decision for this attempt
}

// AuthService implements the shared-password login flow.
type AuthService struct {
	tokens   *TokenService
	password *PasswordVerifier
	limiter  Limiter
	events   *audit.SecurityLog
	log      logging.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(
	tokens *TokenService,
	password *PasswordVerifier,
	limiter Limiter,
	events *audit.SecurityLog,
) *AuthService {
	return &AuthService{
		tokens:   tokens,
		password: password,
		limiter:  limiter,
		events:   events,
		log:      logging.GetLogger("svc.authsvc.auth_service"),
	}
}

// Tokens returns the token service used for issued sessions.
func (s *AuthService) Tokens() *TokenService {
	return s.tokens
}

// Login checks the rate limit for clientID, compares the password and issues a token.
// Returns ErrRateLimited or ErrInvalidCredentials together with the rate limit
// decision so the caller can report the wait time or remaining attempts.
// A successful login clears the client's attempt window.
func (s *AuthService) Login(ctx context.Context, clientID, password string) (result LoginResult, err error) {
	log := s.log.With(logging.Group("login", "client", clientID))

	defer func() {
		if err != nil {
			log.DebugContext(ctx, "login failed", "error", err, "remaining", result.Decision.Remaining)
		} else {
			log.DebugContext(ctx, "login successful")
		}
	}()

	result.Decision = s.limiter.Check(ctx, clientID)

	if !result.Decision.Allowed {
		kind := audit.EventLoginRateLimited
		if result.Decision.Blacklisted {
			kind = audit.EventLoginBlacklisted
		}

		s.events.Log(ctx, kind, audit.Details{"client": clientID, "resetAt": result.Decision.ResetAt})

		return result, domain.ErrRateLimited
	}

	if !s.password.Matches(password) {
		s.events.Log(ctx, audit.EventLoginFailed, audit.Details{
			"client":    clientID,
			"remaining": result.Decision.Remaining,
		})

		return result, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(ctx, "")
	if err != nil {
		return result, fmt.Errorf("issue token: %w", err)
	}

	s.limiter.Reset(ctx, clientID)
	s.events.Log(ctx, audit.EventLoginSuccess, audit.Details{"client": clientID})

	result.Token = token

	return result, nil
}

// Verify reports whether token belongs to an authenticated session.
func (s *AuthService) Verify(ctx context.Context, token string) bool {
	return s.tokens.Verify(ctx, token)
}

// Logout revokes token if a revocation list is configured.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	s.events.Log(ctx, audit.EventLogout, nil)

	return nil
}
