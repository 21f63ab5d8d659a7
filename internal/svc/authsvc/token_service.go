package authsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/logging"
	"github.com/mkrupp/promptbank/internal/repo/revocation"
)

// TokenService issues and verifies session tokens.
// Tokens are stateless unless a revocation list is configured.
type TokenService struct {
	signer      Signer
	revocations revocation.Repository
	ttl         time.Duration
	log         logging.Logger
}

// NewTokenService creates a TokenService issuing tokens valid for ttl.
// A nil revocations repository disables revocation.
func NewTokenService(signer Signer, revocations revocation.Repository, ttl time.Duration) *TokenService {
	if revocations == nil {
		revocations = revocation.NopRepository{}
	}

	return &TokenService{
		signer:      signer,
		revocations: revocations,
		ttl:         ttl,
		log:         logging.GetLogger("svc.authsvc.token_service"),
	}
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed token for sessionID, generating a random one if empty.
func (s *TokenService) Issue(ctx context.Context, sessionID string) (_ string, err error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	defer func() {
		log := s.log.With(logging.Group("token", "jti", sessionID))
		if err != nil {
			log.ErrorContext(ctx, "issue token failed", "error", err)
		} else {
			log.DebugContext(ctx, "token issued")
		}
	}()

	//nolint:exhaustruct
	token, err := s.signer.Sign(domain.SessionClaims{Authenticated: true, SessionID: sessionID}, s.ttl)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}

	return token, nil
}

// Verify reports whether token is a valid, unexpired and unrevoked session token.
// It never fails: every problem simply yields false.
func (s *TokenService) Verify(ctx context.Context, token string) bool {
	_, err := s.Claims(ctx, token)

	return err == nil
}

// Claims verifies token and returns its claims.
// A revocation list that cannot be consulted rejects the token.
func (s *TokenService) Claims(ctx context.Context, token string) (domain.SessionClaims, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		return domain.SessionClaims{}, fmt.Errorf("verify: %w", err)
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.SessionID)
	if err != nil {
		s.log.ErrorContext(ctx, "revocation check failed", "error", err)

		return domain.SessionClaims{}, errors.Join(domain.ErrInvalidAuthToken, err)
	}

	if revoked {
		return domain.SessionClaims{}, domain.ErrRevokedAuthToken
	}

	return claims, nil
}

// Revoke invalidates token until its natural expiry.
// Tokens that are already invalid need no revocation and are ignored.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	claims, err := s.signer.Verify(token)
	if err != nil {
		return nil //nolint:nilerr
	}

	if err := s.revocations.Revoke(ctx, claims.SessionID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}

	return nil
}
