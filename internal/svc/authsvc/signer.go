package authsvc

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/util/clock"
)

// Signer turns session claims into a signed compact token and back.
type Signer interface {
	// Sign issues a token for claims that expires after ttl.
	// IssuedAt and ExpiresAt of claims are set by the signer.
	Sign(claims domain.SessionClaims, ttl time.Duration) (string, error)

	// Verify checks the signature and expiry of token and returns its claims.
	Verify(token string) (domain.SessionClaims, error)
}

// sessionTokenClaims is the JWT payload. The session ID travels as the
// registered "jti" claim.
type sessionTokenClaims struct {
	Authenticated bool `json:"authenticated"`
	jwt.RegisteredClaims
}

// HMACSigner implements Signer with HS256 JSON web tokens.
type HMACSigner struct {
	key   []byte
	clock clock.Clock
}

var _ Signer = (*HMACSigner)(nil)

// NewHMACSigner creates a signer keyed with secret.
// It fails if the secret is shorter than MinSecretLength, so an unusable
// key is caught at startup rather than on the first login.
func NewHMACSigner(secret string, clk clock.Clock) (*HMACSigner, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}

	if clk == nil {
		clk = clock.Real{}
	}

	return &HMACSigner{key: []byte(secret), clock: clk}, nil
}

// Sign implements Signer.Sign.
func (s *HMACSigner) Sign(claims domain.SessionClaims, ttl time.Duration) (string, error) {
	now := s.clock.Now()

	//nolint:exhaustruct
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionTokenClaims{
		Authenticated: claims.Authenticated,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.SessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify implements Signer.Verify. Any failure is reported as ErrInvalidAuthToken.
func (s *HMACSigner) Verify(token string) (domain.SessionClaims, error) {
	if token == "" {
		return domain.SessionClaims{}, domain.ErrNoAuthToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.clock.Now),
	)

	//nolint:exhaustruct
	claims := &sessionTokenClaims{}

	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil {
		return domain.SessionClaims{}, errors.Join(domain.ErrInvalidAuthToken, err)
	}

	if !parsed.Valid || !claims.Authenticated || claims.ID == "" || claims.IssuedAt == nil {
		return domain.SessionClaims{}, domain.ErrInvalidAuthToken
	}

	return domain.SessionClaims{
		Authenticated: claims.Authenticated,
		SessionID:     claims.ID,
		IssuedAt:      claims.IssuedAt.Time,
		ExpiresAt:     claims.ExpiresAt.Time,
	}, nil
}
