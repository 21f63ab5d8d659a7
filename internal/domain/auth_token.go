package domain

import (
	"errors"
	"time"
)

var (
	// ErrNoAuthToken is returned when an authentication token is required but not provided.
	ErrNoAuthToken = errors.New("no auth token")
	// ErrInvalidAuthToken is returned when a token's signature is invalid, it is malformed or it has expired.
	ErrInvalidAuthToken = errors.New("invalid auth token")
	// ErrRevokedAuthToken is returned when a token was revoked before its expiry.
	ErrRevokedAuthToken = errors.New("revoked auth token")
	// ErrUnauthorized is returned when a request lacks a valid session.
	ErrUnauthorized = errors.New("unauthorized")
)

// SessionClaims is the payload carried by a session token.
type SessionClaims struct {
	Authenticated bool      // Always true for tokens issued by a successful login
	SessionID     string    // Token id (jti), also the session identifier
	IssuedAt      time.Time // When the token was issued
	ExpiresAt     time.Time // When the token stops being valid
}
