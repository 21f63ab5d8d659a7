package domain

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied password is wrong or missing.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRateLimited is returned when the client exhausted its login attempts.
	ErrRateLimited = errors.New("rate limited")
)

// LoginRequest is the body of a login request.
type LoginRequest struct {
	Password string `json:"password"`
}
