package authsvc

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	passwordSaltLength = 16
	passwordKeyLength  = 32
	passwordTime       = 2
	passwordMemoryKB   = 19 * 1024
	passwordThreads    = 1
)

// PasswordVerifier compares candidates against the shared password in constant time.
// Both sides are reduced to fixed-size argon2id digests first, so neither the
// length nor a common prefix of the stored password can be inferred from timing.
type PasswordVerifier struct {
	salt []byte
	hash []byte
}

// NewPasswordVerifier derives the digest of password with a fresh random salt.
func NewPasswordVerifier(password string) (*PasswordVerifier, error) {
	salt := make([]byte, passwordSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	verifier := &PasswordVerifier{salt: salt}
	verifier.hash = verifier.digest(password)

	return verifier, nil
}

// Matches reports whether candidate equals the stored password.
// An empty candidate never matches.
func (v *PasswordVerifier) Matches(candidate string) bool {
	if candidate == "" {
		return false
	}

	return subtle.ConstantTimeCompare(v.digest(candidate), v.hash) == 1
}

func (v *PasswordVerifier) digest(password string) []byte {
	return argon2.IDKey([]byte(password), v.salt, passwordTime, passwordMemoryKB, passwordThreads, passwordKeyLength)
}
