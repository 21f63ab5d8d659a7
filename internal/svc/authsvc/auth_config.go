package authsvc

import (
	"errors"
	"fmt"
	"strings"
	"time"

	http_ "github.com/mkrupp/promptbank/internal/infra/transport/http"
)

const (
	// MinSecretLength is the minimum length of the token signing secret.
	MinSecretLength = 32
	// MinPasswordLength is the minimum length of the shared access password.
	MinPasswordLength = 12

	minSecretUniqueChars = 16
)

var (
	ErrSecretNotSet       = errors.New("AUTH_SECRET is not set")
	ErrSecretTooShort     = fmt.Errorf("AUTH_SECRET is too short (minimum %d characters)", MinSecretLength)
	ErrSecretWeak         = errors.New("AUTH_SECRET contains a weak or default value")
	ErrPasswordNotSet     = errors.New("AUTH_PASSWORD is not set")
	ErrPasswordTooShort   = fmt.Errorf("AUTH_PASSWORD is too short (minimum %d characters)", MinPasswordLength)
	ErrPasswordWeak       = errors.New("AUTH_PASSWORD contains a weak placeholder value")
	ErrSecretEqualsPasswd = errors.New("AUTH_SECRET and AUTH_PASSWORD must be different in production")
	ErrTokenTTLInvalid    = errors.New("AUTH_TOKEN_TTL must be positive and at most 1h")
)

//nolint:gochecknoglobals
var (
	weakSecretValues   = []string{"fallback-secret-for-dev", "secret", "password", "123456", "changeme", "default"}
	weakPasswordValues = []string{"password", "changeme", "123456", "qwerty", "letmein", "default", "admin"}
)

// AuthConfig contains configuration parameters for the authentication service.
// Secret and Password have no defaults: the service refuses to start without them.
type AuthConfig struct {
	// Secret is the HMAC key used to sign session tokens
	Secret string `env:"SECRET"`
	// Password is the shared access password
	Password string `env:"PASSWORD"`
	// TokenTTL is the lifetime of session tokens and cookies
	TokenTTL time.Duration `env:"TOKEN_TTL" default:"1h"`
	// Production enables the checks that only matter for deployed instances
	Production bool `env:"PRODUCTION" default:"true"`

	Cookie http_.SessionCookieConfig
}

// Validate implements config.Validator. All violations are reported together.
func (cfg AuthConfig) Validate() error {
	var errs []error

	switch {
	case cfg.Secret == "":
		errs = append(errs, ErrSecretNotSet)
	case len(cfg.Secret) < MinSecretLength:
		errs = append(errs, ErrSecretTooShort)
	}

	if containsAny(cfg.Secret, weakSecretValues) {
		errs = append(errs, ErrSecretWeak)
	}

	switch {
	case cfg.Password == "":
		errs = append(errs, ErrPasswordNotSet)
	case len(cfg.Password) < MinPasswordLength:
		errs = append(errs, ErrPasswordTooShort)
	}

	if containsAny(cfg.Password, weakPasswordValues) {
		errs = append(errs, ErrPasswordWeak)
	}

	if cfg.Production && cfg.Secret != "" && cfg.Secret == cfg.Password {
		errs = append(errs, ErrSecretEqualsPasswd)
	}

	if cfg.TokenTTL <= 0 || cfg.TokenTTL > time.Hour {
		errs = append(errs, ErrTokenTTLInvalid)
	}

	return errors.Join(errs...)
}

// Warnings returns the non-fatal weaknesses of the configuration.
func (cfg AuthConfig) Warnings() []string {
	var warnings []string

	if uniqueRunes(cfg.Secret) < minSecretUniqueChars {
		warnings = append(warnings, "AUTH_SECRET has low entropy (few unique characters)")
	}

	if !isComplex(cfg.Password) {
		warnings = append(warnings, "AUTH_PASSWORD should contain uppercase, lowercase, numbers, and special characters")
	}

	if !cfg.Production {
		warnings = append(warnings, "running in development mode")
	}

	if !cfg.Cookie.Secure {
		warnings = append(warnings, "session cookie is sent over plain HTTP")
	}

	return warnings
}

func containsAny(value string, needles []string) bool {
	value = strings.ToLower(value)

	for _, needle := range needles {
		if strings.Contains(value, needle) {
			return true
		}
	}

	return false
}

func uniqueRunes(value string) int {
	seen := make(map[rune]struct{}, len(value))
	for _, r := range value {
		seen[r] = struct{}{}
	}

	return len(seen)
}

func isComplex(password string) bool {
	var upper, lower, digit, special bool

	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
	}

	return upper && lower && digit && special
}
