package authsvc_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	http_ "github.com/mkrupp/promptbank/internal/infra/transport/http"
	"github.com/mkrupp/promptbank/internal/svc/authsvc"
)

func validConfig() authsvc.AuthConfig {
	return authsvc.AuthConfig{
		Secret:     "q8Zr1vKx0PbN3mWt7YcLs5HdJf2GaEuR",
		Password:   "Tr1cky-Pa55!word",
		TokenTTL:   time.Hour,
		Production: true,
		Cookie:     http_.SessionCookieConfig{Secure: true},
	}
}

func TestAuthConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*authsvc.AuthConfig)
		want   []error
	}{
		{name: "valid"},
		{
			name:   "missing secret and password",
			modify: func(c *authsvc.AuthConfig) { c.Secret, c.Password = "", "" },
			want:   []error{authsvc.ErrSecretNotSet, authsvc.ErrPasswordNotSet},
		},
		{
			name:   "short secret",
			modify: func(c *authsvc.AuthConfig) { c.Secret = "q8Zr1vKx0PbN3mWt" },
			want:   []error{authsvc.ErrSecretTooShort},
		},
		{
			name:   "weak secret",
			modify: func(c *authsvc.AuthConfig) { c.Secret = "my-fallback-secret-for-dev-only-000" },
			want:   []error{authsvc.ErrSecretWeak},
		},
		{
			name:   "short password",
			modify: func(c *authsvc.AuthConfig) { c.Password = "Ab1!" },
			want:   []error{authsvc.ErrPasswordTooShort},
		},
		{
			name:   "placeholder password",
			modify: func(c *authsvc.AuthConfig) { c.Password = "ChangeMe-2025!" },
			want:   []error{authsvc.ErrPasswordWeak},
		},
		{
			name: "secret equals password in production",
			modify: func(c *authsvc.AuthConfig) {
				c.Password = c.Secret
			},
			want: []error{authsvc.ErrSecretEqualsPasswd},
		},
		{
			name: "secret equals password in development",
			modify: func(c *authsvc.AuthConfig) {
				c.Password = c.Secret
				c.Production = false
			},
		},
		{
			name:   "ttl above one hour",
			modify: func(c *authsvc.AuthConfig) { c.TokenTTL = 24 * time.Hour },
			want:   []error{authsvc.ErrTokenTTLInvalid},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			if tt.modify != nil {
				tt.modify(&cfg)
			}

			err := cfg.Validate()
			if len(tt.want) == 0 {
				require.NoError(t, err)

				return
			}

			for _, want := range tt.want {
				require.ErrorIs(t, err, want)
			}
		})
	}
}

func TestAuthConfig_Warnings(t *testing.T) {
	assert.Empty(t, validConfig().Warnings())

	cfg := validConfig()
	cfg.Secret = strings.Repeat("ab", 20)
	cfg.Password = "alllowercaseletters"
	cfg.Production = false
	cfg.Cookie.Secure = false

	warnings := cfg.Warnings()
	require.Len(t, warnings, 4)
	assert.Contains(t, warnings[0], "low entropy")
	assert.Contains(t, warnings[1], "uppercase, lowercase, numbers, and special characters")
}
