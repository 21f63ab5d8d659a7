package authsvc_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/audit"
	"github.com/mkrupp/promptbank/internal/infra/logging"
	"github.com/mkrupp/promptbank/internal/svc/authsvc"
	"github.com/mkrupp/promptbank/internal/svc/ratelimit"
	"github.com/mkrupp/promptbank/internal/util/clock"
)

const testPassword = "Sup3r-Secret!pw"

// memoryRevocations implements revocation.Repository in memory.
type memoryRevocations struct {
	revoked map[string]time.Time
	err     error
}

func (m *memoryRevocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	if m.err != nil {
		return m.err
	}

	m.revoked[tokenID] = until

	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}

	_, ok := m.revoked[tokenID]

	return ok, nil
}

func (m *memoryRevocations) Close() error { return nil }

type fixture struct {
	svc         *authsvc.AuthService
	tokens      *authsvc.TokenService
	limiter     *ratelimit.Limiter
	clock       *clock.Manual
	revocations *memoryRevocations
	events      *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	signer, clk := newSigner(t)

	password, err := authsvc.NewPasswordVerifier(testPassword)
	require.NoError(t, err)

	limiter := ratelimit.NewLimiter(ratelimit.DefaultConfig(), clk)
	t.Cleanup(limiter.Close)

	revocations := &memoryRevocations{revoked: map[string]time.Time{}}
	tokens := authsvc.NewTokenService(signer, revocations, time.Hour)

	var events bytes.Buffer

	securityLog := audit.NewSecurityLog(logging.NewJSONLogger(&events, "infra.audit"), clk)

	return &fixture{
		svc:         authsvc.NewAuthService(tokens, password, limiter, securityLog),
		tokens:      tokens,
		limiter:     limiter,
		clock:       clk,
		revocations: revocations,
		events:      &events,
	}
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.tokens.Issue(ctx, "")
	require.NoError(t, err)
	assert.True(t, f.tokens.Verify(ctx, token))

	claims, err := f.tokens.Claims(ctx, token)
	require.NoError(t, err)
	assert.True(t, claims.Authenticated)
	assert.NotEmpty(t, claims.SessionID)

	named, err := f.tokens.Issue(ctx, "session-42")
	require.NoError(t, err)

	claims, err = f.tokens.Claims(ctx, named)
	require.NoError(t, err)
	assert.Equal(t, "session-42", claims.SessionID)

	f.clock.Advance(time.Hour)
	assert.False(t, f.tokens.Verify(ctx, token))
}

func TestTokenService_Revoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.tokens.Issue(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, f.tokens.Revoke(ctx, token))
	assert.False(t, f.tokens.Verify(ctx, token))
	assert.True(t, f.revocations.revoked["s1"].Equal(epoch.Add(time.Hour)))

	_, err = f.tokens.Claims(ctx, token)
	require.ErrorIs(t, err, domain.ErrRevokedAuthToken)

	require.NoError(t, f.tokens.Revoke(ctx, "garbage"), "invalid tokens need no revocation")
}

func TestTokenService_RevocationStoreDownFailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.tokens.Issue(ctx, "")
	require.NoError(t, err)

	f.revocations.err = errors.New("connection refused")

	assert.False(t, f.tokens.Verify(ctx, token))
}

func TestTokenService_NilRevocationsIsStateless(t *testing.T) {
	signer, _ := newSigner(t)
	tokens := authsvc.NewTokenService(signer, nil, time.Hour)
	ctx := context.Background()

	token, err := tokens.Issue(ctx, "")
	require.NoError(t, err)
	require.NoError(t, tokens.Revoke(ctx, token))
	assert.True(t, tokens.Verify(ctx, token))
}

func TestAuthService_Login(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.Login(ctx, "203.0.113.1", "wrong")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Empty(t, result.Token)
	assert.Equal(t, 4, result.Decision.Remaining)

	_, err = f.svc.Login(ctx, "203.0.113.1", "")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	result, err = f.svc.Login(ctx, "203.0.113.1", testPassword)
	require.NoError(t, err)
	assert.True(t, f.svc.Verify(ctx, result.Token))

	log := f.events.String()
	assert.Equal(t, 2, strings.Count(log, `"event":"login.failed"`))
	assert.Equal(t, 1, strings.Count(log, `"event":"login.success"`))
}

func TestAuthService_SuccessAfterFourFailuresResetsCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for range 4 {
		_, err := f.svc.Login(ctx, "ip", "nope")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}

	_, err := f.svc.Login(ctx, "ip", testPassword)
	require.NoError(t, err)

	result, err := f.svc.Login(ctx, "ip", "still wrong")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Equal(t, 4, result.Decision.Remaining, "count restarts at 1")
}

func TestAuthService_RateLimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for range 5 {
		_, err := f.svc.Login(ctx, "ip", "nope")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}

	// even the right password is refused while locked
	result, err := f.svc.Login(ctx, "ip", testPassword)
	require.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Empty(t, result.Token)
	assert.Equal(t, "Too many attempts. Try again in 15 minutes.", result.Decision.Message)

	for range 3 {
		_, _ = f.svc.Login(ctx, "ip", "nope")
	}

	result, err = f.svc.Login(ctx, "ip", "nope")
	require.ErrorIs(t, err, domain.ErrRateLimited)
	assert.True(t, result.Decision.Blacklisted)

	assert.Contains(t, f.events.String(), `"event":"login.rate_limited"`)
	assert.Contains(t, f.events.String(), `"event":"login.blacklisted"`)
	assert.Contains(t, f.events.String(), `"alert":true`)
}

func TestAuthService_Logout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.Login(ctx, "ip", testPassword)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, result.Token))
	assert.False(t, f.svc.Verify(ctx, result.Token))
	assert.Contains(t, f.events.String(), `"event":"auth.logout"`)
}
