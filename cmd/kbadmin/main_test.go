package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestGenSecrets(t *testing.T) {
	out, err := execute(t, "gen-secrets")
	require.NoError(t, err)

	values := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		key, value, ok := strings.Cut(line, "=")
		require.True(t, ok, line)

		values[key] = value
	}

	secret, err := base64.StdEncoding.DecodeString(values["PROMPTBANK_AUTH_SECRET"])
	require.NoError(t, err)
	assert.Len(t, secret, secretBytes)

	password, err := base64.StdEncoding.DecodeString(values["PROMPTBANK_AUTH_PASSWORD"])
	require.NoError(t, err)
	assert.Len(t, password, passwordBytes)
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("PROMPTBANK_KBSVC_AUTH_SECRET", "")
	t.Setenv("PROMPTBANK_KBSVC_AUTH_PASSWORD", "")

	out, err := execute(t, "check-env")
	require.ErrorIs(t, err, errInvalidEnv)
	assert.Contains(t, out, "AUTH_SECRET is not set")

	t.Setenv("PROMPTBANK_KBSVC_AUTH_SECRET", "k3J9xQ2vL8mN4pR7tW1yZ5aB6cD0eF-gH_iJ")
	t.Setenv("PROMPTBANK_KBSVC_AUTH_PASSWORD", "Sup3r-Secret!pw")
	t.Setenv("PROMPTBANK_KBSVC_AUTH_COOKIE_SECURE", "false")

	out, err = execute(t, "check-env")
	require.NoError(t, err)
	assert.Contains(t, out, "warning: session cookie is sent over plain HTTP")
	assert.Contains(t, out, "environment OK")
}
