package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
)

const (
	secretBytes   = 32
	passwordBytes = 24
)

func newGenSecretsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-secrets",
		Short: "Generate a token signing secret and an access password",
		Long: `Prints a random token signing secret (32 bytes) and access password (24 bytes),
base64 encoded, as environment assignments.

Example:
  kbadmin gen-secrets >> .env`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := randomString(secretBytes)
			if err != nil {
				return err
			}

			password, err := randomString(passwordBytes)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "PROMPTBANK_AUTH_SECRET=%s\n", secret)
			fmt.Fprintf(out, "PROMPTBANK_AUTH_PASSWORD=%s\n", password)

			return nil
		},
	}
}

func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf), nil
}
