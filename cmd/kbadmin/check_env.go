package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkrupp/promptbank/internal/app"
)

var errInvalidEnv = errors.New("environment is invalid")

func newCheckEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-env",
		Short: "Validate the service environment",
		Long: `Runs the validation the service performs at startup and reports errors
and warnings. Exits non-zero if the service would refuse to start.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			cfg, err := app.LoadConfig(cmd.Context())
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)

				return errInvalidEnv
			}

			for _, warning := range cfg.App.Warnings() {
				fmt.Fprintf(out, "warning: %s\n", warning)
			}

			fmt.Fprintln(out, "environment OK")

			return nil
		},
	}
}
