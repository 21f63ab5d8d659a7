package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kbadmin",
		Short: "Operator tooling for the knowledge base service",
		Long: `kbadmin prepares and checks the environment of the knowledge base service.

Configuration is read from PROMPTBANK_KBSVC_* variables, falling back to
PROMPTBANK_* and unprefixed names.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newGenSecretsCmd(), newCheckEnvCmd())

	return root
}
