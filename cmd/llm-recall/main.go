// Package main provides the llm-recall command-line tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "llm-recall",
		Short:         "Persistent user-profile memory for the llm CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newFragmentCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newPathCmd())
	cmd.AddCommand(newInstallShellCmd())
	cmd.AddCommand(newUninstallShellCmd())
	cmd.AddCommand(newShellStatusCmd())

	return cmd
}
