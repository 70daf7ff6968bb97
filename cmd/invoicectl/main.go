package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Operator tools for Kartarkiv invoices",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(kidCmd())
	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(smtpCheckCmd())

	return rootCmd
}
