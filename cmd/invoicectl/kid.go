package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kartarkiv/invoice-service/internal/kid"
)

func kidCmd() *cobra.Command {
	var (
		validate  bool
		invoiceID bool
	)

	cmd := &cobra.Command{
		Use:   "kid [digits]",
		Short: "Generate or validate a KID payment reference",
		Long: `Generate a KID from a numeric base, or from an invoice id with --invoice.
With --validate the argument is checked as a complete KID instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if validate {
				if !kid.Validate(args[0]) {
					return fmt.Errorf("%s is not a valid KID", args[0])
				}
				fmt.Fprintf(out, "%s is valid\n", args[0])
				return nil
			}

			if invoiceID {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid invoice id %q: %w", args[0], err)
				}
				value, err := kid.ForInvoice(id)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, value)
				return nil
			}

			value, err := kid.GenerateKID(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, value)
			return nil
		},
	}

	cmd.Flags().BoolVar(&validate, "validate", false, "Validate the argument as a complete KID")
	cmd.Flags().BoolVar(&invoiceID, "invoice", false, "Treat the argument as an invoice id")
	cmd.MarkFlagsMutuallyExclusive("validate", "invoice")

	return cmd
}
