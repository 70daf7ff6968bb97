package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kartarkiv/invoice-service/internal/mailer"
	"github.com/kartarkiv/invoice-service/internal/observability"
)

func smtpCheckCmd() *cobra.Command {
	var (
		port         int
		dnsTimeout   time.Duration
		probeTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "smtp-check [host]",
		Short: "Resolve and probe an SMTP host the way the mailer does on first send",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := observability.NewLogger("debug")
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			logger.Info("running smtp diagnostics", zap.String("host", args[0]), zap.Int("port", port))
			mailer.NewDiagnostics(args[0], port, dnsTimeout, probeTimeout, logger).Run(cmd.Context())
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 587, "SMTP port")
	cmd.Flags().DurationVar(&dnsTimeout, "dns-timeout", 3*time.Second, "DNS lookup timeout")
	cmd.Flags().DurationVar(&probeTimeout, "probe-timeout", 3*time.Second, "TCP probe timeout")

	return cmd
}
