package mailer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kartarkiv/invoice-service/internal/config"
)

// NewSenderFromConfig selects providers from configuration: Resend when an
// API key is set, SMTP when its credentials are complete, both when both are.
func NewSenderFromConfig(cfg *config.Config, logger *zap.Logger, metrics Metrics) (*Sender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var smtpProvider Provider
	var diagnostics *Diagnostics
	if cfg.SMTPConfigured() {
		p, err := NewSMTPProvider(SMTPConfig{
			Host:              cfg.SMTPHost,
			Port:              cfg.SMTPPort,
			Username:          cfg.SMTPUser,
			Password:          cfg.SMTPPassword,
			From:              cfg.SMTPSender(),
			ConnectionTimeout: cfg.SMTPConnectionTimeout(),
			GreetingTimeout:   cfg.SMTPGreetingTimeout(),
			SocketTimeout:     cfg.SMTPSocketTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure smtp provider: %w", err)
		}
		smtpProvider = p
		diagnostics = NewDiagnostics(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPDNSTimeout(), cfg.SMTPProbeTimeout(), logger)
	}

	senderCfg := SenderConfig{
		Diagnostics:    diagnostics,
		MaxAttempts:    cfg.EmailMaxAttempts,
		OverallTimeout: cfg.EmailOverallTimeout(),
	}

	switch {
	case cfg.ResendConfigured():
		p, err := NewResendProvider(cfg.ResendBaseURL, cfg.ResendAPIKey, cfg.EmailFrom)
		if err != nil {
			return nil, fmt.Errorf("failed to configure resend provider: %w", err)
		}
		senderCfg.Primary = p
		senderCfg.Fallback = smtpProvider
	case smtpProvider != nil:
		senderCfg.Primary = smtpProvider
	}

	return NewSender(senderCfg, logger, metrics), nil
}
