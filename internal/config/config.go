package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL"`
	APIPort     int    `env:"API_PORT,default=8080"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	ResendAPIKey  string `env:"RESEND_API_KEY"`
	ResendBaseURL string `env:"RESEND_BASE_URL,default=https://api.resend.com"`
	EmailFrom     string `env:"EMAIL_FROM,default=Kartarkiv <faktura@kartarkiv.no>"`
	EmailReplyTo  string `env:"EMAIL_REPLY_TO"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	EmailMaxAttempts        int `env:"EMAIL_MAX_ATTEMPTS,default=3"`
	EmailOverallTimeoutMS   int `env:"EMAIL_OVERALL_TIMEOUT_MS,default=25000"`
	SMTPConnectionTimeoutMS int `env:"SMTP_CONNECTION_TIMEOUT_MS,default=10000"`
	SMTPGreetingTimeoutMS   int `env:"SMTP_GREETING_TIMEOUT_MS,default=10000"`
	SMTPSocketTimeoutMS     int `env:"SMTP_SOCKET_TIMEOUT_MS,default=20000"`
	SMTPDNSTimeoutMS        int `env:"SMTP_DNS_TIMEOUT_MS,default=3000"`
	SMTPProbeTimeoutMS      int `env:"SMTP_PROBE_TIMEOUT_MS,default=3000"`
	InvoiceEmailRatePerSec  int `env:"INVOICE_EMAIL_RATE_PER_SEC,default=2"`
	InvoiceDueDays          int `env:"INVOICE_DUE_DAYS,default=14"`

	InvoiceAccountNumber string `env:"INVOICE_ACCOUNT_NUMBER"`
	InvoiceSellerName    string `env:"INVOICE_SELLER_NAME,default=Kartarkiv"`
	InvoiceSellerEmail   string `env:"INVOICE_SELLER_EMAIL,default=faktura@kartarkiv.no"`
	InvoiceSellerOrgNr   string `env:"INVOICE_SELLER_ORG_NR"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// ResendConfigured reports whether the HTTP email provider has a credential.
func (c *Config) ResendConfigured() bool {
	return strings.TrimSpace(c.ResendAPIKey) != ""
}

// SMTPConfigured reports whether host, port, user and password are all set.
func (c *Config) SMTPConfigured() bool {
	return strings.TrimSpace(c.SMTPHost) != "" &&
		c.SMTPPort > 0 &&
		strings.TrimSpace(c.SMTPUser) != "" &&
		c.SMTPPassword != ""
}

// SMTPSender returns the envelope sender for SMTP, defaulting to EmailFrom.
func (c *Config) SMTPSender() string {
	if from := strings.TrimSpace(c.SMTPFrom); from != "" {
		return from
	}
	return c.EmailFrom
}

func (c *Config) EmailOverallTimeout() time.Duration {
	return millis(c.EmailOverallTimeoutMS)
}

func (c *Config) SMTPConnectionTimeout() time.Duration {
	return millis(c.SMTPConnectionTimeoutMS)
}

func (c *Config) SMTPGreetingTimeout() time.Duration {
	return millis(c.SMTPGreetingTimeoutMS)
}

func (c *Config) SMTPSocketTimeout() time.Duration {
	return millis(c.SMTPSocketTimeoutMS)
}

func (c *Config) SMTPDNSTimeout() time.Duration {
	return millis(c.SMTPDNSTimeoutMS)
}

func (c *Config) SMTPProbeTimeout() time.Duration {
	return millis(c.SMTPProbeTimeoutMS)
}

func millis(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
