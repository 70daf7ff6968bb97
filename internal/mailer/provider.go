// Package mailer delivers invoice emails through an HTTP email API with an
// SMTP fallback, under a fixed overall deadline.
package mailer

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
)

// ProviderName identifies an email delivery channel.
type ProviderName string

const (
	ProviderResend ProviderName = "resend"
	ProviderSMTP   ProviderName = "smtp"
	ProviderMock   ProviderName = "mock"
)

func (p ProviderName) String() string { return string(p) }

// Provider is the outbound email delivery port. Every Send opens and releases
// its own transport resources.
type Provider interface {
	Name() ProviderName
	Send(ctx context.Context, msg Message) (*Result, error)
}

// Message is a single outbound email.
type Message struct {
	From        string
	ReplyTo     string
	To          []string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Attachment is an in-memory file attached to a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Result stores delivery metadata returned to the caller.
type Result struct {
	Provider  ProviderName
	Accepted  []string
	MessageID string
	Attempts  int
}

func (m Message) Validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	for _, to := range m.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return fmt.Errorf("invalid recipient %q: %w", to, err)
		}
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if strings.TrimSpace(m.HTML) == "" && strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("message body is required")
	}
	for _, a := range m.Attachments {
		if strings.TrimSpace(a.Filename) == "" {
			return fmt.Errorf("attachment filename is required")
		}
	}
	return nil
}

func (m Message) withDefaultFrom(from string) Message {
	if strings.TrimSpace(m.From) == "" {
		m.From = from
	}
	return m
}

// addressOnly strips the display name from an RFC 5322 address.
func addressOnly(value string) string {
	parsed, err := mail.ParseAddress(value)
	if err != nil {
		return strings.TrimSpace(value)
	}
	return parsed.Address
}
