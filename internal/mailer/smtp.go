package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jordan-wright/email"
)

// SMTP conversation phases reported on DeliveryError.Phase.
const (
	PhaseConn     = "conn"
	PhaseGreeting = "greeting"
	PhaseEHLO     = "ehlo"
	PhaseStartTLS = "starttls"
	PhaseAuth     = "auth"
	PhaseMail     = "mail"
	PhaseRcpt     = "rcpt"
	PhaseData     = "data"
)

const (
	defaultSMTPConnectionTimeout = 10 * time.Second
	defaultSMTPGreetingTimeout   = 10 * time.Second
	defaultSMTPSocketTimeout     = 20 * time.Second
	implicitTLSPort              = 465
	defaultHeloName              = "localhost"
)

// connectionPhases fail before the server has seen the message and are
// always worth another attempt.
var connectionPhases = map[string]bool{
	PhaseConn:     true,
	PhaseGreeting: true,
	PhaseEHLO:     true,
	PhaseStartTLS: true,
}

type SMTPConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	From              string
	HeloName          string
	ConnectionTimeout time.Duration
	GreetingTimeout   time.Duration
	SocketTimeout     time.Duration
}

// SMTPProvider speaks SMTP directly, one connection per Send.
type SMTPProvider struct {
	cfg  SMTPConfig
	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

func NewSMTPProvider(cfg SMTPConfig) (*SMTPProvider, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid smtp port %d", cfg.Port)
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("sender address is required")
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = defaultSMTPConnectionTimeout
	}
	if cfg.GreetingTimeout <= 0 {
		cfg.GreetingTimeout = defaultSMTPGreetingTimeout
	}
	if cfg.SocketTimeout <= 0 {
		cfg.SocketTimeout = defaultSMTPSocketTimeout
	}
	if strings.TrimSpace(cfg.HeloName) == "" {
		cfg.HeloName = defaultHeloName
	}

	p := &SMTPProvider{cfg: cfg}
	p.dial = p.dialContext
	return p, nil
}

func (p *SMTPProvider) Name() ProviderName { return ProviderSMTP }

func (p *SMTPProvider) address() string {
	return net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))
}

func (p *SMTPProvider) dialContext(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: p.cfg.ConnectionTimeout}
	if p.cfg.Port == implicitTLSPort {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: p.cfg.Host, MinVersion: tls.VersionTLS12},
		}
		return tlsDialer.DialContext(ctx, network, address)
	}
	return dialer.DialContext(ctx, network, address)
}

func (p *SMTPProvider) Send(ctx context.Context, msg Message) (*Result, error) {
	if p == nil {
		return nil, fmt.Errorf("smtp provider is not initialized")
	}
	msg = msg.withDefaultFrom(p.cfg.From)

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), p.cfg.Host)
	raw, err := buildMIME(msg, messageID)
	if err != nil {
		return nil, invalidArgumentError(err)
	}

	conn, err := p.dial(ctx, "tcp", p.address())
	if err != nil {
		return nil, classifySMTPError(ctx, PhaseConn, err)
	}
	defer conn.Close()

	// Closing the connection is the only way to interrupt a blocked
	// conversation step once the attempt budget runs out.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	_ = conn.SetDeadline(time.Now().Add(p.cfg.GreetingTimeout))
	client, err := smtp.NewClient(conn, p.cfg.Host)
	if err != nil {
		return nil, classifySMTPError(ctx, PhaseGreeting, err)
	}
	defer client.Close()

	// Every conversation step gets a fresh idle window.
	extendDeadline := func() { _ = conn.SetDeadline(time.Now().Add(p.cfg.SocketTimeout)) }

	extendDeadline()
	if err := client.Hello(p.cfg.HeloName); err != nil {
		return nil, classifySMTPError(ctx, PhaseEHLO, err)
	}

	_, isTLS := conn.(*tls.Conn)
	if ok, _ := client.Extension("STARTTLS"); ok && !isTLS {
		extendDeadline()
		tlsConfig := &tls.Config{ServerName: p.cfg.Host, MinVersion: tls.VersionTLS12}
		if err := client.StartTLS(tlsConfig); err != nil {
			return nil, classifySMTPError(ctx, PhaseStartTLS, err)
		}
	}

	if p.cfg.Username != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			return nil, authUnavailableError()
		}
		extendDeadline()
		auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return nil, classifySMTPError(ctx, PhaseAuth, err)
		}
	}

	extendDeadline()
	if err := client.Mail(addressOnly(msg.From)); err != nil {
		return nil, classifySMTPError(ctx, PhaseMail, err)
	}
	for _, to := range msg.To {
		extendDeadline()
		if err := client.Rcpt(addressOnly(to)); err != nil {
			return nil, classifySMTPError(ctx, PhaseRcpt, err)
		}
	}

	extendDeadline()
	w, err := client.Data()
	if err != nil {
		return nil, classifySMTPError(ctx, PhaseData, err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return nil, classifySMTPError(ctx, PhaseData, err)
	}
	extendDeadline()
	if err := w.Close(); err != nil {
		return nil, classifySMTPError(ctx, PhaseData, err)
	}

	// The server has queued the message; a failed QUIT does not undo that.
	extendDeadline()
	_ = client.Quit()

	return &Result{
		Provider:  ProviderSMTP,
		Accepted:  append([]string(nil), msg.To...),
		MessageID: messageID,
	}, nil
}

func buildMIME(msg Message, messageID string) ([]byte, error) {
	e := email.NewEmail()
	e.From = msg.From
	e.To = append([]string(nil), msg.To...)
	if msg.ReplyTo != "" {
		e.ReplyTo = []string{msg.ReplyTo}
	}
	e.Subject = msg.Subject
	if msg.HTML != "" {
		e.HTML = []byte(msg.HTML)
	}
	if msg.Text != "" {
		e.Text = []byte(msg.Text)
	}
	e.Headers.Set("Message-Id", messageID)

	for _, a := range msg.Attachments {
		if _, err := e.Attach(bytes.NewReader(a.Content), a.Filename, a.ContentType); err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Filename, err)
		}
	}

	raw, err := e.Bytes()
	if err != nil {
		return nil, fmt.Errorf("build mime message: %w", err)
	}
	return raw, nil
}

// authUnavailableError reports credentials configured against a relay that
// does not offer AUTH. Sending unauthenticated would hide the misconfiguration.
func authUnavailableError() *DeliveryError {
	return &DeliveryError{
		Kind:     KindSMTPTerminal,
		Provider: ProviderSMTP,
		Phase:    PhaseAuth,
		Code:     "EAUTHUNAVAILABLE",
		Message:  "smtp server does not advertise AUTH but a username is configured",
	}
}

func classifySMTPError(ctx context.Context, phase string, err error) *DeliveryError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		timeoutErr := timeoutError(ProviderSMTP, 0, TimeoutSMTPForcedClose, err)
		timeoutErr.Phase = phase
		return timeoutErr
	}

	deliveryErr := &DeliveryError{
		Kind:     KindSMTPTerminal,
		Provider: ProviderSMTP,
		Phase:    phase,
		Message:  fmt.Sprintf("smtp %s failed", phase),
		Cause:    err,
	}
	if errors.Is(err, context.Canceled) {
		return deliveryErr
	}

	retryable := false

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		deliveryErr.StatusCode = protoErr.Code
		// 4xx replies are transient by definition of the protocol.
		retryable = protoErr.Code >= 400 && protoErr.Code < 500
	}

	if code, transient := systemErrorCode(err); code != "" {
		deliveryErr.Code = code
		retryable = retryable || transient
	}

	if connectionPhases[phase] || isTimeoutMessage(err.Error()) {
		retryable = true
	}

	if retryable {
		deliveryErr.Kind = KindSMTPTransient
	}
	return deliveryErr
}

func systemErrorCode(err error) (code string, transient bool) {
	switch {
	case errors.Is(err, syscall.ECONNRESET):
		return "ECONNRESET", true
	case errors.Is(err, syscall.ECONNREFUSED):
		return "ECONNREFUSED", true
	case errors.Is(err, syscall.EPIPE):
		return "EPIPE", true
	case errors.Is(err, syscall.ETIMEDOUT):
		return "ETIMEDOUT", true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout || dnsErr.IsTemporary {
			return "EAI_AGAIN", true
		}
		if dnsErr.IsNotFound {
			return "ENOTFOUND", false
		}
		return "EDNS", false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "ETIMEDOUT", true
	}

	return "", false
}
