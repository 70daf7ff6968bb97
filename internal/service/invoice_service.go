package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kartarkiv/invoice-service/internal/domain"
	"github.com/kartarkiv/invoice-service/internal/kid"
	"github.com/kartarkiv/invoice-service/internal/mailer"
	"github.com/kartarkiv/invoice-service/internal/observability"
	"github.com/kartarkiv/invoice-service/internal/ratelimit"
	"github.com/kartarkiv/invoice-service/internal/render"
	"github.com/kartarkiv/invoice-service/internal/repository"
)

const (
	// FallbackAccountNumber is used when neither the request nor the
	// environment names a payee account.
	FallbackAccountNumber = "12345678903"
	accountNumberEnv      = "INVOICE_ACCOUNT_NUMBER"

	attachmentContentType = "application/pdf"
	rateLimitScope        = "invoice-email"
	// DefaultRateLimitWait caps how long a send queues behind the shared
	// limiter before going out unthrottled.
	DefaultRateLimitWait = 25 * time.Second
)

// Failure stages reported to metrics.
const (
	stageValidation = "validation"
	stageKID        = "kid"
	stageRender     = "render"
	stageCompose    = "compose"
	stageRateLimit  = "rate_limit"
	stageDelivery   = "delivery"
	stagePersist    = "persist"
)

type Sender interface {
	Send(ctx context.Context, msg mailer.Message) (*mailer.Result, error)
}

type Renderer interface {
	Render(in render.Input) ([]byte, error)
}

type Metrics interface {
	IncInvoiceSent(provider string)
	IncInvoiceFailed(stage string)
	ObserveInvoiceRender(duration time.Duration)
}

type Options struct {
	SellerName string
	From       string
	ReplyTo    string
	DueDays    int
	// AccountNumber overrides the INVOICE_ACCOUNT_NUMBER lookup when set.
	AccountNumber string
	Location      *time.Location
	RateLimitWait time.Duration
}

// CreateAndSendResult describes an invoice that was delivered and recorded.
type CreateAndSendResult struct {
	KID           string
	AccountNumber string
	DueDate       time.Time
	Delivery      *mailer.Result
}

// SendOverrides replace stored invoice fields for a single send.
type SendOverrides struct {
	BuyerEmail    string
	DueDate       *time.Time
	AccountNumber string
}

type InvoiceService struct {
	invoices repository.InvoiceRepository
	renderer Renderer
	sender   Sender
	limiter  ratelimit.Limiter
	metrics  Metrics
	opts     Options
	logger   *zap.Logger

	now       func() time.Time
	lookupEnv func(string) (string, bool)
}

func NewInvoiceService(
	invoices repository.InvoiceRepository,
	renderer Renderer,
	sender Sender,
	limiter ratelimit.Limiter,
	metrics Metrics,
	opts Options,
	logger *zap.Logger,
) (*InvoiceService, error) {
	if invoices == nil {
		return nil, fmt.Errorf("invoice repository is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DueDays <= 0 {
		opts.DueDays = domain.DefaultDueDays
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if strings.TrimSpace(opts.SellerName) == "" {
		opts.SellerName = "Kartarkiv"
	}
	if opts.RateLimitWait <= 0 {
		opts.RateLimitWait = DefaultRateLimitWait
	}

	return &InvoiceService{
		invoices:  invoices,
		renderer:  renderer,
		sender:    sender,
		limiter:   limiter,
		metrics:   metrics,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		lookupEnv: os.LookupEnv,
	}, nil
}

// CreateAndSend computes the KID, renders the PDF, emails it and only then
// marks the invoice as requested. Any failure leaves the stored invoice
// untouched so the whole call can be repeated.
func (s *InvoiceService) CreateAndSend(ctx context.Context, req domain.InvoiceRequest) (*CreateAndSendResult, error) {
	ctx = observability.WithInvoiceID(ctx, req.InvoiceID)
	logger := observability.WithContextLogger(s.logger, ctx)

	if err := req.Validate(); err != nil {
		s.failed(stageValidation)
		return nil, err
	}

	now := s.now().In(s.opts.Location)
	issueDate := dateOnly(now)
	dueDate := issueDate.AddDate(0, 0, s.opts.DueDays)
	if req.DueDate != nil {
		dueDate = dateOnly(req.DueDate.In(s.opts.Location))
	}
	accountNumber := s.resolveAccountNumber(req.AccountNumber)

	kidValue, err := kid.ForInvoice(req.InvoiceID)
	if err != nil {
		s.failed(stageKID)
		return nil, fmt.Errorf("failed to generate kid for invoice %d: %w", req.InvoiceID, err)
	}

	input := render.Input{
		InvoiceID:     req.InvoiceID,
		BuyerName:     strings.TrimSpace(req.BuyerName),
		BuyerEmail:    strings.TrimSpace(req.BuyerEmail),
		AmountNOK:     req.AmountNOK,
		IssueDate:     issueDate,
		DueDate:       dueDate,
		AccountNumber: accountNumber,
		KID:           kidValue,
		LineItems:     req.LineItems,
	}

	renderStarted := time.Now()
	pdf, err := s.renderer.Render(input)
	if s.metrics != nil {
		s.metrics.ObserveInvoiceRender(time.Since(renderStarted))
	}
	if err != nil {
		s.failed(stageRender)
		logger.Error("failed to render invoice pdf", zap.Error(err))
		return nil, fmt.Errorf("failed to render invoice %d: %w", req.InvoiceID, err)
	}

	html, text, err := composeEmailBody(newEmailBodyData(input, s.opts.SellerName))
	if err != nil {
		s.failed(stageCompose)
		return nil, err
	}

	if err := s.waitForRateLimit(ctx); err != nil {
		if ctx.Err() != nil {
			s.failed(stageRateLimit)
			return nil, fmt.Errorf("waiting for email rate limit: %w", err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("email rate limit wait exceeded; sending without throttling",
				zap.Duration("maxWait", s.opts.RateLimitWait))
		} else {
			logger.Warn("email rate limiter unavailable; sending without throttling", zap.Error(err))
		}
	}

	delivery, err := s.sender.Send(ctx, mailer.Message{
		From:    s.opts.From,
		ReplyTo: s.opts.ReplyTo,
		To:      []string{input.BuyerEmail},
		Subject: invoiceSubject(req.InvoiceID, s.opts.SellerName),
		HTML:    html,
		Text:    text,
		Attachments: []mailer.Attachment{{
			Filename:    fmt.Sprintf("invoice-%d.pdf", req.InvoiceID),
			ContentType: attachmentContentType,
			Content:     pdf,
		}},
	})
	if err != nil {
		s.failed(stageDelivery)
		logger.Error("failed to deliver invoice email", zap.String("kid", kidValue), zap.Error(err))
		return nil, err
	}

	if err := s.invoices.MarkInvoiceRequested(ctx, req.InvoiceID, kidValue, accountNumber, s.now().UTC()); err != nil {
		s.failed(stagePersist)
		logger.Error("invoice email delivered but status update failed",
			zap.String("kid", kidValue),
			zap.String("messageId", delivery.MessageID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to mark invoice %d as requested: %w", req.InvoiceID, err)
	}

	if s.metrics != nil {
		s.metrics.IncInvoiceSent(delivery.Provider.String())
	}
	logger.Info("invoice sent",
		zap.String("kid", kidValue),
		zap.String("provider", delivery.Provider.String()),
		zap.Int("attempts", delivery.Attempts),
		zap.String("messageId", delivery.MessageID),
	)

	return &CreateAndSendResult{
		KID:           kidValue,
		AccountNumber: accountNumber,
		DueDate:       dueDate,
		Delivery:      delivery,
	}, nil
}

// SendStored loads a stored invoice with its line items and sends it.
func (s *InvoiceService) SendStored(ctx context.Context, invoiceID int64, overrides SendOverrides) (*CreateAndSendResult, error) {
	if invoiceID <= 0 {
		return nil, fmt.Errorf("%w: invoice id must be positive", domain.ErrValidation)
	}

	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load invoice %d: %w", invoiceID, err)
	}

	switch inv.Status {
	case domain.StatusPaid, domain.StatusCanceled:
		return nil, fmt.Errorf("%w: invoice %d is %s", domain.ErrValidation, invoiceID, inv.Status)
	}

	req := domain.InvoiceRequest{
		InvoiceID:  inv.ID,
		BuyerEmail: inv.BuyerEmail,
		BuyerName:  inv.BuyerName,
		AmountNOK:  inv.AmountNOK,
		DueDate:    inv.DueDate,
		LineItems:  inv.LineItems,
	}
	if inv.AccountNumber != nil {
		req.AccountNumber = *inv.AccountNumber
	}
	if email := strings.TrimSpace(overrides.BuyerEmail); email != "" {
		req.BuyerEmail = email
	}
	if overrides.DueDate != nil {
		req.DueDate = overrides.DueDate
	}
	if account := strings.TrimSpace(overrides.AccountNumber); account != "" {
		req.AccountNumber = account
	}

	return s.CreateAndSend(ctx, req)
}

func (s *InvoiceService) resolveAccountNumber(explicit string) string {
	if account := strings.TrimSpace(explicit); account != "" {
		return account
	}
	if account := strings.TrimSpace(s.opts.AccountNumber); account != "" {
		return account
	}
	if account, ok := s.lookupEnv(accountNumberEnv); ok && strings.TrimSpace(account) != "" {
		return strings.TrimSpace(account)
	}
	return FallbackAccountNumber
}

// waitForRateLimit blocks for at most RateLimitWait even when ctx carries
// no deadline of its own.
func (s *InvoiceService) waitForRateLimit(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.RateLimitWait)
	defer cancel()
	return s.limiter.Wait(waitCtx, rateLimitScope)
}

func (s *InvoiceService) failed(stage string) {
	if s.metrics != nil {
		s.metrics.IncInvoiceFailed(stage)
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
