package mailer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kartarkiv/invoice-service/internal/observability"
)

const (
	defaultMaxAttempts    = 3
	defaultOverallTimeout = 25 * time.Second
)

// Metrics receives per-attempt delivery signals.
type Metrics interface {
	ObserveEmailAttempt(provider string, outcome string, duration time.Duration)
	IncEmailProviderFallback(from string, to string)
	ObserveEmailDelivered(attempts int)
}

type SenderConfig struct {
	// Primary is nil when no provider is configured; Send then succeeds
	// without delivering anything.
	Primary Provider
	// Fallback takes over when Primary fails with a terminal HTTP error.
	Fallback       Provider
	Diagnostics    *Diagnostics
	MaxAttempts    int
	OverallTimeout time.Duration
}

// Sender delivers a message with retries under a fixed overall deadline.
type Sender struct {
	primary        Provider
	fallback       Provider
	diagnostics    *Diagnostics
	maxAttempts    int
	overallTimeout time.Duration
	logger         *zap.Logger
	metrics        Metrics

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSender(cfg SenderConfig, logger *zap.Logger, metrics Metrics) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.OverallTimeout <= 0 {
		cfg.OverallTimeout = defaultOverallTimeout
	}

	return &Sender{
		primary:        cfg.Primary,
		fallback:       cfg.Fallback,
		diagnostics:    cfg.Diagnostics,
		maxAttempts:    cfg.MaxAttempts,
		overallTimeout: cfg.OverallTimeout,
		logger:         logger,
		metrics:        metrics,
		now:            time.Now,
		sleep:          sleepWithContext,
	}
}

func (s *Sender) Send(ctx context.Context, msg Message) (*Result, error) {
	if err := msg.Validate(); err != nil {
		return nil, invalidArgumentError(err)
	}

	logger := observability.WithContextLogger(s.logger, ctx)

	if s.primary == nil {
		logger.Warn("no email provider configured; skipping delivery",
			zap.Strings("to", msg.To),
			zap.String("subject", msg.Subject),
		)
		s.observeDelivered(1)
		return &Result{
			Provider:  ProviderMock,
			Accepted:  append([]string(nil), msg.To...),
			MessageID: "mock-" + uuid.NewString(),
			Attempts:  1,
		}, nil
	}

	deadline := s.now().Add(s.overallTimeout)
	provider := s.primary
	switched := false
	var lastErr error

	for attempt := 1; attempt <= s.maxAttempts; {
		remaining := deadline.Sub(s.now())
		if remaining < SafetyBuffer {
			return nil, timeoutError(provider.Name(), attempt-1, TimeoutBeforeAttempt, lastErr)
		}

		if provider.Name() == ProviderSMTP {
			s.diagnostics.Start(ctx)
		}

		budget := AttemptBudget(remaining)
		attemptLogger := logger.With(
			zap.String("provider", provider.Name().String()),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", s.maxAttempts),
		)

		result, err := s.attempt(ctx, provider, msg, budget)
		if err == nil {
			result.Attempts = attempt
			if attempt >= 2 {
				attemptLogger.Info("email delivery recovered after retries", zap.String("messageId", result.MessageID))
			} else {
				attemptLogger.Debug("email delivered", zap.String("messageId", result.MessageID))
			}
			s.observeDelivered(attempt)
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			attemptLogger.Warn("email delivery aborted by caller", zap.Error(err))
			return nil, withAttempts(err, attempt)
		}

		if !switched && s.fallback != nil && isHTTPTerminal(err) {
			attemptLogger.Warn("email provider failed permanently; switching provider",
				zap.String("fallbackProvider", s.fallback.Name().String()),
				zap.Error(err),
			)
			if s.metrics != nil {
				s.metrics.IncEmailProviderFallback(provider.Name().String(), s.fallback.Name().String())
			}
			provider = s.fallback
			switched = true
			continue
		}

		if !IsTransient(err) {
			attemptLogger.Error("email delivery failed permanently", zap.Error(err))
			return nil, withAttempts(err, attempt)
		}
		if attempt == s.maxAttempts {
			attemptLogger.Error("email delivery attempts exhausted", zap.Error(err))
			return nil, withAttempts(err, attempt)
		}

		delay, ok := NextDelay(attempt, deadline.Sub(s.now()))
		if !ok {
			attemptLogger.Warn("email delivery budget exhausted before retry", zap.Error(err))
			return nil, timeoutError(provider.Name(), attempt, TimeoutBeforeRetryDelay, err)
		}

		attemptLogger.Warn("email delivery attempt failed; retrying",
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := s.sleep(ctx, delay); err != nil {
			return nil, withAttempts(lastErr, attempt)
		}
		attempt++
	}

	return nil, withAttempts(lastErr, s.maxAttempts)
}

// attempt runs one provider call bounded by budget.
func (s *Sender) attempt(ctx context.Context, provider Provider, msg Message, budget time.Duration) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	started := s.now()
	result, err := provider.Send(attemptCtx, msg)
	elapsed := s.now().Sub(started)

	outcome := "success"
	switch {
	case err != nil && IsTransient(err):
		outcome = "transient"
	case err != nil:
		outcome = "terminal"
	case result == nil:
		err = &DeliveryError{Kind: KindHTTPTransient, Provider: provider.Name(), Message: "provider returned no result"}
		outcome = "transient"
	}
	if s.metrics != nil {
		s.metrics.ObserveEmailAttempt(provider.Name().String(), outcome, elapsed)
	}

	return result, err
}

func (s *Sender) observeDelivered(attempts int) {
	if s.metrics != nil {
		s.metrics.ObserveEmailDelivered(attempts)
	}
}

func isHTTPTerminal(err error) bool {
	var deliveryErr *DeliveryError
	return errors.As(err, &deliveryErr) && deliveryErr.Kind == KindHTTPTerminal
}

// withAttempts stamps the attempt count onto the returned error.
func withAttempts(err error, attempts int) error {
	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		annotated := *deliveryErr
		annotated.Attempts = attempts
		return &annotated
	}
	return &DeliveryError{
		Kind:     KindHTTPTerminal,
		Attempts: attempts,
		Message:  "email delivery failed",
		Cause:    err,
	}
}
