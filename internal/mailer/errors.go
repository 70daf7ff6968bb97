package mailer

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the discriminant of a DeliveryError, decided once where the
// underlying transport failure is caught.
type Kind string

const (
	KindHTTPTransient   Kind = "http-transient"
	KindHTTPTerminal    Kind = "http-terminal"
	KindSMTPTransient   Kind = "smtp-transient"
	KindSMTPTerminal    Kind = "smtp-terminal"
	KindTimeout         Kind = "timeout"
	KindInvalidArgument Kind = "invalid-argument"
)

// Timeout contexts identify the decision point that ran out of time.
const (
	TimeoutBeforeAttempt    = "before-attempt"
	TimeoutBeforeRetryDelay = "before-retry-delay"
	TimeoutResendAbort      = "resend-abort"
	TimeoutSMTPForcedClose  = "smtp-forced-close"
)

// ErrOverallTimeout matches every KindTimeout DeliveryError via errors.Is.
var ErrOverallTimeout = errors.New("email delivery timed out")

// DeliveryError classifies provider call failures.
type DeliveryError struct {
	Kind       Kind
	Provider   ProviderName
	StatusCode int
	// Code is the provider or system error code, e.g. ECONNRESET or validation_error.
	Code string
	// Phase is the SMTP conversation step that failed.
	Phase    string
	Attempts int
	// Context tags which decision point raised a timeout.
	Context string
	Message string
	Cause   error
}

func (e *DeliveryError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 6)
	head := "email delivery error"
	if e.Provider != "" {
		head = fmt.Sprintf("%s delivery error", e.Provider)
	}
	parts = append(parts, fmt.Sprintf("%s (%s)", head, e.Kind))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}
	if e.Phase != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.Phase))
	}
	if e.Context != "" {
		parts = append(parts, fmt.Sprintf("context=%s", e.Context))
	}
	if e.Attempts > 0 {
		parts = append(parts, fmt.Sprintf("attempts=%d", e.Attempts))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *DeliveryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *DeliveryError) Is(target error) bool {
	return e != nil && e.Kind == KindTimeout && target == ErrOverallTimeout
}

// Retryable reports whether another attempt may succeed. Timeouts raised
// inside an attempt are retryable; decision-point timeouts are final.
func (e *DeliveryError) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case KindHTTPTransient, KindSMTPTransient:
		return true
	case KindTimeout:
		return e.Context == TimeoutResendAbort || e.Context == TimeoutSMTPForcedClose
	}
	return false
}

// IsTransient reports whether an error should be retried.
func IsTransient(err error) bool {
	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		return deliveryErr.Retryable()
	}
	return false
}

func timeoutError(provider ProviderName, attempts int, context string, cause error) *DeliveryError {
	return &DeliveryError{
		Kind:     KindTimeout,
		Provider: provider,
		Attempts: attempts,
		Context:  context,
		Message:  "overall email timeout exceeded",
		Cause:    cause,
	}
}

func invalidArgumentError(err error) *DeliveryError {
	return &DeliveryError{
		Kind:    KindInvalidArgument,
		Message: "invalid email message",
		Cause:   err,
	}
}
