package mailer

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDeliveryErrorRetryable(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  *DeliveryError
		want bool
	}{
		{name: "http transient", err: &DeliveryError{Kind: KindHTTPTransient}, want: true},
		{name: "smtp transient", err: &DeliveryError{Kind: KindSMTPTransient}, want: true},
		{name: "http terminal", err: &DeliveryError{Kind: KindHTTPTerminal}, want: false},
		{name: "smtp terminal", err: &DeliveryError{Kind: KindSMTPTerminal}, want: false},
		{name: "invalid argument", err: &DeliveryError{Kind: KindInvalidArgument}, want: false},
		{name: "resend abort", err: &DeliveryError{Kind: KindTimeout, Context: TimeoutResendAbort}, want: true},
		{name: "smtp forced close", err: &DeliveryError{Kind: KindTimeout, Context: TimeoutSMTPForcedClose}, want: true},
		{name: "before attempt", err: &DeliveryError{Kind: KindTimeout, Context: TimeoutBeforeAttempt}, want: false},
		{name: "before retry delay", err: &DeliveryError{Kind: KindTimeout, Context: TimeoutBeforeRetryDelay}, want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := tc.err.Retryable(); got != tc.want {
				t.Fatalf("Retryable() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDeliveryErrorMatching(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := fmt.Errorf("send invoice: %w", &DeliveryError{
		Kind:     KindSMTPTransient,
		Provider: ProviderSMTP,
		Phase:    PhaseData,
		Code:     "ECONNRESET",
		Cause:    cause,
	})

	if !errors.Is(err, cause) {
		t.Fatal("wrapped DeliveryError should unwrap to its cause")
	}
	if errors.Is(err, ErrOverallTimeout) {
		t.Fatal("non-timeout kind should not match ErrOverallTimeout")
	}
	if !IsTransient(err) {
		t.Fatal("IsTransient should see through wrapping")
	}
	if IsTransient(cause) {
		t.Fatal("plain errors are not transient")
	}

	timeout := timeoutError(ProviderResend, 2, TimeoutBeforeAttempt, nil)
	if !errors.Is(timeout, ErrOverallTimeout) {
		t.Fatal("timeout kind should match ErrOverallTimeout")
	}
}

func TestDeliveryErrorMessage(t *testing.T) {
	t.Parallel()

	err := &DeliveryError{
		Kind:       KindHTTPTerminal,
		Provider:   ProviderResend,
		StatusCode: 422,
		Code:       "validation_error",
		Attempts:   1,
		Message:    "invalid to",
	}

	got := err.Error()
	for _, want := range []string{"resend delivery error (http-terminal)", "status=422", "code=validation_error", "attempts=1", "invalid to"} {
		if !strings.Contains(got, want) {
			t.Fatalf("Error() = %q, want it to contain %q", got, want)
		}
	}
}
