package mailer

import (
	"context"
	"time"
)

const (
	// SafetyBuffer is the minimum remaining time required to start an attempt.
	SafetyBuffer = 500 * time.Millisecond
	// MinAttemptBudget is the floor of a single attempt's timeout.
	MinAttemptBudget = 1500 * time.Millisecond

	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 30 * time.Second
)

// AttemptBudget returns the timeout for an attempt given the time left until
// the overall deadline.
func AttemptBudget(remaining time.Duration) time.Duration {
	budget := remaining - SafetyBuffer
	if budget < MinAttemptBudget {
		return MinAttemptBudget
	}
	return budget
}

// NextDelay returns the backoff before the attempt following attempt. The
// exponential delay is clamped so that a minimum-budget attempt still fits
// before the deadline; ok is false when not even that is possible.
func NextDelay(attempt int, remaining time.Duration) (delay time.Duration, ok bool) {
	if attempt < 1 {
		attempt = 1
	}

	delay = baseRetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			delay = maxRetryDelay
			break
		}
	}

	available := remaining - SafetyBuffer - MinAttemptBudget
	if available <= 0 {
		return 0, false
	}
	if delay > available {
		delay = available
	}

	return delay, true
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
