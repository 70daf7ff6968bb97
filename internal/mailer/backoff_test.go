package mailer

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAttemptBudget(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		remaining time.Duration
		want      time.Duration
	}{
		{remaining: 25 * time.Second, want: 24500 * time.Millisecond},
		{remaining: 2 * time.Second, want: 1500 * time.Millisecond},
		{remaining: 1800 * time.Millisecond, want: 1500 * time.Millisecond},
		{remaining: 600 * time.Millisecond, want: 1500 * time.Millisecond},
	}

	for _, tc := range testCases {
		if got := AttemptBudget(tc.remaining); got != tc.want {
			t.Fatalf("AttemptBudget(%v) = %v, want %v", tc.remaining, got, tc.want)
		}
	}
}

func TestNextDelay(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		attempt   int
		remaining time.Duration
		want      time.Duration
		wantOK    bool
	}{
		{name: "first retry", attempt: 1, remaining: time.Minute, want: 2 * time.Second, wantOK: true},
		{name: "second retry doubles", attempt: 2, remaining: time.Minute, want: 4 * time.Second, wantOK: true},
		{name: "fourth retry", attempt: 4, remaining: time.Minute, want: 16 * time.Second, wantOK: true},
		{name: "capped at thirty seconds", attempt: 6, remaining: 10 * time.Minute, want: 30 * time.Second, wantOK: true},
		{name: "large attempt stays capped", attempt: 60, remaining: 10 * time.Minute, want: 30 * time.Second, wantOK: true},
		{name: "clamped to leave room for one attempt", attempt: 3, remaining: 5 * time.Second, want: 3 * time.Second, wantOK: true},
		{name: "exactly no room", attempt: 1, remaining: 2 * time.Second, want: 0, wantOK: false},
		{name: "past deadline", attempt: 1, remaining: -time.Second, want: 0, wantOK: false},
		{name: "attempt below one treated as first", attempt: 0, remaining: time.Minute, want: 2 * time.Second, wantOK: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok := NextDelay(tc.attempt, tc.remaining)
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("NextDelay(%d, %v) = (%v, %v), want (%v, %v)", tc.attempt, tc.remaining, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestSleepWithContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sleepWithContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("sleepWithContext() error = %v, want context.Canceled", err)
	}
	if err := sleepWithContext(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("sleepWithContext() unexpected error: %v", err)
	}
}
