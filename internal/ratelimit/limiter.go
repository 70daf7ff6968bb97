// Package ratelimit throttles outbound invoice email per scope.
package ratelimit

import "context"

// Limiter admits a bounded number of sends per scope and second.
type Limiter interface {
	Allow(ctx context.Context, scope string) (bool, error)
	Wait(ctx context.Context, scope string) error
}

// Unlimited admits everything. It is used when no shared store is configured.
type Unlimited struct{}

var _ Limiter = Unlimited{}

func (Unlimited) Allow(ctx context.Context, scope string) (bool, error) { return true, nil }

func (Unlimited) Wait(ctx context.Context, scope string) error { return ctx.Err() }
