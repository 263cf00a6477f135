package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for client-side request pacing
type Limiter interface {
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
}

// New returns a paced limiter for rps requests per second, or an unlimited
// one when rps is not positive.
func New(rps float64, burst int) Limiter {
	if rps <= 0 {
		return Unlimited{}
	}
	return NewPaced(rps, burst)
}

// Paced spaces requests with a token bucket from golang.org/x/time/rate
type Paced struct {
	limiter *rate.Limiter
}

// NewPaced creates a limiter allowing rps requests per second with the given burst
func NewPaced(rps float64, burst int) *Paced {
	if burst < 1 {
		burst = 1
	}
	return &Paced{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a token is available
func (p *Paced) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Unlimited never delays a request
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
