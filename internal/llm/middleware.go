// Package llm layers cross-cutting concerns (rate limiting, retries,
// logging, hooks) over an llmclient.LLMClient via middleware decorators.
package llm

import (
	"context"
	"time"

	"repostack/internal/llmclient"
)

// Middleware decorates an LLMClient to inject cross-cutting concerns.
type Middleware func(llmclient.LLMClient) llmclient.LLMClient

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner llmclient.LLMClient, mws ...Middleware) llmclient.LLMClient {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// ----------------------------------------------------------------------------
// rpsLimiter – lightweight token-bucket limiter
// ----------------------------------------------------------------------------

// rpsLimiter throttles to at most R requests per second with an optional
// burst capacity. A nil limiter is disabled.
type rpsLimiter struct {
	tokens chan struct{}
	stopCh chan struct{}
}

func newRPSLimiter(rps float64, burst int) *rpsLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	l := &rpsLimiter{
		tokens: make(chan struct{}, burst),
		stopCh: make(chan struct{}),
	}
	// Pre-fill bucket to allow an initial burst.
	for i := 0; i < burst; i++ {
		l.tokens <- struct{}{}
	}
	period := time.Duration(float64(time.Second) / rps)
	if period <= 0 {
		period = time.Millisecond
	}
	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case l.tokens <- struct{}{}:
				default:
					// bucket full; drop token
				}
			case <-l.stopCh:
				return
			}
		}
	}()
	return l
}

// Acquire blocks until a token is available or the context is canceled.
func (l *rpsLimiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopCh:
		return context.Canceled
	case <-l.tokens:
		return nil
	}
}

// TryAcquire takes a token without blocking.
func (l *rpsLimiter) TryAcquire() bool {
	if l == nil {
		return true
	}
	select {
	case <-l.tokens:
		return true
	default:
		return false
	}
}

// Stop terminates the limiter's refill goroutine.
func (l *rpsLimiter) Stop() {
	if l == nil {
		return
	}
	close(l.stopCh)
}

// Limiter is a minimal interface for the token-bucket limiter, usable outside
// the middleware chain (e.g. per-endpoint HTTP throttling).
type Limiter interface {
	Acquire(ctx context.Context) error
	TryAcquire() bool
}

// NewLimiter exposes a Limiter backed by an internal rpsLimiter.
// rps <= 0 returns an always-open limiter.
func NewLimiter(rps float64, burst int) Limiter {
	return limiter{rl: newRPSLimiter(rps, burst)}
}

type limiter struct{ rl *rpsLimiter }

func (l limiter) Acquire(ctx context.Context) error { return l.rl.Acquire(ctx) }
func (l limiter) TryAcquire() bool                  { return l.rl.TryAcquire() }
