package llm

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

type closableClient struct {
	scriptedClient
	closed bool
}

func (c *closableClient) Close() error {
	c.closed = true
	return nil
}

func TestRateLimitAllowsBurstThenThrottles(t *testing.T) {
	inner := &scriptedClient{out: json.RawMessage(`{}`)}
	// Refill period far beyond the test's lifetime: only the burst passes.
	c := Wrap(inner, RateLimit(0.0001, 2))
	defer c.Close()

	for i := 0; i < 2; i++ {
		if _, err := c.GenerateJSON(context.Background(), "p", nil); err != nil {
			t.Fatalf("burst call %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.GenerateJSON(ctx, "p", nil); err == nil {
		t.Fatalf("expected throttling after burst")
	}
	if inner.calls != 2 {
		t.Fatalf("calls = %d, want 2", inner.calls)
	}
}

func TestRateLimitCloseStopsLimiter(t *testing.T) {
	inner := &closableClient{scriptedClient: scriptedClient{out: json.RawMessage(`{}`)}}
	c := Wrap(inner, RateLimit(0.0001, 1))

	if _, err := c.GenerateJSON(context.Background(), "p", nil); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !inner.closed {
		t.Fatalf("Close did not reach the wrapped client")
	}

	// The bucket is drained and the refill goroutine stopped: the next call
	// must fail immediately instead of blocking for a token.
	if _, err := c.GenerateJSON(context.Background(), "p", nil); err == nil {
		t.Fatalf("expected error after Close")
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, want 1", inner.calls)
	}
}
