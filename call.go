// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package throttler

import (
	"sync"

	"github.com/opentracing/opentracing-go"

	"github.com/agata-anastazja/throttler/rate"
)

// CallThrottler throttles function calls rather than streams. Every function wrapped with
// ThrottleFunc gets its own gate on the CallThrottler's bucket, so all of them together are
// capped at the configured rate.
type CallThrottler struct {
	t *Throttler
}

// NewCallThrottler creates a CallThrottler for the given spec.
func NewCallThrottler(spec rate.Spec, opts ...Option) (*CallThrottler, error) {
	t, err := New(spec, opts...)
	if err != nil {
		return nil, err
	}

	return &CallThrottler{t: t}, nil
}

// Throttler returns the underlying Throttler.
func (c *CallThrottler) Throttler() *Throttler {
	return c.t
}

// Stop halts the bucket's refill goroutine. Wrapped functions fall back to onRejected once
// the banked tokens are spent.
func (c *CallThrottler) Stop() {
	c.t.Stop()
}

// ThrottleFunc wraps fn so that each call either runs fn, if a token was available, or runs
// onRejected. Calls through one wrapped function are admitted one at a time, in the order
// they arrive.
func ThrottleFunc[A, R any](c *CallThrottler, fn, onRejected func(A) R) func(A) R {
	if fn == nil || onRejected == nil {
		panic("Cannot throttle a nil function")
	}

	cl := newCaller(c.t)
	return func(a A) R {
		if cl.admit() {
			return fn(a)
		}
		return onRejected(a)
	}
}

// MakeCallThrottler returns a function that wraps functions so that, together, they are
// called at most r times per unit. Calls made when no token is available go to onRejected.
func MakeCallThrottler[A, R any](r float64, unit rate.Unit, burst int, opts ...Option) (func(fn, onRejected func(A) R) func(A) R, error) {
	c, err := NewCallThrottler(rate.Spec{Rate: r, Unit: unit, Burst: burst}, opts...)
	if err != nil {
		return nil, err
	}

	return func(fn, onRejected func(A) R) func(A) R {
		return ThrottleFunc(c, fn, onRejected)
	}, nil
}

type request struct{}

// caller pairs each call with exactly one decision from its gate. The request channel holds
// at most one request, and mu keeps a single call in flight.
type caller struct {
	t        *Throttler
	requests chan request
	replies  <-chan Message[request]
	mu       sync.Mutex
}

func newCaller(t *Throttler) *caller {
	requests := make(chan request, 1)
	return &caller{
		t:        t,
		requests: requests,
		replies:  Throttle(t, requests)}
}

func (c *caller) admit() (accepted bool) {
	tracer := c.t.tracer
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}

	span := tracer.StartSpan("throttled-call")
	defer func() {
		span.SetTag("throttler.name", c.t.name)
		span.SetTag("throttler.rejected", !accepted)
		span.Finish()
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests <- request{}

	// The first reply may be a rejection the gate issued before our request was queued, so
	// only a rejection after that one settles the call.
	if m, ok := <-c.replies; !ok || !m.Rejected {
		return ok
	}

	if m, ok := <-c.replies; !ok || !m.Rejected {
		return ok
	}

	select {
	case <-c.requests:
		return false
	default:
		// The gate took the request after rejecting; it holds a token and is forwarding it.
		m, ok := <-c.replies
		return ok && !m.Rejected
	}
}
