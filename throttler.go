// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

// Package throttler caps the throughput of a stream of messages, or of calls to a function,
// at a configured rate while allowing short bursts.
//
// A Throttler owns one token bucket. Every stream passed to Throttle gets its own gate, which
// polls the bucket without blocking: a token releases a batch of messages, an empty bucket
// produces a rejection marker on the output instead. Sharing one Throttler between several
// streams caps their combined rate, with no fairness between them.
//
//	t, err := throttler.New(rate.Spec{Rate: 100, Unit: rate.Second, Burst: 10})
//	if err != nil {
//		return err
//	}
//
//	for m := range throttler.Throttle(t, in) {
//		if m.Rejected {
//			continue
//		}
//		handle(m.Value)
//	}
package throttler

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/agata-anastazja/throttler/buckets"
	"github.com/agata-anastazja/throttler/events"
	"github.com/agata-anastazja/throttler/logging"
	"github.com/agata-anastazja/throttler/rate"
)

// Message is an item on a throttled stream: either a forwarded input value, or a rejection
// marker saying no token was available when the gate polled. A rejection never consumes an
// input value.
type Message[T any] struct {
	Value    T
	Rejected bool
}

// Throttler holds the token bucket shared by every stream it throttles.
type Throttler struct {
	*options
	spec   rate.Spec
	params rate.Params
	bucket buckets.Bucket
}

// New creates a Throttler for the given spec and starts refilling its bucket.
func New(spec rate.Spec, opts ...Option) (*Throttler, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	params, err := rate.Calculate(spec, o.minSleep)
	if err != nil {
		return nil, err
	}

	t := &Throttler{
		options: o,
		spec:    spec,
		params:  params,
		bucket:  o.bucketFactory.NewBucket(o.name, params.Capacity, params.RefillInterval(), o.notifier)}

	logging.Debugf("Created throttler %v: %v, %v", t.name, spec, params)
	return t, nil
}

func (t *Throttler) Name() string {
	return t.name
}

func (t *Throttler) Spec() rate.Spec {
	return t.spec
}

func (t *Throttler) Params() rate.Params {
	return t.params
}

// Stop halts the bucket's refill goroutine. Streams still attached see only the tokens
// already banked, then rejection markers. Values they read after that are dropped, and each
// output closes when its input does.
func (t *Throttler) Stop() {
	t.bucket.Stop()
}

func (t *Throttler) Stopped() bool {
	return t.bucket.Stopped()
}

func (t *Throttler) String() string {
	return fmt.Sprintf("Throttler{name: %v, spec: %v, params: %v}", t.name, t.spec, t.params)
}

// Throttle starts a gate reading from in and returns its output. The output carries the
// values of in, in order, interleaved with rejection markers, and must be read until it is
// closed.
//
// When in is closed the output is closed and the Throttler's bucket is stopped. Any other
// stream sharing the Throttler spends the tokens left in the bucket, then gets only
// rejection markers: its remaining values are dropped and its output closes when its input
// does. Only share a Throttler between streams with the same lifetime.
func Throttle[T any](t *Throttler, in <-chan T) <-chan Message[T] {
	out := make(chan Message[T])
	if in == nil {
		close(out)
		return out
	}

	g := &gate[T]{
		t:   t,
		id:  uuid.NewString(),
		in:  in,
		out: out}

	t.notifier.Emit(events.NewStreamOpenedEvent(t.name, g.id))
	go g.run()

	return out
}

// MakeStreamThrottler returns a reusable throttling function. Every stream it is applied to
// shares one bucket, so their combined output is capped at r per unit.
func MakeStreamThrottler[T any](r float64, unit rate.Unit, burst int, opts ...Option) (func(<-chan T) <-chan Message[T], error) {
	t, err := New(rate.Spec{Rate: r, Unit: unit, Burst: burst}, opts...)
	if err != nil {
		return nil, err
	}

	return func(in <-chan T) <-chan Message[T] {
		return Throttle(t, in)
	}, nil
}

// ThrottleStream throttles a single stream at r per unit.
func ThrottleStream[T any](in <-chan T, r float64, unit rate.Unit, burst int, opts ...Option) (<-chan Message[T], error) {
	throttle, err := MakeStreamThrottler[T](r, unit, burst, opts...)
	if err != nil {
		return nil, err
	}

	return throttle(in), nil
}
