// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package throttler

import (
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/agata-anastazja/throttler/buckets"
	"github.com/agata-anastazja/throttler/buckets/memory"
	"github.com/agata-anastazja/throttler/events"
	"github.com/agata-anastazja/throttler/rate"
)

// DefaultPollInterval is how long a gate pauses after handing out a rejection marker before
// polling the bucket again.
const DefaultPollInterval = time.Millisecond

// Option is a functional option for configuring a Throttler.
type Option func(*options) error

type options struct {
	name          string
	minSleep      time.Duration
	pollInterval  time.Duration
	bucketFactory buckets.BucketFactory
	notifier      events.Notifier
	tracer        opentracing.Tracer
}

func newOptions(opts []Option) (*options, error) {
	o := &options{
		minSleep:     rate.DefaultMinSleep,
		pollInterval: DefaultPollInterval}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if o.name == "" {
		o.name = "throttler-" + uuid.NewString()
	}

	if o.bucketFactory == nil {
		o.bucketFactory = memory.NewBucketFactory()
	}

	if o.notifier == nil {
		o.notifier = events.NewNilProducer()
	}

	return o, nil
}

// WithName names the throttler in events, stats and traces. Unnamed throttlers get a random
// name.
func WithName(name string) Option {
	return func(o *options) error {
		o.name = name
		return nil
	}
}

// WithMinSleep sets the floor on the refill interval. Default: rate.DefaultMinSleep.
func WithMinSleep(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return errors.Wrapf(ErrInvalidOption, "min sleep must be positive, got %v", d)
		}
		o.minSleep = d
		return nil
	}
}

// WithPollInterval sets how long a gate pauses after emitting a rejection marker. Zero makes
// the gate yield to the scheduler instead of sleeping. Default: DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.Wrapf(ErrInvalidOption, "poll interval cannot be negative, got %v", d)
		}
		o.pollInterval = d
		return nil
	}
}

// WithBucketFactory sets where the token bucket comes from. Default: an in-memory bucket.
func WithBucketFactory(bf buckets.BucketFactory) Option {
	return func(o *options) error {
		if bf == nil {
			return errors.Wrap(ErrInvalidOption, "bucket factory cannot be nil")
		}
		o.bucketFactory = bf
		return nil
	}
}

// WithNotifier sets where bucket and gate events are emitted, typically an
// *events.EventProducer. Default: events are discarded.
func WithNotifier(n events.Notifier) Option {
	return func(o *options) error {
		o.notifier = n
		return nil
	}
}

// WithTracer sets the tracer used for throttled function calls. Default: the global tracer.
func WithTracer(tracer opentracing.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}
