// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

// Package metrics exports throttler events as Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agata-anastazja/throttler/events"
)

const namespace = "throttler"

// Collector counts events by throttler name. Stream ids are left out of the labels, as every
// stream gets a fresh one.
type Collector struct {
	forwarded *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	discarded *prometheus.CounterVec
	streams   *prometheus.GaugeVec
	stopped   *prometheus.CounterVec
}

// New creates a Collector and registers its metrics with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_forwarded_total",
			Help:      "Messages forwarded by throttled streams.",
		}, []string{"throttler"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_rejected_total",
			Help:      "Rejection markers emitted because no token was available.",
		}, []string{"throttler"}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_discarded_total",
			Help:      "Tokens dropped because the bucket was full.",
		}, []string{"throttler"}),
		streams: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_streams",
			Help:      "Streams currently attached to a throttler.",
		}, []string{"throttler"}),
		stopped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buckets_stopped_total",
			Help:      "Buckets whose refill has been stopped.",
		}, []string{"throttler"}),
	}

	for _, collector := range []prometheus.Collector{c.forwarded, c.rejected, c.discarded, c.streams, c.stopped} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// HandleEvent updates the metric the event belongs to. It has the signature of an
// events.Listener.
func (c *Collector) HandleEvent(e events.Event) {
	name := e.Throttler()

	switch e.EventType() {
	case events.EVENT_MESSAGES_FORWARDED:
		c.forwarded.WithLabelValues(name).Add(float64(e.NumMessages()))
	case events.EVENT_MESSAGE_REJECTED:
		c.rejected.WithLabelValues(name).Inc()
	case events.EVENT_TOKEN_DISCARDED:
		c.discarded.WithLabelValues(name).Inc()
	case events.EVENT_STREAM_OPENED:
		c.streams.WithLabelValues(name).Inc()
	case events.EVENT_STREAM_CLOSED:
		c.streams.WithLabelValues(name).Dec()
	case events.EVENT_BUCKET_STOPPED:
		c.stopped.WithLabelValues(name).Inc()
	}
}
