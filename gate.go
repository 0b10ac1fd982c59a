// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package throttler

import (
	"runtime"
	"time"

	"github.com/agata-anastazja/throttler/events"
	"github.com/agata-anastazja/throttler/logging"
)

// gate turns tokens into forwarded messages. It never waits for a token: when the bucket is
// empty it hands a rejection marker to the consumer and polls again after pollInterval. Once
// the bucket is stopped and empty the gate drains instead, see drain.
type gate[T any] struct {
	t   *Throttler
	id  string
	in  <-chan T
	out chan<- Message[T]
}

func (g *gate[T]) run() {
	defer close(g.out)

	for {
		switch {
		case g.t.bucket.TryWithdraw():
			if !g.forwardBatch() {
				g.closeStream()
				return
			}
		case g.t.bucket.Stopped() && g.t.bucket.Available() == 0:
			g.drain()
			return
		default:
			g.reject()
		}
	}
}

func (g *gate[T]) closeStream() {
	g.t.notifier.Emit(events.NewStreamClosedEvent(g.t.name, g.id))
	g.t.bucket.Stop()
	logging.Debugf("Stream %v on throttler %v closed", g.id, g.t.name)
}

// drain serves a stream whose bucket is stopped and empty, so no token will ever come. The
// consumer keeps getting rejection markers, values read from the input are dropped, and the
// output closes as soon as the input does.
func (g *gate[T]) drain() {
	logging.Debugf("Stream %v on throttler %v draining, bucket is stopped", g.id, g.t.name)

	dropped := 0
	for {
		select {
		case _, ok := <-g.in:
			if !ok {
				if dropped > 0 {
					logging.Warnf("Stream %v on throttler %v dropped %v messages after its bucket stopped",
						g.id, g.t.name, dropped)
				}
				g.closeStream()
				return
			}
			dropped++
		case g.out <- Message[T]{Rejected: true}:
			g.t.notifier.Emit(events.NewMessageRejectedEvent(g.t.name, g.id))
			g.pause()
		}
	}
}

// forwardBatch spends one token on up to BatchSize messages. It returns false once the input
// is exhausted.
func (g *gate[T]) forwardBatch() bool {
	forwarded := 0
	open := true
	for ; forwarded < g.t.params.BatchSize; forwarded++ {
		if !g.forward() {
			open = false
			break
		}
	}

	if forwarded > 0 {
		g.t.notifier.Emit(events.NewMessagesForwardedEvent(g.t.name, g.id, int64(forwarded)))
	}

	return open
}

// forward moves the next input value to the output, returning false if the input is closed.
func (g *gate[T]) forward() bool {
	v, ok := <-g.in
	if !ok {
		return false
	}

	g.out <- Message[T]{Value: v}
	return true
}

func (g *gate[T]) reject() {
	g.out <- Message[T]{Rejected: true}
	g.t.notifier.Emit(events.NewMessageRejectedEvent(g.t.name, g.id))
	g.pause()
}

func (g *gate[T]) pause() {
	if g.t.pollInterval <= 0 {
		runtime.Gosched()
		return
	}

	time.Sleep(g.t.pollInterval)
}
