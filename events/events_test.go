// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterListener(t *testing.T) {
	received := make(chan Event, 10)
	p := RegisterListener(func(e Event) { received <- e }, 10)
	defer p.Close()

	p.Emit(NewMessagesForwardedEvent("api", "s1", 3))
	p.Emit(NewMessageRejectedEvent("api", "s1"))

	e := receive(t, received)
	assert.Equal(t, EVENT_MESSAGES_FORWARDED, e.EventType())
	assert.Equal(t, "api", e.Throttler())
	assert.Equal(t, "s1", e.Stream())
	assert.Equal(t, int64(3), e.NumMessages())

	e = receive(t, received)
	assert.Equal(t, EVENT_MESSAGE_REJECTED, e.EventType())
	assert.Equal(t, int64(1), e.NumMessages())
}

func TestEmitNeverBlocks(t *testing.T) {
	block := make(chan struct{})
	p := RegisterListener(func(e Event) { <-block }, 1)
	defer close(block)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			p.Emit(NewTokenDiscardedEvent("api"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full buffer")
	}
}

func TestCloseDrainsBufferedEvents(t *testing.T) {
	received := make(chan Event, 10)
	release := make(chan struct{})
	p := RegisterListener(func(e Event) {
		<-release
		received <- e
	}, 10)

	p.Emit(NewStreamOpenedEvent("api", "s1"))
	p.Emit(NewStreamClosedEvent("api", "s1"))
	p.Close()
	p.Close()
	close(release)

	assert.Equal(t, EVENT_STREAM_OPENED, receive(t, received).EventType())
	assert.Equal(t, EVENT_STREAM_CLOSED, receive(t, received).EventType())
}

func TestNilProducer(t *testing.T) {
	p := NewNilProducer()
	p.Emit(NewBucketStoppedEvent("api"))
	p.Close()

	var nilProducer *EventProducer
	nilProducer.Emit(NewBucketStoppedEvent("api"))
}

func TestRegisterNilListenerPanics(t *testing.T) {
	assert.Panics(t, func() { RegisterListener(nil, 1) })
	assert.Panics(t, func() { RegisterListener(func(Event) {}, 0) })
}

func TestEventTypeNames(t *testing.T) {
	assert.Equal(t, "EVENT_BUCKET_STOPPED", EVENT_BUCKET_STOPPED.String())
	assert.Panics(t, func() { _ = EventType(99).String() })
}

func receive(t *testing.T, c <-chan Event) Event {
	select {
	case e := <-c:
		return e
	case <-time.After(time.Second):
		require.FailNow(t, "no event received")
	}
	return nil
}
