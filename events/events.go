// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

// Package events describes what happens inside buckets and gates, and delivers it
// asynchronously to a listener.
package events

import (
	"fmt"
	"sync"

	"github.com/agata-anastazja/throttler/logging"
)

type EventType int

const (
	EVENT_MESSAGES_FORWARDED EventType = iota
	EVENT_MESSAGE_REJECTED
	EVENT_TOKEN_DISCARDED
	EVENT_STREAM_OPENED
	EVENT_STREAM_CLOSED
	EVENT_BUCKET_STOPPED
)

var eventNames = []string{
	EVENT_MESSAGES_FORWARDED: "EVENT_MESSAGES_FORWARDED",
	EVENT_MESSAGE_REJECTED:   "EVENT_MESSAGE_REJECTED",
	EVENT_TOKEN_DISCARDED:    "EVENT_TOKEN_DISCARDED",
	EVENT_STREAM_OPENED:      "EVENT_STREAM_OPENED",
	EVENT_STREAM_CLOSED:      "EVENT_STREAM_CLOSED",
	EVENT_BUCKET_STOPPED:     "EVENT_BUCKET_STOPPED"}

func (et EventType) String() string {
	if et < 0 || int(et) >= len(eventNames) {
		panic(fmt.Sprintf("Don't know event %d", et))
	}

	return eventNames[et]
}

// Event is emitted by buckets and gates. Stream is empty for bucket events.
type Event interface {
	EventType() EventType
	Throttler() string
	Stream() string
	NumMessages() int64
}

// Notifier is anything events can be emitted to.
type Notifier interface {
	Emit(e Event)
}

// EventProducer is a hook into the notification system, to inform listeners that certain events
// take place. Emit never blocks; events are dropped when the buffer is full.
type EventProducer struct {
	c      chan Event
	done   chan struct{}
	closed sync.Once
}

func (e *EventProducer) Emit(event Event) {
	if e == nil || e.c == nil {
		return
	}

	select {
	case e.c <- event:
	// OK
	default:
		logging.Debug("Event buffer full; dropping event.")
	}
}

// Close stops delivery once the events already buffered have been handed to the listener.
// Events emitted after Close may never be delivered.
func (e *EventProducer) Close() {
	if e == nil || e.c == nil {
		return
	}

	e.closed.Do(func() {
		close(e.done)
	})
}

func (e *EventProducer) notifyListeners(l Listener) {
	for {
		select {
		case event := <-e.c:
			l(event)
		case <-e.done:
			// Drain what is already buffered.
			for {
				select {
				case event := <-e.c:
					l(event)
				default:
					return
				}
			}
		}
	}
}

// Listener is a function that consumes an Event
type Listener func(details Event)

// RegisterListener takes a Listener and a buffer size and
// returns an EventProducer that consumes events and notifies listeners
func RegisterListener(listener Listener, bufsize int) *EventProducer {
	if listener == nil {
		panic("Cannot register a nil listener")
	}

	if bufsize < 1 {
		panic("Event buffer size must be greater than 0")
	}

	ep := &EventProducer{c: make(chan Event, bufsize), done: make(chan struct{})}

	go ep.notifyListeners(listener)

	return ep
}

// NewNilProducer returns an EventProducer that discards everything.
func NewNilProducer() *EventProducer {
	return &EventProducer{}
}

type streamEvent struct {
	eventType         EventType
	throttler, stream string
	numMessages       int64
}

func (s *streamEvent) String() string {
	return fmt.Sprintf("streamEvent{type: %v, throttler: %v, stream: %v, numMessages: %v}",
		s.eventType, s.throttler, s.stream, s.numMessages)
}

func (s *streamEvent) EventType() EventType {
	return s.eventType
}

func (s *streamEvent) Throttler() string {
	return s.throttler
}

func (s *streamEvent) Stream() string {
	return s.stream
}

func (s *streamEvent) NumMessages() int64 {
	return s.numMessages
}

// NewMessagesForwardedEvent creates a new event with the type EVENT_MESSAGES_FORWARDED
func NewMessagesForwardedEvent(throttler, stream string, numMessages int64) Event {
	return newStreamEvent(throttler, stream, numMessages, EVENT_MESSAGES_FORWARDED)
}

// NewMessageRejectedEvent creates a new event with the type EVENT_MESSAGE_REJECTED
func NewMessageRejectedEvent(throttler, stream string) Event {
	return newStreamEvent(throttler, stream, 1, EVENT_MESSAGE_REJECTED)
}

// NewTokenDiscardedEvent creates a new event with the type EVENT_TOKEN_DISCARDED
func NewTokenDiscardedEvent(throttler string) Event {
	return newStreamEvent(throttler, "", 1, EVENT_TOKEN_DISCARDED)
}

// NewStreamOpenedEvent creates a new event with the type EVENT_STREAM_OPENED
func NewStreamOpenedEvent(throttler, stream string) Event {
	return newStreamEvent(throttler, stream, 0, EVENT_STREAM_OPENED)
}

// NewStreamClosedEvent creates a new event with the type EVENT_STREAM_CLOSED
func NewStreamClosedEvent(throttler, stream string) Event {
	return newStreamEvent(throttler, stream, 0, EVENT_STREAM_CLOSED)
}

// NewBucketStoppedEvent creates a new event with the type EVENT_BUCKET_STOPPED
func NewBucketStoppedEvent(throttler string) Event {
	return newStreamEvent(throttler, "", 0, EVENT_BUCKET_STOPPED)
}

func newStreamEvent(throttler, stream string, numMessages int64, eventType EventType) *streamEvent {
	return &streamEvent{
		eventType:   eventType,
		throttler:   throttler,
		stream:      stream,
		numMessages: numMessages}
}
