// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package stats

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agata-anastazja/throttler/events"
)

func TestMemoryCountsForwarded(t *testing.T) {
	listener := NewMemoryStatsListener()
	listener.HandleEvent(events.NewMessagesForwardedEvent("test", "s1", 10))
	listener.HandleEvent(events.NewMessagesForwardedEvent("test", "s1", 3))

	assert.Equal(t, &StreamScores{Forwarded: 13}, listener.Get("test", "s1"))
	assert.Equal(t, &StreamScores{}, listener.Get("test", "s2"))
	assert.Equal(t, &StreamScores{}, listener.Get("nontest", "s1"))
}

func TestMemoryCountsRejected(t *testing.T) {
	listener := NewMemoryStatsListener()
	listener.HandleEvent(events.NewMessageRejectedEvent("test", "s1"))
	listener.HandleEvent(events.NewMessageRejectedEvent("test", "s1"))

	assert.Equal(t, &StreamScores{Rejected: 2}, listener.Get("test", "s1"))
}

func TestMemoryIgnoresOtherEvents(t *testing.T) {
	listener := NewMemoryStatsListener()
	listener.HandleEvent(events.NewStreamOpenedEvent("test", "s1"))
	listener.HandleEvent(events.NewStreamClosedEvent("test", "s1"))
	listener.HandleEvent(events.NewTokenDiscardedEvent("test"))
	listener.HandleEvent(events.NewBucketStoppedEvent("test"))

	assert.Equal(t, &StreamScores{}, listener.Get("test", "s1"))
	assert.Empty(t, listener.TopForwarded("test"))
	assert.Empty(t, listener.TopRejected("test"))
}

func TestMemoryTopForwarded(t *testing.T) {
	listener := NewMemoryStatsListener()
	listener.HandleEvent(events.NewMessagesForwardedEvent("test", "s-1", 3))
	listener.HandleEvent(events.NewMessagesForwardedEvent("test", "s-2", 10))
	listener.HandleEvent(events.NewMessagesForwardedEvent("test", "s-3", 1))
	listener.HandleEvent(events.NewMessagesForwardedEvent("other", "s-4", 100))

	assert.Equal(t, []*StreamScore{
		{Stream: "s-2", Score: 10},
		{Stream: "s-1", Score: 3},
		{Stream: "s-3", Score: 1}}, listener.TopForwarded("test"))
}

func TestMemoryTopRejectedIsTruncated(t *testing.T) {
	listener := NewMemoryStatsListener()
	for i := 0; i < TopN+5; i++ {
		for j := 0; j <= i; j++ {
			listener.HandleEvent(events.NewMessageRejectedEvent("test", fmt.Sprintf("s-%02d", i)))
		}
	}

	top := listener.TopRejected("test")
	assert.Len(t, top, TopN)
	assert.Equal(t, &StreamScore{Stream: fmt.Sprintf("s-%02d", TopN+4), Score: TopN + 5}, top[0])
}

func TestMemoryForgetsClosedStreamsOutsideTop(t *testing.T) {
	listener := NewMemoryStatsListener()
	for i := 0; i < TopN; i++ {
		listener.HandleEvent(events.NewMessagesForwardedEvent("test", fmt.Sprintf("s-%02d", i), int64(100+i)))
	}

	listener.HandleEvent(events.NewMessagesForwardedEvent("test", "small", 1))
	listener.HandleEvent(events.NewMessageRejectedEvent("test", "small"))
	listener.HandleEvent(events.NewMessagesForwardedEvent("test", "open", 2))

	// Still in the top rejected list, so nothing is forgotten yet.
	listener.HandleEvent(events.NewStreamClosedEvent("test", "small"))
	assert.Equal(t, &StreamScores{Forwarded: 1, Rejected: 1}, listener.Get("test", "small"))

	for i := 0; i < TopN; i++ {
		stream := fmt.Sprintf("r-%02d", i)
		listener.HandleEvent(events.NewMessageRejectedEvent("test", stream))
		listener.HandleEvent(events.NewMessageRejectedEvent("test", stream))
	}

	// Pushed out of both lists: dropped at the next close on the throttler.
	listener.HandleEvent(events.NewStreamClosedEvent("test", "s-00"))
	assert.Equal(t, &StreamScores{}, listener.Get("test", "small"))
	assert.Equal(t, &StreamScores{Forwarded: 100}, listener.Get("test", "s-00"))

	// Open streams keep their scores whatever their rank.
	assert.Equal(t, &StreamScores{Forwarded: 2}, listener.Get("test", "open"))
	assert.Len(t, listener.TopForwarded("test"), TopN)
}
