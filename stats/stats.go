// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

// Package stats keeps per-stream counts of forwarded messages and rejections, by throttler.
package stats

import (
	"fmt"
	"sort"

	"github.com/agata-anastazja/throttler/events"
)

// TopN is the length of the lists returned by TopForwarded and TopRejected.
const TopN = 10

// Listener is an interface for consuming events and retrieving per-stream forwarded and
// rejected counts.
type Listener interface {
	TopForwarded(throttler string) []*StreamScore
	TopRejected(throttler string) []*StreamScore
	Get(throttler, stream string) *StreamScores
	HandleEvent(events.Event)
}

// StreamScores stores a specific stream's stats
type StreamScores struct {
	Forwarded int64 `json:"forwarded"`
	Rejected  int64 `json:"rejected"`
}

// StreamScore stores a specific stream's stats. Used for top-lists.
type StreamScore struct {
	Stream string `json:"stream"`
	Score  int64  `json:"value"`
}

func (s *StreamScore) String() string {
	return fmt.Sprintf("{%s, %d}", s.Stream, s.Score)
}

// scoreKey maps an event to the list it counts towards and its weight. ok is false for events
// that are not counted.
func scoreKey(e events.Event) (key string, n int64, ok bool) {
	switch e.EventType() {
	case events.EVENT_MESSAGES_FORWARDED:
		return "forwarded", e.NumMessages(), true
	case events.EVENT_MESSAGE_REJECTED:
		return "rejected", 1, true
	default:
		return "", 0, false
	}
}

// sortScores orders by descending score, then by stream, and truncates to TopN.
func sortScores(arr []*StreamScore) []*StreamScore {
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].Score != arr[j].Score {
			return arr[i].Score > arr[j].Score
		}
		return arr[i].Stream < arr[j].Stream
	})

	if len(arr) > TopN {
		arr = arr[:TopN]
	}

	return arr
}
