// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package stats

import (
	"sync"

	"github.com/agata-anastazja/throttler/events"
)

type throttlerStats struct {
	forwarded, rejected map[string]int64
	// Closed streams still holding a place in one of the top lists.
	closed map[string]struct{}
}

func newThrottlerStats() *throttlerStats {
	return &throttlerStats{
		forwarded: make(map[string]int64),
		rejected:  make(map[string]int64),
		closed:    make(map[string]struct{})}
}

// prune forgets closed streams that have dropped out of both top lists. A closed stream's
// scores never grow again, so it cannot make its way back in.
func (s *throttlerStats) prune() {
	keep := make(map[string]bool, 2*TopN)
	for _, score := range top(s.forwarded) {
		keep[score.Stream] = true
	}
	for _, score := range top(s.rejected) {
		keep[score.Stream] = true
	}

	for stream := range s.closed {
		if keep[stream] {
			continue
		}

		delete(s.forwarded, stream)
		delete(s.rejected, stream)
		delete(s.closed, stream)
	}
}

type memoryListener struct {
	throttlers map[string]*throttlerStats
	sync.RWMutex
}

func NewMemoryStatsListener() Listener {
	return &memoryListener{throttlers: make(map[string]*throttlerStats)}
}

func top(scores map[string]int64) []*StreamScore {
	arr := make([]*StreamScore, 0, len(scores))
	for stream, score := range scores {
		arr = append(arr, &StreamScore{stream, score})
	}

	return sortScores(arr)
}

// TopForwarded returns the TopN streams of a throttler with the most forwarded messages.
func (l *memoryListener) TopForwarded(throttler string) []*StreamScore {
	l.RLock()
	defer l.RUnlock()

	stats, ok := l.throttlers[throttler]
	if !ok {
		return []*StreamScore{}
	}

	return top(stats.forwarded)
}

// TopRejected returns the TopN streams of a throttler with the most rejections.
func (l *memoryListener) TopRejected(throttler string) []*StreamScore {
	l.RLock()
	defer l.RUnlock()

	stats, ok := l.throttlers[throttler]
	if !ok {
		return []*StreamScore{}
	}

	return top(stats.rejected)
}

func (l *memoryListener) Get(throttler, stream string) *StreamScores {
	l.RLock()
	defer l.RUnlock()

	scores := &StreamScores{}
	if stats, ok := l.throttlers[throttler]; ok {
		scores.Forwarded = stats.forwarded[stream]
		scores.Rejected = stats.rejected[stream]
	}

	return scores
}

// HandleEvent counts forwarded and rejected messages per stream. Once a stream closes its
// scores are kept only while it is in one of the top lists, so a long-lived throttler
// serving many short streams does not accumulate them.
func (l *memoryListener) HandleEvent(event events.Event) {
	if event.EventType() == events.EVENT_STREAM_CLOSED {
		l.streamClosed(event)
		return
	}

	key, n, ok := scoreKey(event)
	if !ok {
		return
	}

	l.Lock()
	defer l.Unlock()

	stats, ok := l.throttlers[event.Throttler()]
	if !ok {
		stats = newThrottlerStats()
		l.throttlers[event.Throttler()] = stats
	}

	if key == "forwarded" {
		stats.forwarded[event.Stream()] += n
	} else {
		stats.rejected[event.Stream()] += n
	}
}

func (l *memoryListener) streamClosed(event events.Event) {
	l.Lock()
	defer l.Unlock()

	stats, ok := l.throttlers[event.Throttler()]
	if !ok {
		return
	}

	stats.closed[event.Stream()] = struct{}{}
	stats.prune()
}
