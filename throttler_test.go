// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package throttler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agata-anastazja/throttler/events"
	"github.com/agata-anastazja/throttler/rate"
)

type recordingNotifier struct {
	sync.Mutex
	events []events.Event
}

func (r *recordingNotifier) Emit(e events.Event) {
	r.Lock()
	defer r.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingNotifier) types() []events.EventType {
	r.Lock()
	defer r.Unlock()
	types := make([]events.EventType, len(r.events))
	for i, e := range r.events {
		types[i] = e.EventType()
	}
	return types
}

func filled(n int, closed bool) chan int {
	in := make(chan int, n)
	for i := 0; i < n; i++ {
		in <- i
	}

	if closed {
		close(in)
	}

	return in
}

// drainFor reads out until d has passed or out is closed, and returns the forwarded values
// and the number of rejection markers.
func drainFor[T any](out <-chan Message[T], d time.Duration) (forwarded []T, rejected int) {
	deadline := time.After(d)
	for {
		select {
		case m, ok := <-out:
			if !ok {
				return
			}
			if m.Rejected {
				rejected++
			} else {
				forwarded = append(forwarded, m.Value)
			}
		case <-deadline:
			return
		}
	}
}

func TestParams(t *testing.T) {
	th, err := New(rate.Spec{Rate: 1000, Unit: rate.Second, Burst: 1})
	require.NoError(t, err)
	defer th.Stop()

	assert.Equal(t, rate.Params{RefillIntervalMillis: 10, BatchSize: 10, Capacity: 1}, th.Params())
	assert.Equal(t, 10*time.Millisecond, th.Params().RefillInterval())

	minute, err := New(rate.Spec{Rate: 1, Unit: rate.Minute, Burst: 1})
	require.NoError(t, err)
	defer minute.Stop()

	assert.Equal(t, rate.Params{RefillIntervalMillis: 60000, BatchSize: 1, Capacity: 1}, minute.Params())
}

func TestInvalidSpec(t *testing.T) {
	specs := []rate.Spec{
		{Rate: 0, Unit: rate.Second, Burst: 1},
		{Rate: -3, Unit: rate.Second, Burst: 1},
		{Rate: 1, Unit: rate.Second, Burst: 0},
		{Rate: 1, Unit: rate.Unit(99), Burst: 1},
	}

	for _, spec := range specs {
		_, err := New(spec)
		assert.True(t, IsInvalidRateSpec(err), "%+v: %v", spec, err)
	}

	_, err := MakeStreamThrottler[int](0, rate.Second, 1)
	assert.True(t, IsInvalidRateSpec(err))

	out, err := ThrottleStream(filled(1, true), 1, rate.Second, -1)
	assert.True(t, IsInvalidRateSpec(err))
	assert.Nil(t, out)
}

func TestForwardsInOrder(t *testing.T) {
	out, err := ThrottleStream(filled(100, true), 1000, rate.Second, 10)
	require.NoError(t, err)

	forwarded, _ := drainFor(out, 5*time.Second)
	require.Len(t, forwarded, 100)
	for i, v := range forwarded {
		assert.Equal(t, i, v)
	}

	_, ok := <-out
	assert.False(t, ok, "output should be closed")
}

func TestBurstProperty(t *testing.T) {
	// No refill happens in the window, so only the banked burst gets through.
	th, err := New(rate.Spec{Rate: 1, Unit: rate.Minute, Burst: 5})
	require.NoError(t, err)
	defer th.Stop()

	out := Throttle(th, filled(20, false))
	forwarded, rejected := drainFor(out, 200*time.Millisecond)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, forwarded)
	assert.True(t, rejected > 0)
}

func TestBurstThenSteadyRate(t *testing.T) {
	// rate=1/s, burst=9: at most burst+1 messages in the first second.
	th, err := New(rate.Spec{Rate: 1, Unit: rate.Second, Burst: 9})
	require.NoError(t, err)
	defer th.Stop()

	out := Throttle(th, filled(50, false))
	forwarded, _ := drainFor(out, 950*time.Millisecond)
	assert.Len(t, forwarded, 9)

	more, _ := drainFor(out, 1100*time.Millisecond)
	assert.True(t, len(more) >= 1 && len(more) <= 2, "forwarded %v after the burst", len(more))
}

func TestLongRunRate(t *testing.T) {
	th, err := New(rate.Spec{Rate: 200, Unit: rate.Second, Burst: 1})
	require.NoError(t, err)
	defer th.Stop()

	out := Throttle(th, filled(10000, false))
	forwarded, rejected := drainFor(out, time.Second)

	assert.InDelta(t, 200, len(forwarded), 40)
	assert.True(t, rejected > 0)
}

func TestCloseEndsStream(t *testing.T) {
	th, err := New(rate.Spec{Rate: 10, Unit: rate.Second, Burst: 1})
	require.NoError(t, err)

	in := make(chan string)
	out := Throttle(th, in)
	close(in)

	select {
	case m, ok := <-out:
		assert.False(t, ok, "unexpected message %+v", m)
	case <-time.After(time.Second):
		t.Fatal("Output was not closed")
	}

	assert.True(t, th.Stopped())
}

func TestCloseMidBatch(t *testing.T) {
	// 1000/s releases batches of 10; the input ends in the middle of the first one.
	out, err := ThrottleStream(filled(3, true), 1000, rate.Second, 1)
	require.NoError(t, err)

	forwarded, rejected := drainFor(out, time.Second)
	assert.Equal(t, []int{0, 1, 2}, forwarded)
	assert.Equal(t, 0, rejected)
}

func TestNilInput(t *testing.T) {
	th, err := New(rate.Spec{Rate: 1, Unit: rate.Second, Burst: 1})
	require.NoError(t, err)
	defer th.Stop()

	_, ok := <-Throttle[int](th, nil)
	assert.False(t, ok)
}

func TestRejectionDoesNotWaitForRefill(t *testing.T) {
	th, err := New(rate.Spec{Rate: 1, Unit: rate.Minute, Burst: 1})
	require.NoError(t, err)
	defer th.Stop()

	out := Throttle(th, filled(2, false))

	m := <-out
	require.False(t, m.Rejected)

	start := time.Now()
	m = <-out
	assert.True(t, m.Rejected)
	assert.True(t, time.Since(start) < 100*time.Millisecond, "rejection took %v", time.Since(start))
}

func TestZeroPollInterval(t *testing.T) {
	th, err := New(rate.Spec{Rate: 1, Unit: rate.Minute, Burst: 1}, WithPollInterval(0))
	require.NoError(t, err)
	defer th.Stop()

	out := Throttle(th, filled(2, false))
	forwarded, rejected := drainFor(out, 20*time.Millisecond)

	assert.Equal(t, []int{0}, forwarded)
	assert.True(t, rejected > 0)
}

func TestSharedThrottlerCapsCombinedRate(t *testing.T) {
	throttle, err := MakeStreamThrottler[int](20, rate.Second, 1)
	require.NoError(t, err)

	a := throttle(filled(1000, false))
	b := throttle(filled(1000, false))

	var wg sync.WaitGroup
	counts := make([]int, 2)
	for i, out := range []<-chan Message[int]{a, b} {
		wg.Add(1)
		go func(i int, out <-chan Message[int]) {
			defer wg.Done()
			forwarded, _ := drainFor(out, 500*time.Millisecond)
			counts[i] = len(forwarded)
		}(i, out)
	}
	wg.Wait()

	// One banked token plus a token every 50ms, shared between both streams.
	total := counts[0] + counts[1]
	assert.True(t, total >= 5 && total <= 14, "combined %v (%v)", total, counts)
}

func TestIdleStreamDoesNotSlowBusyStream(t *testing.T) {
	throttle, err := MakeStreamThrottler[int](20, rate.Second, 1)
	require.NoError(t, err)

	// Attached but never fed: it can hold at most one token while it waits for input.
	idle := make(chan int)
	defer close(idle)
	throttle(idle)

	busy := throttle(filled(1000, false))
	forwarded, _ := drainFor(busy, time.Second)

	// 20 tokens a second plus one banked, give or take the token the idle stream holds.
	assert.InDelta(t, 20, len(forwarded), 3)
}

// closedWithin reads out until it is closed, reporting false if d passes first.
func closedWithin[T any](out <-chan Message[T], d time.Duration) bool {
	deadline := time.After(d)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

func TestStreamEndsAfterSharedBucketStops(t *testing.T) {
	throttle, err := MakeStreamThrottler[int](100, rate.Second, 1)
	require.NoError(t, err)

	busyIn := make(chan int)
	stopFeeding := make(chan struct{})
	go func() {
		defer close(busyIn)
		for i := 0; ; i++ {
			select {
			case busyIn <- i:
			case <-stopFeeding:
				return
			}
		}
	}()

	quietIn := make(chan int)
	busy := throttle(busyIn)
	quiet := throttle(quietIn)

	deadline := time.After(2 * time.Second)
	for forwarded := 0; forwarded < 5; {
		select {
		case m := <-busy:
			if !m.Rejected {
				forwarded++
			}
		case <-deadline:
			t.Fatal("Busy stream forwarded nothing")
		}
	}

	// Ending the quiet stream stops the bucket both streams share.
	close(quietIn)
	require.True(t, closedWithin(quiet, time.Second))

	// The busy stream keeps reading input it can no longer forward. It may still hold one
	// token taken before the stop, and the bucket may have banked one more.
	forwarded, rejected := drainFor(busy, 100*time.Millisecond)
	assert.True(t, len(forwarded) <= 2, "forwarded %v after the bucket stopped", forwarded)
	assert.True(t, rejected > 0)

	close(stopFeeding)
	assert.True(t, closedWithin(busy, time.Second), "busy stream still open after its input closed")
}

func TestStopThenCloseInputEndsStream(t *testing.T) {
	notifier := &recordingNotifier{}
	th, err := New(rate.Spec{Rate: 10, Unit: rate.Second, Burst: 1}, WithNotifier(notifier))
	require.NoError(t, err)

	in := make(chan int)
	out := Throttle(th, in)
	th.Stop()

	go func() {
		for i := 0; i < 3; i++ {
			in <- i
		}
		close(in)
	}()

	// At most the one banked token is spent, the rest of the input is dropped.
	forwarded, _ := drainFor(out, time.Second)
	assert.True(t, len(forwarded) <= th.Params().BatchSize, "forwarded %v", forwarded)

	_, ok := <-out
	assert.False(t, ok)
	assert.Contains(t, notifier.types(), events.EVENT_STREAM_CLOSED)
}

func TestDeterministicParams(t *testing.T) {
	spec := rate.Spec{Rate: 7.3, Unit: rate.Hour, Burst: 3}

	t1, err := New(spec)
	require.NoError(t, err)
	defer t1.Stop()

	t2, err := New(spec)
	require.NoError(t, err)
	defer t2.Stop()

	assert.Equal(t, t1.Params(), t2.Params())
	assert.NotEqual(t, t1.Name(), t2.Name())
}

func TestStreamEvents(t *testing.T) {
	n := &recordingNotifier{}
	out, err := ThrottleStream(filled(2, true), 1000, rate.Second, 1, WithName("evented"), WithNotifier(n))
	require.NoError(t, err)

	forwarded, _ := drainFor(out, time.Second)
	require.Len(t, forwarded, 2)

	types := n.types()
	require.True(t, len(types) >= 4, "%v", types)
	assert.Equal(t, events.EVENT_STREAM_OPENED, types[0])
	assert.Contains(t, types, events.EVENT_MESSAGES_FORWARDED)
	assert.Contains(t, types, events.EVENT_STREAM_CLOSED)
	assert.Contains(t, types, events.EVENT_BUCKET_STOPPED)

	n.Lock()
	defer n.Unlock()
	for _, e := range n.events {
		assert.Equal(t, "evented", e.Throttler())
		if e.EventType() == events.EVENT_MESSAGES_FORWARDED {
			assert.Equal(t, int64(2), e.NumMessages())
		}
	}
}

func TestRejectionEvents(t *testing.T) {
	n := &recordingNotifier{}
	th, err := New(rate.Spec{Rate: 1, Unit: rate.Minute, Burst: 1}, WithNotifier(n))
	require.NoError(t, err)
	defer th.Stop()

	_, rejected := drainFor(Throttle(th, filled(2, false)), 50*time.Millisecond)
	require.True(t, rejected > 0)

	// A rejection marker is sent before its event is emitted.
	time.Sleep(10 * time.Millisecond)
	assert.Contains(t, n.types(), events.EVENT_MESSAGE_REJECTED)
}

func TestString(t *testing.T) {
	th, err := New(rate.Spec{Rate: 1, Unit: rate.Second, Burst: 1}, WithName("x"))
	require.NoError(t, err)
	defer th.Stop()

	assert.Contains(t, th.String(), "name: x")
}
