// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package buckets

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agata-anastazja/throttler/events"
)

// Helpers shared by the tests of every Bucket implementation.

type recordingNotifier struct {
	sync.Mutex
	events []events.Event
}

func (r *recordingNotifier) Emit(e events.Event) {
	r.Lock()
	defer r.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingNotifier) count(et events.EventType) int {
	r.Lock()
	defer r.Unlock()
	n := 0
	for _, e := range r.events {
		if e.EventType() == et {
			n++
		}
	}
	return n
}

// TestStartsFull checks that a new bucket holds capacity tokens and no more.
func TestStartsFull(t *testing.T, factory BucketFactory) {
	bucket := factory.NewBucket("full", 5, time.Hour, events.NewNilProducer())
	defer bucket.Stop()

	if bucket.Capacity() != 5 {
		t.Fatalf("Expecting capacity 5. Was %v", bucket.Capacity())
	}

	if bucket.Available() != 5 {
		t.Fatalf("Expecting 5 tokens. Was %v", bucket.Available())
	}

	for i := 0; i < 5; i++ {
		if !bucket.TryWithdraw() {
			t.Fatalf("Expecting withdrawal %v to succeed", i)
		}
	}

	if bucket.TryWithdraw() {
		t.Fatal("Expecting an empty bucket")
	}
}

// TestDepositCap checks that deposits beyond capacity are dropped.
func TestDepositCap(t *testing.T, factory BucketFactory) {
	n := &recordingNotifier{}
	bucket := factory.NewBucket("cap", 2, time.Hour, n)
	defer bucket.Stop()

	if bucket.TryDeposit() {
		t.Fatal("Expecting deposit into a full bucket to fail")
	}

	bucket.TryWithdraw()
	if !bucket.TryDeposit() {
		t.Fatal("Expecting deposit into a non-full bucket to succeed")
	}

	if bucket.Available() != 2 {
		t.Fatalf("Expecting 2 tokens. Was %v", bucket.Available())
	}
}

// TestNonBlockingWithdraw checks that polling an empty bucket returns straight away, well
// before the next refill.
func TestNonBlockingWithdraw(t *testing.T, factory BucketFactory) {
	bucket := factory.NewBucket("empty", 1, time.Hour, events.NewNilProducer())
	defer bucket.Stop()
	bucket.TryWithdraw()

	start := time.Now()
	for i := 0; i < 1000; i++ {
		if bucket.TryWithdraw() {
			t.Fatal("Expecting an empty bucket")
		}
	}

	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("Polling an empty bucket took %v", elapsed)
	}
}

// TestRefill checks that the refill goroutine deposits tokens, drops the ones that do not
// fit, and stops depositing once stopped.
func TestRefill(t *testing.T, factory BucketFactory) {
	n := &recordingNotifier{}
	bucket := factory.NewBucket("refill", 1, 10*time.Millisecond, n)
	bucket.TryWithdraw()

	deadline := time.Now().Add(time.Second)
	for !bucket.TryWithdraw() {
		if time.Now().After(deadline) {
			t.Fatal("Bucket was never refilled")
		}
		time.Sleep(time.Millisecond)
	}

	// Let a few ticks find the bucket full.
	time.Sleep(100 * time.Millisecond)
	if n.count(events.EVENT_TOKEN_DISCARDED) == 0 {
		t.Fatal("Expecting discarded tokens to be reported")
	}

	bucket.Stop()
	bucket.Stop()
	if !bucket.Stopped() {
		t.Fatal("Expecting bucket to report stopped")
	}

	if n.count(events.EVENT_BUCKET_STOPPED) != 1 {
		t.Fatalf("Expecting one stop event. Was %v", n.count(events.EVENT_BUCKET_STOPPED))
	}

	// Drain, then make sure nothing else arrives.
	for bucket.TryWithdraw() {
	}
	time.Sleep(50 * time.Millisecond)
	if bucket.TryWithdraw() {
		t.Fatal("Stopped bucket was refilled")
	}
}

// TestConcurrentAccess checks that concurrent withdrawals never hand out more tokens than
// were banked.
func TestConcurrentAccess(t *testing.T, factory BucketFactory) {
	bucket := factory.NewBucket("concurrent", 100, time.Hour, events.NewNilProducer())
	defer bucket.Stop()

	var taken int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if bucket.TryWithdraw() {
					atomic.AddInt64(&taken, 1)
				}
			}
		}()
	}
	wg.Wait()

	if taken != 100 {
		t.Fatalf("Expecting exactly 100 tokens withdrawn. Was %v", taken)
	}
}
