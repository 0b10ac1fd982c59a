// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

// Package memory implements token buckets in memory. Tokens live in a buffered channel sized
// to the bucket's capacity, so deposits and withdrawals are single non-blocking channel
// operations.
package memory

import (
	"sync"
	"time"

	"github.com/agata-anastazja/throttler/buckets"
	"github.com/agata-anastazja/throttler/events"
	"github.com/agata-anastazja/throttler/logging"
)

type bucketFactory struct{}

func (bf *bucketFactory) NewBucket(name string, capacity int, refillInterval time.Duration, n events.Notifier) buckets.Bucket {
	if capacity < 1 {
		panic("Bucket capacity must be greater than 0")
	}

	if refillInterval <= 0 {
		panic("Refill interval must be positive")
	}

	if n == nil {
		n = events.NewNilProducer()
	}

	bucket := &tokenBucket{
		name:           name,
		tokens:         make(chan struct{}, capacity),
		refillInterval: refillInterval,
		n:              n,
		closer:         make(chan struct{})}

	// Start full
	for bucket.TryDeposit() {
	}

	go bucket.refillLoop()

	return bucket
}

func NewBucketFactory() buckets.BucketFactory {
	return &bucketFactory{}
}

// tokenBucket banks tokens in a buffered channel. A single goroutine deposits a token every
// refillInterval until Stop() is called; any number of gates withdraw concurrently.
type tokenBucket struct {
	name           string
	tokens         chan struct{}
	refillInterval time.Duration
	n              events.Notifier
	closer         chan struct{}
	stopOnce       sync.Once
}

func (b *tokenBucket) TryDeposit() bool {
	select {
	case b.tokens <- struct{}{}:
		return true
	default:
		// Full; the token is dropped.
		return false
	}
}

func (b *tokenBucket) TryWithdraw() bool {
	select {
	case <-b.tokens:
		return true
	default:
		return false
	}
}

func (b *tokenBucket) Available() int {
	return len(b.tokens)
}

func (b *tokenBucket) Capacity() int {
	return cap(b.tokens)
}

func (b *tokenBucket) refillLoop() {
	t := time.NewTicker(b.refillInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			if !b.TryDeposit() {
				b.n.Emit(events.NewTokenDiscardedEvent(b.name))
			}
		case <-b.closer:
			logging.Debugf("Stopped refilling bucket %v", b.name)
			return
		}
	}
}

func (b *tokenBucket) Stop() {
	b.stopOnce.Do(func() {
		close(b.closer)
		b.n.Emit(events.NewBucketStoppedEvent(b.name))
	})
}

func (b *tokenBucket) Stopped() bool {
	select {
	case <-b.closer:
		return true
	default:
		return false
	}
}
