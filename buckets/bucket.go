// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

// Package buckets defines interfaces for abstractions of token buckets.
package buckets

import (
	"time"

	"github.com/agata-anastazja/throttler/events"
)

// Bucket is an abstraction of a capacity-bounded token bucket that refills itself in the
// background. Neither TryDeposit nor TryWithdraw ever blocks, and each is atomic with respect
// to the other.
type Bucket interface {
	// TryDeposit adds a token, returning false if the bucket was full and the token dropped.
	TryDeposit() bool
	// TryWithdraw takes a token, returning false immediately if none is available.
	TryWithdraw() bool
	// Available is a snapshot of the number of tokens in the bucket.
	Available() int
	Capacity() int
	// Stop halts the refill goroutine. Tokens already banked can still be withdrawn. Stop
	// may be called more than once.
	Stop()
	Stopped() bool
}

// BucketFactory creates buckets.
type BucketFactory interface {
	// NewBucket creates a new bucket, full, and starts depositing one token every
	// refillInterval. Events about the bucket are emitted to n.
	NewBucket(name string, capacity int, refillInterval time.Duration, n events.Notifier) Bucket
}
