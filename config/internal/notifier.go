// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package internal

// Notifier coalesces change notifications: at most one is pending on Watcher at any time.
type Notifier struct {
	Watcher chan struct{}
}

func (n *Notifier) Notify() {
	select {
	case n.Watcher <- struct{}{}:
		// Done.
	default:
		// Already a message on the channel.
	}
}

func NewNotifier() *Notifier {
	return &Notifier{make(chan struct{}, 1)}
}
