// Package live provides the in-process change notification and snapshot
// streaming primitives behind every live read in the application.
//
// A Notifier is bumped after each committed write. Stream re-runs a query
// whenever its Source signals a change and delivers the fresh snapshot to a
// single subscriber until the subscriber's context is cancelled.
package live

import "sync"

// Source signals data changes. Changed returns a channel that is closed by
// the next change after the call.
type Source interface {
	Changed() <-chan struct{}
}

// Notifier broadcasts change signals to any number of waiters.
// The zero value is not usable; call NewNotifier.
type Notifier struct {
	mu      sync.Mutex
	version uint64
	changed chan struct{}
}

// NewNotifier creates a Notifier.
func NewNotifier() *Notifier {
	return &Notifier{changed: make(chan struct{})}
}

// Notify wakes every waiter that obtained a channel from Changed.
func (n *Notifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.version++
	close(n.changed)
	n.changed = make(chan struct{})
}

// Changed returns a channel closed by the next Notify.
func (n *Notifier) Changed() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.changed
}

// Version returns the number of notifications so far.
func (n *Notifier) Version() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.version
}
