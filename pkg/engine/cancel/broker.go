// Package cancel implements the process-wide cancellation broker: a single
// broadcast point that turns a user interrupt (double-ESC, SIGINT, an
// explicit stop command) into the cancellation of whichever turn is
// currently running. Every context derived from the armed turn context
// cancels transitively, so ToolPipeline and any in-flight tool observe the
// same signal without a separate listener registry.
package cancel

import (
	"context"
	"sync"
)

// Broker is a process-wide singleton constructed once at startup and torn
// down at process exit (see cmd/engine_factory.go). It holds at most one
// armed turn at a time, matching the runloop's no-overlapping-turns
// invariant.
type Broker struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	armed  bool
}

// NewBroker creates an unarmed broker.
func NewBroker() *Broker {
	return &Broker{}
}

// Arm registers the cancel func for the turn about to run and returns a
// disarm function the caller must invoke when the turn finishes (success,
// failure, or cancellation), so a stale cancel func is never invoked for a
// later, unrelated turn.
func (b *Broker) Arm(cancel context.CancelFunc) (disarm func()) {
	b.mu.Lock()
	b.cancel = cancel
	b.armed = true
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.armed = false
			b.cancel = nil
		})
	}
}

// Trigger broadcasts cancellation to the currently armed turn, if any. It is
// safe to call with nothing armed (e.g. an ESC press between turns).
func (b *Broker) Trigger() {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Armed reports whether a turn is currently listening for cancellation.
func (b *Broker) Armed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.armed
}
