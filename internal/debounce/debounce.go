// Package debounce coalesces bursts of input into one delayed call and keeps
// late results from older calls out of the way.
package debounce

import (
	"context"
	"sync"
	"time"
)

// Func is the debounced work. ctx is cancelled once a newer trigger arrives.
type Func func(ctx context.Context, gen uint64)

// Debouncer runs the most recent Func after delay of quiet. Each owner keeps
// its own Debouncer.
type Debouncer struct {
	delay  time.Duration
	parent context.Context

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	cancel  context.CancelFunc
	stopped bool
}

// New returns a Debouncer whose calls derive their context from parent.
func New(parent context.Context, delay time.Duration) *Debouncer {
	if parent == nil {
		parent = context.Background()
	}
	return &Debouncer{delay: delay, parent: parent}
}

// Trigger schedules fn, superseding any pending or running call, and returns
// the new generation. It returns 0 after Stop.
func (d *Debouncer) Trigger(fn Func) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return 0
	}

	d.supersede()
	d.gen++
	gen := d.gen
	ctx, cancel := context.WithCancel(d.parent)
	d.cancel = cancel
	d.timer = time.AfterFunc(d.delay, func() {
		if ctx.Err() != nil {
			return
		}
		fn(ctx, gen)
	})
	return gen
}

// IsCurrent reports whether gen is still the latest trigger.
func (d *Debouncer) IsCurrent(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.stopped && gen == d.gen
}

// Deliver runs fn only if gen is still current, holding the lock so no newer
// trigger can interleave. fn must not call back into the Debouncer.
func (d *Debouncer) Deliver(gen uint64, fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || gen != d.gen {
		return false
	}
	fn()
	return true
}

// Stop cancels the pending timer and any in-flight call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.supersede()
	d.stopped = true
}

func (d *Debouncer) supersede() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
