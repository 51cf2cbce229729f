// Package debounce collapses bursts of calls into one delayed execution.
package debounce

import (
	"context"
	"sync"
	"time"
)

// Event names a transition reported to an observer.
type Event string

const (
	EventScheduled Event = "scheduled"
	EventFired     Event = "fired"
	EventCancelled Event = "cancelled"
)

// Option configures a Debouncer.
type Option func(*config)

type config struct {
	observe func(Event)
}

// WithObserver registers fn to be told about schedule, fire and cancel events.
// fn must not call back into the Debouncer.
func WithObserver(fn func(Event)) Option {
	return func(c *config) {
		c.observe = fn
	}
}

// Debouncer runs action with the argument of the last Invoke once no further
// Invoke has happened for delay.
//
// Every Invoke and Cancel bumps a generation counter; a timer only runs the
// action if its generation is still current, so a cancelled or superseded
// run can never execute even if its timer already fired.
type Debouncer[T any] struct {
	delay   time.Duration
	action  func(T)
	observe func(Event)

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	pending bool
	running int
	idle    chan struct{}
}

// New returns a Debouncer for action. A non-positive delay runs on the next
// timer tick.
func New[T any](delay time.Duration, action func(T), opts ...Option) *Debouncer[T] {
	if action == nil {
		panic("debounce.New: nil action")
	}
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if delay < 0 {
		delay = 0
	}
	return &Debouncer[T]{
		delay:   delay,
		action:  action,
		observe: cfg.observe,
	}
}

// Invoke (re)starts the quiet period; arg replaces any pending argument.
func (d *Debouncer[T]) Invoke(arg T) {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = true
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen, arg) })
	d.mu.Unlock()

	d.emit(EventScheduled)
}

// Cancel discards a pending run. It is safe to call with nothing pending.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	wasPending := d.pending
	d.pending = false
	d.mu.Unlock()

	if wasPending {
		d.emit(EventCancelled)
	}
}

// Pending reports whether a run is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *Debouncer[T]) fire(gen uint64, arg T) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	d.running++
	d.mu.Unlock()

	defer d.finish()
	d.emit(EventFired)
	d.action(arg)
}

func (d *Debouncer[T]) finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running--
	if d.running == 0 && d.idle != nil {
		close(d.idle)
		d.idle = nil
	}
}

// Wait blocks until every run that has already started returns. It does not
// wait for, or cancel, a run that is still pending.
func (d *Debouncer[T]) Wait(ctx context.Context) error {
	d.mu.Lock()
	if d.running == 0 {
		d.mu.Unlock()
		return nil
	}
	if d.idle == nil {
		d.idle = make(chan struct{})
	}
	idle := d.idle
	d.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Debouncer[T]) emit(e Event) {
	if d.observe != nil {
		d.observe(e)
	}
}
