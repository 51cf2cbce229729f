// Package dedup guards the engine's outbound requests: at most one request
// runs at a time, and a request whose payload matches the one in flight is
// rejected as a duplicate rather than queued.
//
// It is not a cache. Once a request settles its fingerprint is forgotten, so
// the same payload submitted again performs a fresh call.
package dedup

import (
	"context"
	"sync"

	"github.com/iliamunaev/projection-pipeline/internal/apperr"
	"github.com/iliamunaev/projection-pipeline/internal/model"
)

// Flight is a started single evaluation. It settles exactly once.
type Flight struct {
	fp   model.Fingerprint
	done chan struct{}
	ok   bool
}

// Fingerprint returns the payload the flight was started for.
func (f *Flight) Fingerprint() model.Fingerprint { return f.fp }

// Wait blocks until the flight settles and reports whether it succeeded.
func (f *Flight) Wait(ctx context.Context) (bool, error) {
	select {
	case <-f.done:
		return f.ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Gate holds the in-flight request state.
//
// Invariant: flight is non-nil only while busy, and holds the fingerprint of
// the single evaluation in progress. A batch (comparison) marks the gate busy
// without a flight.
type Gate struct {
	mu     sync.Mutex
	flight *Flight
	busy   bool
}

// New returns an idle Gate.
func New() *Gate { return &Gate{} }

// Begin records a new single evaluation for fp.
//
// It returns apperr.ErrDuplicateRequest when a flight with an equal
// fingerprint is unsettled, and apperr.ErrBusy when any other request is
// running.
func (g *Gate) Begin(fp model.Fingerprint) (*Flight, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.flight != nil && g.flight.fp == fp {
		return nil, apperr.ErrDuplicateRequest
	}
	if g.busy {
		return nil, apperr.ErrBusy
	}

	f := &Flight{fp: fp, done: make(chan struct{})}
	g.flight = f
	g.busy = true
	return f, nil
}

// Settle clears the recorded flight and the busy flag, whatever the outcome.
// Settling an already settled flight is a no-op.
func (g *Gate) Settle(f *Flight, ok bool) {
	if f == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	select {
	case <-f.done:
		return
	default:
	}

	f.ok = ok
	close(f.done)
	if g.flight == f {
		g.flight = nil
		g.busy = false
	}
}

// BeginBatch marks the gate busy for a request that has no single
// fingerprint. It returns apperr.ErrBusy when anything is running.
func (g *Gate) BeginBatch() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.busy {
		return apperr.ErrBusy
	}
	g.busy = true
	return nil
}

// EndBatch releases a BeginBatch.
func (g *Gate) EndBatch() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.flight == nil {
		g.busy = false
	}
}

// Busy reports whether any request is in flight.
func (g *Gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

// InFlight returns the fingerprint of the running single evaluation.
func (g *Gate) InFlight() (model.Fingerprint, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.flight == nil {
		return model.Fingerprint{}, false
	}
	return g.flight.fp, true
}

// Current returns the running single evaluation, or nil.
func (g *Gate) Current() *Flight {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.flight
}
