// Package compare evaluates a fixed set of contribution variants of a
// scenario concurrently and aggregates partial success.
package compare

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliamunaev/projection-pipeline/internal/apperr"
	"github.com/iliamunaev/projection-pipeline/internal/model"
	"github.com/iliamunaev/projection-pipeline/internal/observability"
	"github.com/iliamunaev/projection-pipeline/internal/service/projection"
)

// Evaluator runs one projection.
type Evaluator interface {
	Evaluate(ctx context.Context, s model.Scenario) (model.ProjectionResult, error)
}

// Variant overrides the contribution of the base scenario.
type Variant struct {
	Label        string
	Contribution int
}

// DefaultVariants is the fixed benchmark set. It does not depend on the
// user's own contribution.
var DefaultVariants = []Variant{
	{Label: "Conservative", Contribution: 5000},
	{Label: "Standard", Contribution: 15000},
	{Label: "Optimistic", Contribution: 25000},
}

// Aggregate outcomes.
const (
	OutcomeComplete = "complete"
	OutcomePartial  = "partial"
	OutcomeFailed   = "failed"
)

// Orchestrator fans a comparison out over an Evaluator.
type Orchestrator struct {
	eval     Evaluator
	variants []Variant
	log      *slog.Logger
	metrics  *observability.Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithVariants replaces DefaultVariants.
func WithVariants(v []Variant) Option {
	return func(o *Orchestrator) {
		if len(v) > 0 {
			o.variants = append([]Variant(nil), v...)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics records aggregate outcomes on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New creates an Orchestrator. It panics if eval is nil.
func New(eval Evaluator, opts ...Option) *Orchestrator {
	if eval == nil {
		panic("compare.New: nil evaluator")
	}
	o := &Orchestrator{
		eval:     eval,
		variants: DefaultVariants,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Variants returns the scenarios compared for base, in submission order.
func (o *Orchestrator) Variants(base model.Scenario) []model.Scenario {
	out := make([]model.Scenario, len(o.variants))
	for i, v := range o.variants {
		out[i] = base.WithContribution(v.Contribution)
	}
	return out
}

// CompareAround evaluates every variant of base concurrently and waits for
// all of them. Entries are in submission order regardless of completion
// order. A failed variant never aborts its siblings.
//
// The returned error is apperr.ErrComparisonFailed only when no variant
// succeeded; the batch is returned either way.
func (o *Orchestrator) CompareAround(ctx context.Context, base model.Scenario) (model.ComparisonBatchResult, error) {
	scenarios := o.Variants(base)
	entries := make([]model.ComparisonEntry, len(scenarios))
	ctx = projection.WithOperation(ctx, projection.OpCompareVariant)

	var g errgroup.Group
	g.SetLimit(len(scenarios))

	for i, s := range scenarios {
		i, s := i, s
		g.Go(func() error {
			start := time.Now()
			res, err := o.eval.Evaluate(ctx, s)

			e := model.ComparisonEntry{
				Index:    i,
				Label:    o.variants[i].Label,
				Scenario: s,
				Status:   "ok",
			}
			if err != nil {
				e.Status = "error"
				e.Kind = apperr.Kind(err)
				e.Reason = apperr.UserMessage(err)
				o.log.Debug("comparison variant failed",
					"index", i, "contribution", s.Contribution, "duration", time.Since(start), "error", err)
			} else {
				r := res
				e.Result = &r
			}
			entries[i] = e
			return nil
		})
	}
	// Every closure returns nil; failures are recorded per entry.
	_ = g.Wait()

	batch := model.ComparisonBatchResult{Entries: entries}
	succeeded := len(batch.Successful())
	failed := batch.Failed()

	if len(failed) > 0 {
		attrs := make([]any, 0, len(failed))
		for _, f := range failed {
			attrs = append(attrs, slog.Group(fmt.Sprintf("variant_%d", f.Index+1),
				"contribution", f.Scenario.Contribution,
				"kind", f.Kind,
				"reason", f.Reason,
			))
		}
		o.log.Error("some scenario comparisons failed", attrs...)
	}

	switch {
	case succeeded == 0:
		o.metrics.ObserveComparison(OutcomeFailed)
		return batch, apperr.ErrComparisonFailed
	case len(failed) > 0:
		o.metrics.ObserveComparison(OutcomePartial)
	default:
		o.metrics.ObserveComparison(OutcomeComplete)
	}

	o.log.Info("scenario comparison complete", "successful", succeeded, "failed", len(failed))
	return batch, nil
}
