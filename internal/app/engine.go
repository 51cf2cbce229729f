package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iliamunaev/projection-pipeline/internal/apperr"
	"github.com/iliamunaev/projection-pipeline/internal/compare"
	"github.com/iliamunaev/projection-pipeline/internal/debounce"
	"github.com/iliamunaev/projection-pipeline/internal/model"
	"github.com/iliamunaev/projection-pipeline/internal/observability"
	"github.com/iliamunaev/projection-pipeline/internal/pipeline"
	"github.com/iliamunaev/projection-pipeline/internal/validate"
)

// Triggers recorded with each evaluation.
const (
	TriggerAutoChange = "auto-change"
	TriggerSubmit     = "submit"
)

// UnknownVersion is shown when the service is healthy but reports no version.
const UnknownVersion = "Unknown"

// DefaultDebounceDelay is the quiet period before an input change is evaluated.
const DefaultDebounceDelay = 500 * time.Millisecond

// VersionSource reports the remote service version.
type VersionSource interface {
	Version(ctx context.Context) (string, error)
}

// Renderer is told about every state change.
type Renderer interface {
	Render(Snapshot)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Snapshot)

func (f RendererFunc) Render(s Snapshot) { f(s) }

// Options wires an Engine.
type Options struct {
	Evaluator     compare.Evaluator
	Versions      VersionSource
	Compare       *compare.Orchestrator
	DebounceDelay time.Duration
	Logger        *slog.Logger
	Metrics       *observability.Metrics
	Renderer      Renderer
}

// Engine coordinates validation, debouncing, deduplication, evaluation,
// comparison and step navigation over a single State.
type Engine struct {
	state     *State
	eval      compare.Evaluator
	versions  VersionSource
	cmp       *compare.Orchestrator
	debouncer *debounce.Debouncer[model.Scenario]
	log       *slog.Logger
	metrics   *observability.Metrics

	renderMu sync.Mutex
	renderer Renderer
}

// NewEngine panics without an Evaluator.
func NewEngine(opts Options) *Engine {
	if opts.Evaluator == nil {
		panic("app: nil Evaluator")
	}
	if opts.DebounceDelay <= 0 {
		opts.DebounceDelay = DefaultDebounceDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Compare == nil {
		opts.Compare = compare.New(opts.Evaluator,
			compare.WithLogger(opts.Logger),
			compare.WithMetrics(opts.Metrics),
		)
	}

	e := &Engine{
		state:    NewState(),
		eval:     opts.Evaluator,
		versions: opts.Versions,
		cmp:      opts.Compare,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		renderer: opts.Renderer,
	}
	e.debouncer = debounce.New(opts.DebounceDelay, e.autoCalculate,
		debounce.WithObserver(func(ev debounce.Event) {
			e.metrics.ObserveDebounce(string(ev))
		}),
	)
	return e
}

// State exposes the engine's state for reading.
func (e *Engine) State() *State { return e.state }

// Snapshot copies the state and reports whether an evaluation is scheduled.
func (e *Engine) Snapshot() Snapshot {
	snap := e.state.Snapshot()
	snap.Pending = e.debouncer.Pending()
	return snap
}

// Close drops any pending debounced evaluation.
func (e *Engine) Close() { e.debouncer.Cancel() }

// Drain drops any pending debounced evaluation, then waits for a debounced
// run that already fired and for the single evaluation in flight to settle.
func (e *Engine) Drain(ctx context.Context) error {
	e.debouncer.Cancel()
	if err := e.debouncer.Wait(ctx); err != nil {
		return err
	}
	f := e.state.gate.Current()
	if f == nil {
		return nil
	}
	e.log.Info("waiting for in-flight evaluation", "fingerprint", f.Fingerprint())
	_, err := f.Wait(ctx)
	return err
}

// InputChanged validates raw input. A valid scenario becomes current and is
// evaluated after the debounce delay; an invalid one records its messages
// and cancels any pending evaluation.
func (e *Engine) InputChanged(raw model.RawScenario) validate.Result {
	res := validate.Validate(raw)
	if !res.Valid {
		e.debouncer.Cancel()
		e.state.setValidationErrors(res.Errors)
		e.metrics.ObserveRejected("validation")
		e.log.Debug("auto-calculate skipped", "errors", res.Errors)
		e.notify()
		return res
	}

	e.state.setScenario(res.Scenario)
	e.debouncer.Invoke(res.Scenario)
	e.notify()
	return res
}

func (e *Engine) autoCalculate(s model.Scenario) {
	// Errors are already recorded in State.
	_, _ = e.Evaluate(context.Background(), s, TriggerAutoChange)
}

// Submit evaluates raw immediately, bypassing the debounce, and moves to the
// results step on success.
func (e *Engine) Submit(ctx context.Context, raw model.RawScenario) (bool, error) {
	e.debouncer.Cancel()

	res := validate.Validate(raw)
	if !res.Valid {
		e.state.setValidationErrors(res.Errors)
		e.metrics.ObserveRejected("validation")
		e.notify()
		return false, &apperr.ValidationError{Errors: res.Errors}
	}
	e.state.setScenario(res.Scenario)

	ok, err := e.calculate(ctx, res.Scenario, TriggerSubmit)
	if !ok {
		return false, err
	}
	// State may already hold a newer auto-change outcome; this submit's own
	// success decides the step.
	if err := e.state.machine.Advance(pipeline.StepResults); err != nil {
		return false, fmt.Errorf("advance to results: %w", err)
	}
	e.notify()
	return true, nil
}

// Evaluate runs one evaluation of s without touching the pipeline step. A
// scenario outside the accepted ranges is rejected before any request.
func (e *Engine) Evaluate(ctx context.Context, s model.Scenario, trigger string) (bool, error) {
	if res := validate.Scenario(s); !res.Valid {
		return false, &apperr.ValidationError{Errors: res.Errors}
	}
	return e.calculate(ctx, s, trigger)
}

func (e *Engine) calculate(ctx context.Context, s model.Scenario, trigger string) (ok bool, err error) {
	fp := model.NewProjectionRequest(s)
	flight, err := e.state.gate.Begin(fp)
	if err != nil {
		e.metrics.ObserveRejected(apperr.Kind(err))
		e.log.Warn("calculation rejected",
			"trigger", trigger,
			"reason", apperr.Kind(err),
			"fingerprint", fp,
		)
		return false, err
	}

	e.metrics.SetBusy(true)
	e.notify()
	defer func() {
		e.state.gate.Settle(flight, ok)
		e.metrics.SetBusy(e.state.gate.Busy())
		e.notify()
	}()

	// An issued request runs to completion or its own timeout.
	result, err := e.eval.Evaluate(context.WithoutCancel(ctx), s)
	if err != nil {
		e.state.setFailure(err)
		e.log.Error("calculation failed",
			"trigger", trigger,
			"kind", apperr.Kind(err),
			"error", err,
		)
		return false, err
	}

	e.state.setResult(s, result)
	e.log.Info("calculation complete",
		"trigger", trigger,
		"years", s.Years(),
		"monthly_pension", result.MonthlyPension,
	)
	return true, nil
}

// Compare evaluates the benchmark variants of the current scenario and moves
// to the comparison step. The step changes even when the batch is rejected
// or fails, so the comparison view can show the outcome.
func (e *Engine) Compare(ctx context.Context) (model.ComparisonBatchResult, error) {
	e.debouncer.Cancel()
	defer func() {
		_ = e.state.machine.Advance(pipeline.StepComparison)
		e.notify()
	}()

	if err := e.state.gate.BeginBatch(); err != nil {
		e.metrics.ObserveRejected(apperr.Kind(err))
		e.log.Warn("comparison rejected", "reason", apperr.Kind(err))
		return model.ComparisonBatchResult{}, err
	}
	e.metrics.SetBusy(true)
	e.notify()
	defer func() {
		e.state.gate.EndBatch()
		e.metrics.SetBusy(e.state.gate.Busy())
	}()

	base := e.state.Scenario()
	batch, err := e.cmp.CompareAround(context.WithoutCancel(ctx), base)
	e.state.setComparison(batch, err)
	return batch, err
}

// GoTo moves to step. Any step may be chosen.
func (e *Engine) GoTo(step pipeline.Step) error {
	if err := e.state.machine.Advance(step); err != nil {
		return err
	}
	e.notify()
	return nil
}

// Reconfigure returns to the configure step.
func (e *Engine) Reconfigure() {
	e.state.machine.Reset()
	e.notify()
}

// FetchVersion asks the remote service for its version. Failure leaves the
// version empty and is only logged.
func (e *Engine) FetchVersion(ctx context.Context) string {
	if e.versions == nil {
		return ""
	}
	v, err := e.versions.Version(ctx)
	if err != nil {
		e.log.Info("api version unavailable", "error", err)
		return ""
	}
	if v == "" {
		v = UnknownVersion
	}
	e.state.setAPIVersion(v)
	e.notify()
	return v
}

func (e *Engine) notify() {
	e.renderMu.Lock()
	r := e.renderer
	e.renderMu.Unlock()
	if r == nil {
		return
	}
	r.Render(e.Snapshot())
}

// SetRenderer replaces the renderer.
func (e *Engine) SetRenderer(r Renderer) {
	e.renderMu.Lock()
	e.renderer = r
	e.renderMu.Unlock()
}
