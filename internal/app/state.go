package app

import (
	"errors"
	"sync"

	"github.com/iliamunaev/projection-pipeline/internal/apperr"
	"github.com/iliamunaev/projection-pipeline/internal/dedup"
	"github.com/iliamunaev/projection-pipeline/internal/model"
	"github.com/iliamunaev/projection-pipeline/internal/pipeline"
)

// Snapshot is everything a rendering layer needs, copied out of State.
type Snapshot struct {
	Step       pipeline.Step         `json:"step"`
	Indicator  []pipeline.StepStatus `json:"indicator"`
	Connectors []bool                `json:"connectors"`
	Busy       bool                  `json:"busy"`
	Pending    bool                  `json:"pending"`
	InFlight   *model.Fingerprint    `json:"in_flight,omitempty"`

	Scenario         model.Scenario `json:"scenario"`
	ValidationErrors []string       `json:"validation_errors,omitempty"`

	Result    *model.ProjectionResult `json:"result,omitempty"`
	Dashboard *model.Dashboard        `json:"dashboard,omitempty"`
	Failure   *model.ErrorPayload     `json:"failure,omitempty"`

	Comparison        *model.ComparisonBatchResult `json:"comparison,omitempty"`
	ComparisonRows    []model.ComparisonEntry      `json:"comparison_rows"`
	ComparisonFailure *model.ErrorPayload          `json:"comparison_failure,omitempty"`

	APIVersion string `json:"api_version,omitempty"`
}

// State is the engine's single mutable record. Only Engine writes to it;
// readers take a Snapshot.
type State struct {
	gate    *dedup.Gate
	machine *pipeline.Machine

	mu               sync.RWMutex
	scenario         model.Scenario
	validationErrors []string
	result           *model.ProjectionResult
	resultScenario   model.Scenario
	failure          error
	comparison       *model.ComparisonBatchResult
	comparisonErr    error
	apiVersion       string
}

// NewState returns a State holding the default scenario at step 1.
func NewState() *State {
	return &State{
		gate:     dedup.New(),
		machine:  pipeline.New(),
		scenario: model.DefaultScenario(),
	}
}

// Scenario returns the current scenario.
func (s *State) Scenario() model.Scenario {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scenario
}

// Step returns the active pipeline step.
func (s *State) Step() pipeline.Step { return s.machine.Active() }

// Busy reports whether a request is in flight.
func (s *State) Busy() bool { return s.gate.Busy() }

func (s *State) setScenario(sc model.Scenario) {
	s.mu.Lock()
	s.scenario = sc
	s.validationErrors = nil
	s.mu.Unlock()
}

func (s *State) setValidationErrors(errs []string) {
	s.mu.Lock()
	s.validationErrors = append([]string(nil), errs...)
	s.mu.Unlock()
}

func (s *State) setResult(sc model.Scenario, r model.ProjectionResult) {
	s.mu.Lock()
	s.result = &r
	s.resultScenario = sc
	s.failure = nil
	s.mu.Unlock()
}

func (s *State) setFailure(err error) {
	s.mu.Lock()
	s.result = nil
	s.failure = err
	s.mu.Unlock()
}

func (s *State) setComparison(b model.ComparisonBatchResult, err error) {
	s.mu.Lock()
	s.comparison = &b
	s.comparisonErr = err
	s.mu.Unlock()
}

func (s *State) setAPIVersion(v string) {
	s.mu.Lock()
	s.apiVersion = v
	s.mu.Unlock()
}

// Snapshot copies the state for rendering.
func (s *State) Snapshot() Snapshot {
	// The machine and gate have their own locks; read them before s.mu so
	// lock order never inverts with pipeline guards that read State.
	step := s.Step()
	busy := s.Busy()
	fp, inFlight := s.gate.InFlight()

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Step:             step,
		Indicator:        pipeline.Indicator(step),
		Connectors:       pipeline.Connectors(step),
		Busy:             busy,
		Scenario:         s.scenario,
		ValidationErrors: append([]string(nil), s.validationErrors...),
		ComparisonRows:   []model.ComparisonEntry{},
		APIVersion:       s.apiVersion,
	}
	if inFlight {
		snap.InFlight = &fp
	}
	if s.result != nil {
		r := *s.result
		d := model.NewDashboard(s.resultScenario, r)
		snap.Result = &r
		snap.Dashboard = &d
	}
	if s.failure != nil {
		snap.Failure = ErrorPayload(s.failure)
	}
	if s.comparison != nil {
		b := model.ComparisonBatchResult{Entries: append([]model.ComparisonEntry(nil), s.comparison.Entries...)}
		snap.Comparison = &b
		snap.ComparisonRows = b.Successful()
	}
	if s.comparisonErr != nil {
		snap.ComparisonFailure = ErrorPayload(s.comparisonErr)
	}
	return snap
}

// ErrorPayload describes err for display. It returns nil for a nil error.
func ErrorPayload(err error) *model.ErrorPayload {
	if err == nil {
		return nil
	}
	p := &model.ErrorPayload{
		Kind:    apperr.Kind(err),
		Message: apperr.UserMessage(err),
	}
	var invalid *apperr.ValidationError
	if errors.As(err, &invalid) {
		p.Errors = invalid.Errors
	}
	return p
}
