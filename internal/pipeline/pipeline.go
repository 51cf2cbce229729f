// Package pipeline tracks the active step of the linear planning workflow.
//
// The machine is a "go to" primitive with no guards of its own. Callers
// decide when a transition is allowed and may pass that decision in as a
// Guard.
package pipeline

import (
	"fmt"
	"sync"
)

// Step is a 1-based workflow ordinal.
type Step int

const (
	StepConfigure  Step = 1
	StepCalculate  Step = 2
	StepResults    Step = 3
	StepComparison Step = 4
)

// NumSteps is the number of workflow steps.
const NumSteps = 4

var stepNames = [...]string{"", "configure", "calculate", "results", "comparison"}

func (s Step) String() string {
	if s.Valid() {
		return stepNames[s]
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Valid reports whether s is within 1..NumSteps.
func (s Step) Valid() bool { return s >= 1 && s <= NumSteps }

// Status is how a step is rendered in the progress indicator.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
)

// StepStatus is one cell of the progress indicator.
type StepStatus struct {
	Step   Step   `json:"step"`
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// Guard may veto a transition. It is evaluated before the step changes.
type Guard func(from, to Step) error

// Machine holds the active step. The zero value is not usable; call New.
type Machine struct {
	mu     sync.RWMutex
	active Step
}

// New returns a Machine at StepConfigure.
func New() *Machine { return &Machine{active: StepConfigure} }

// Active returns the current step.
func (m *Machine) Active() Step {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Advance sets the active step to target after every guard passes. Moving to
// the current step, or backwards, is allowed.
func (m *Machine) Advance(target Step, guards ...Guard) error {
	if !target.Valid() {
		return fmt.Errorf("pipeline: step %d out of range 1..%d", int(target), NumSteps)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, g := range guards {
		if err := g(m.active, target); err != nil {
			return err
		}
	}
	m.active = target
	return nil
}

// Reset returns to StepConfigure.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.active = StepConfigure
	m.mu.Unlock()
}

// Indicator marks steps before the active one completed, the active one
// active and the rest inactive.
func (m *Machine) Indicator() []StepStatus {
	return Indicator(m.Active())
}

// Indicator computes the progress indicator for active.
func Indicator(active Step) []StepStatus {
	out := make([]StepStatus, 0, NumSteps)
	for s := Step(1); s <= NumSteps; s++ {
		st := StatusInactive
		switch {
		case s < active:
			st = StatusCompleted
		case s == active:
			st = StatusActive
		}
		out = append(out, StepStatus{Step: s, Name: s.String(), Status: st})
	}
	return out
}

// Connectors reports, for each link between consecutive steps, whether it is
// lit. Link i joins step i+1 and i+2.
func Connectors(active Step) []bool {
	out := make([]bool, NumSteps-1)
	for i := range out {
		out[i] = i < int(active)-1
	}
	return out
}
