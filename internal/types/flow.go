package types

import (
	"fmt"
	"sort"
	"time"
)

// Flow is an ordered sequence of request executions
type Flow struct {
	ID            string     `json:"id" yaml:"id"`
	Name          string     `json:"name,omitempty" yaml:"name,omitempty"`
	EnvironmentID string     `json:"environmentId,omitempty" yaml:"environmentId,omitempty"`
	Steps         []FlowStep `json:"steps" yaml:"steps"`
}

// FlowStep references a request and carries the per-step error policy
type FlowStep struct {
	Order           int    `json:"order" yaml:"order"`
	RequestID       string `json:"requestId" yaml:"requestId"`
	Enabled         bool   `json:"enabled" yaml:"enabled"`
	ContinueOnError bool   `json:"continueOnError,omitempty" yaml:"continueOnError,omitempty"`

	// Extract maps a variable name to a JMESPath expression evaluated
	// against the JSON body of a successful response
	Extract          map[string]string `json:"extract,omitempty" yaml:"extract,omitempty"`
	SaveToCollection bool              `json:"saveToCollection,omitempty" yaml:"saveToCollection,omitempty"`
}

// Validate checks that step orders are unique and every step names a request
func (f *Flow) Validate() error {
	seen := make(map[int]bool, len(f.Steps))
	for _, step := range f.Steps {
		if seen[step.Order] {
			return fmt.Errorf("%w: flow '%s': duplicate step order %d", ErrInvalidFlow, f.ID, step.Order)
		}
		seen[step.Order] = true
		if step.RequestID == "" {
			return fmt.Errorf("%w: flow '%s': step %d has no request", ErrInvalidFlow, f.ID, step.Order)
		}
	}
	return nil
}

// OrderedSteps returns a copy of the steps sorted by ascending Order
func (f *Flow) OrderedSteps() []FlowStep {
	steps := append([]FlowStep(nil), f.Steps...)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Order < steps[j].Order
	})
	return steps
}

// FlowStatus is the state of a flow run
type FlowStatus string

const (
	FlowPending   FlowStatus = "pending"
	FlowRunning   FlowStatus = "running"
	FlowCompleted FlowStatus = "completed"
	FlowFailed    FlowStatus = "failed"
	FlowCancelled FlowStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible
func (s FlowStatus) IsTerminal() bool {
	return s == FlowCompleted || s == FlowFailed || s == FlowCancelled
}

// StepStatus is the outcome of one flow step
type StepStatus string

const (
	StepSuccess         StepStatus = "success"
	StepSkipped         StepStatus = "skipped"
	StepFailed          StepStatus = "failed"
	StepFailedContinued StepStatus = "failed_continued"
)

// FlowStepResult records the outcome of one visited step
type FlowStepResult struct {
	Order       int              `json:"order" yaml:"order"`
	RequestName string           `json:"requestName" yaml:"requestName"`
	Status      StepStatus       `json:"status" yaml:"status"`
	Response    *RequestResponse `json:"response,omitempty" yaml:"response,omitempty"`
	Error       string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// FlowExecutionResult is created per run and not modified once returned
type FlowExecutionResult struct {
	RunID       string           `json:"runId" yaml:"runId"`
	FlowID      string           `json:"flowId" yaml:"flowId"`
	Status      FlowStatus       `json:"status" yaml:"status"`
	StepResults []FlowStepResult `json:"steps" yaml:"steps"`
	StartedAt   time.Time        `json:"startedAt" yaml:"startedAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
	Error       string           `json:"error,omitempty" yaml:"error,omitempty"`
}
