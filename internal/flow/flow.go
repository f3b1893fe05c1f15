// Package flow runs flows: ordered sequences of stored requests executed one
// after another against a shared environment.
//
// A run moves Pending -> Running -> Completed, Failed or Cancelled. Steps run
// in ascending Order. Disabled steps are recorded as Skipped. A failing step
// either stops the run (Failed) or is recorded as FailedContinued when the
// step allows it. Cancellation is checked before each step; steps that were
// not reached produce no result.
//
// Generated dynamic values are cached per run, so every step of one run sees
// the same value for a given variable. Extracted values are written to a copy
// of the environment (or collection) owned by the run; the stored definitions
// are never modified.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/studiowebux/restflow/internal/logger"
	"github.com/studiowebux/restflow/internal/parser"
	"github.com/studiowebux/restflow/internal/runner"
	"github.com/studiowebux/restflow/internal/types"
)

// FlowStore looks flows up by id
type FlowStore interface {
	GetFlow(id string) (*types.Flow, error)
}

// RequestStore looks requests up by id
type RequestStore interface {
	GetRequest(id string) (*types.Request, error)
}

// RequestRunner executes single requests. *runner.Runner implements it.
type RequestRunner interface {
	Environment(id string) (*types.Environment, error)
	Collection(id string) (*types.Collection, error)
	Execute(ctx context.Context, req *types.Request, opts runner.Options) (*types.RequestResponse, error)
}

// Observer is told about every step result as soon as it is recorded
type Observer func(types.FlowStepResult)

// Orchestrator runs flows
type Orchestrator struct {
	flows    FlowStore
	requests RequestStore
	runner   RequestRunner
	vars     *parser.VariableResolver

	observer Observer
	newID    func() string
	now      func() time.Time
	log      *slog.Logger
}

type Option func(*Orchestrator)

func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

func WithIDFunc(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func New(flows FlowStore, requests RequestStore, r RequestRunner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		flows:    flows,
		requests: requests,
		runner:   r,
		vars:     parser.NewVariableResolver(nil),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.L()
	}
	return o
}

// run is the state owned by one execution
type run struct {
	flow        *types.Flow
	result      *types.FlowExecutionResult
	env         *types.Environment
	collections map[string]*types.Collection
	cache       *parser.ValueCache
}

// Run executes flowID. environmentID overrides the flow's own environment;
// when both are empty the runner's current environment is used.
//
// Lookup and validation problems are returned as errors before any step
// runs. Once running, failures are reported through the result: step
// failures make it Failed and cancellation makes it Cancelled, with a nil error.
func (o *Orchestrator) Run(ctx context.Context, flowID, environmentID string) (*types.FlowExecutionResult, error) {
	f, err := o.flows.GetFlow(flowID)
	if err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	if environmentID == "" {
		environmentID = f.EnvironmentID
	}
	env, err := o.runner.Environment(environmentID)
	if err != nil {
		return nil, fmt.Errorf("flow '%s': %w", f.ID, err)
	}
	if env != nil {
		env = env.Clone()
	} else {
		// Extracted values need somewhere to live for the rest of the run
		env = &types.Environment{Variables: map[string]string{}}
	}

	r := &run{
		flow: f,
		result: &types.FlowExecutionResult{
			RunID:       o.newID(),
			FlowID:      f.ID,
			Status:      types.FlowPending,
			StepResults: []types.FlowStepResult{},
			StartedAt:   o.now(),
		},
		env:         env,
		collections: make(map[string]*types.Collection),
		cache:       parser.NewValueCache(),
	}

	r.result.Status = types.FlowRunning
	o.log.Info("flow.started", "flow", f.ID, "run", r.result.RunID, "steps", len(f.Steps))

	for _, step := range f.OrderedSteps() {
		if ctx.Err() != nil {
			return o.finish(r, types.FlowCancelled, ""), nil
		}

		if !step.Enabled {
			o.record(r, types.FlowStepResult{
				Order:       step.Order,
				RequestName: o.requestName(step.RequestID),
				Status:      types.StepSkipped,
			})
			continue
		}

		res, stepErr := o.runStep(ctx, r, step)
		if stepErr == nil {
			res.Status = types.StepSuccess
			o.record(r, res)
			continue
		}

		res.Error = stepErr.Error()
		o.log.Warn("flow.step.failed",
			"flow", f.ID,
			"run", r.result.RunID,
			"order", step.Order,
			"continue", step.ContinueOnError,
			"err", stepErr,
		)

		if step.ContinueOnError {
			res.Status = types.StepFailedContinued
			o.record(r, res)
			continue
		}

		res.Status = types.StepFailed
		o.record(r, res)

		if ctx.Err() != nil {
			return o.finish(r, types.FlowCancelled, ""), nil
		}
		msg := fmt.Sprintf("step %d (%s) failed: %s", step.Order, res.RequestName, stepErr)
		return o.finish(r, types.FlowFailed, msg), nil
	}

	return o.finish(r, types.FlowCompleted, ""), nil
}

// runStep executes one enabled step. The returned result has everything but
// Status and Error filled in.
func (o *Orchestrator) runStep(ctx context.Context, r *run, step types.FlowStep) (types.FlowStepResult, error) {
	res := types.FlowStepResult{Order: step.Order, RequestName: step.RequestID}

	req, err := o.requests.GetRequest(step.RequestID)
	if err != nil {
		return res, err
	}
	res.RequestName = req.DisplayName()

	col, err := o.collection(r, req.CollectionID)
	if err != nil {
		return res, err
	}

	resp, err := o.runner.Execute(ctx, req, runner.Options{
		Environment: r.env,
		Collection:  col,
		Cache:       r.cache,
	})
	if err != nil {
		return res, err
	}
	res.Response = resp

	if !resp.IsSuccess() {
		if resp.StatusCode == 0 {
			return res, fmt.Errorf("request failed: %s", resp.StatusMessage)
		}
		return res, fmt.Errorf("request returned HTTP %d %s", resp.StatusCode, resp.StatusMessage)
	}

	if len(step.Extract) > 0 {
		values, err := ExtractVariables(step.Extract, resp.Body)
		if err != nil {
			return res, err
		}
		for name, value := range values {
			o.vars.SetVariableValue(name, value, r.env, col, step.SaveToCollection)
		}
	}

	return res, nil
}

// collection returns the run's private copy of a collection
func (o *Orchestrator) collection(r *run, id string) (*types.Collection, error) {
	if id == "" {
		return nil, nil
	}
	if col, ok := r.collections[id]; ok {
		return col, nil
	}
	col, err := o.runner.Collection(id)
	if err != nil {
		return nil, err
	}
	if col != nil {
		col = col.Clone()
	}
	r.collections[id] = col
	return col, nil
}

func (o *Orchestrator) requestName(id string) string {
	req, err := o.requests.GetRequest(id)
	if err != nil {
		return id
	}
	return req.DisplayName()
}

func (o *Orchestrator) record(r *run, res types.FlowStepResult) {
	r.result.StepResults = append(r.result.StepResults, res)
	if o.observer != nil {
		o.observer(res)
	}
}

func (o *Orchestrator) finish(r *run, status types.FlowStatus, errMsg string) *types.FlowExecutionResult {
	completed := o.now()
	r.result.Status = status
	r.result.Error = errMsg
	r.result.CompletedAt = &completed

	o.log.Info("flow.finished",
		"flow", r.flow.ID,
		"run", r.result.RunID,
		"status", status,
		"steps", len(r.result.StepResults),
	)
	return r.result
}
