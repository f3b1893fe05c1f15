package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/studiowebux/restflow/internal/flow"
	"github.com/studiowebux/restflow/internal/types"
)

// localEnvironment receives variables given on the command line when no
// environment is selected
const localEnvironment = "local"

// FlowOptions contains options for running a flow
type FlowOptions struct {
	FlowID       string
	Environment  string
	EnvFile      string
	ExtraVars    []string
	OutputFormat string // json, yaml, text
}

// RunFlow executes a flow. In text mode every step is printed as soon as it
// finishes. Failed and cancelled runs return ErrFlowFailed and
// ErrFlowCancelled after printing.
func (a *App) RunFlow(ctx context.Context, opts FlowOptions) (*types.FlowExecutionResult, error) {
	vars, err := collectVariables(opts.EnvFile, opts.ExtraVars)
	if err != nil {
		return nil, err
	}

	environmentID := opts.Environment
	if len(vars) > 0 {
		environmentID, err = a.overlayFlowEnvironment(opts.FlowID, environmentID, vars)
		if err != nil {
			return nil, err
		}
	}

	format := opts.OutputFormat
	if format == "" || format == "body" {
		format = "text"
	}
	color := isTerminal(a.out)

	var orchestratorOpts []flow.Option
	orchestratorOpts = append(orchestratorOpts, flow.WithLogger(a.log))
	if format == "text" {
		orchestratorOpts = append(orchestratorOpts, flow.WithObserver(func(step types.FlowStepResult) {
			fmt.Fprint(a.out, formatStep(step, color))
		}))
	}

	orchestrator := flow.New(a.store, a.store, a.runner, orchestratorOpts...)
	result, err := orchestrator.Run(ctx, opts.FlowID, environmentID)
	if err != nil {
		return nil, err
	}

	if out, ok, err := marshal(result, format); ok {
		if err != nil {
			return result, fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Fprint(a.out, out)
	} else if format == "text" {
		fmt.Fprint(a.out, formatFlowSummary(result, color))
	} else {
		return result, fmt.Errorf("unknown output format %q (json, yaml, text)", format)
	}

	switch result.Status {
	case types.FlowFailed:
		return result, fmt.Errorf("%w: %s", ErrFlowFailed, result.Error)
	case types.FlowCancelled:
		return result, ErrFlowCancelled
	}
	return result, nil
}

// overlayFlowEnvironment adds vars to the environment the flow will use and
// returns its id. Selection order: explicit id, the flow's environment, the
// session's current environment, then an in-memory "local" environment.
func (a *App) overlayFlowEnvironment(flowID, environmentID string, vars map[string]string) (string, error) {
	if environmentID == "" {
		f, err := a.store.GetFlow(flowID)
		if err != nil {
			return "", err
		}
		environmentID = f.EnvironmentID
	}
	if environmentID == "" {
		environmentID = a.session.CurrentEnvironment()
	}
	if environmentID == "" {
		environmentID = localEnvironment
		if _, err := a.store.GetEnvironment(environmentID); errors.Is(err, types.ErrNotFound) {
			if err := a.store.AddEnvironment(types.Environment{ID: environmentID}); err != nil {
				return "", err
			}
		}
	}

	if err := a.store.OverlayVariables(environmentID, vars); err != nil {
		return "", err
	}
	return environmentID, nil
}
