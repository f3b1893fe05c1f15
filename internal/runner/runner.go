// Package runner executes one stored request end to end: it resolves the
// environment and collection, substitutes variables into a working copy,
// dispatches the copy and records what happened in history.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/studiowebux/restflow/internal/logger"
	"github.com/studiowebux/restflow/internal/parser"
	"github.com/studiowebux/restflow/internal/types"
)

// EnvironmentStore looks environments up by id. Unknown ids return an error
// wrapping types.ErrNotFound.
type EnvironmentStore interface {
	GetEnvironment(id string) (*types.Environment, error)
}

// CollectionStore looks collections up by id. Unknown ids return an error
// wrapping types.ErrNotFound.
type CollectionStore interface {
	GetCollection(id string) (*types.Collection, error)
}

// EnvironmentTracker knows which environment is currently selected
type EnvironmentTracker interface {
	CurrentEnvironment() string
}

// HistoryRecorder persists executed requests
type HistoryRecorder interface {
	AddHistoryEntry(ctx context.Context, entry *types.HistoryEntry) error
}

// Dispatcher runs a resolved request
type Dispatcher interface {
	Execute(ctx context.Context, req *types.Request) (*types.RequestResponse, error)
}

// Runner is the request execution facade
type Runner struct {
	resolver     *parser.VariableResolver
	dispatcher   Dispatcher
	environments EnvironmentStore
	collections  CollectionStore
	tracker      EnvironmentTracker
	history      HistoryRecorder
	log          *slog.Logger
	now          func() time.Time
}

type Option func(*Runner)

// WithHistory records every dispatched request through h
func WithHistory(h HistoryRecorder) Option {
	return func(r *Runner) { r.history = h }
}

// WithEnvironmentTracker supplies the current environment when none is given
func WithEnvironmentTracker(t EnvironmentTracker) Option {
	return func(r *Runner) { r.tracker = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func New(resolver *parser.VariableResolver, dispatcher Dispatcher, environments EnvironmentStore, collections CollectionStore, opts ...Option) *Runner {
	r := &Runner{
		resolver:     resolver,
		dispatcher:   dispatcher,
		environments: environments,
		collections:  collections,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.L()
	}
	return r
}

// Options carries the variable sources for one execution
type Options struct {
	Environment *types.Environment
	Collection  *types.Collection
	// Cache shares generated dynamic values across executions; nil means
	// values are generated fresh for this request
	Cache *parser.ValueCache
}

// ExecuteRequest runs req against environmentID, or the tracked current
// environment when environmentID is empty
func (r *Runner) ExecuteRequest(ctx context.Context, req *types.Request, environmentID string) (*types.RequestResponse, error) {
	env, err := r.Environment(environmentID)
	if err != nil {
		return nil, err
	}
	col, err := r.Collection(req.CollectionID)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, req, Options{Environment: env, Collection: col})
}

// Execute resolves req against opts, dispatches the working copy and records
// history. The stored req is not modified. The only errors come from
// dispatch; history failures are logged.
func (r *Runner) Execute(ctx context.Context, req *types.Request, opts Options) (*types.RequestResponse, error) {
	scope := parser.Scope{
		Environment: opts.Environment,
		Collection:  opts.Collection,
		Request:     req,
		Cache:       opts.Cache,
	}
	resolved := r.resolver.ResolveRequest(req, scope)

	if unresolved := parser.ExtractRequestVariables(resolved); len(unresolved) > 0 {
		r.log.Debug("request.variables.unresolved", "request", req.ID, "names", unresolved)
	}

	resp, err := r.dispatcher.Execute(ctx, resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %q: %w", req.DisplayName(), err)
	}

	r.log.Info("request.executed",
		"request", req.ID,
		"kind", req.Kind,
		"status", resp.StatusCode,
		"elapsed_ms", resp.Elapsed.Milliseconds(),
	)

	r.record(ctx, req, opts, resp)
	return resp, nil
}

// Environment returns the environment for id. An empty id selects the
// tracked current environment; nil is returned when nothing is selected.
func (r *Runner) Environment(id string) (*types.Environment, error) {
	explicit := id != ""
	if !explicit && r.tracker != nil {
		id = r.tracker.CurrentEnvironment()
	}
	if id == "" || r.environments == nil {
		if explicit {
			return nil, fmt.Errorf("environment %q: %w", id, types.ErrNotFound)
		}
		return nil, nil
	}

	env, err := r.environments.GetEnvironment(id)
	if err != nil {
		if explicit {
			return nil, err
		}
		r.log.Warn("environment.current.missing", "environment", id, "err", err)
		return nil, nil
	}
	return env, nil
}

// Collection returns the collection for id, or nil for an empty id
func (r *Runner) Collection(id string) (*types.Collection, error) {
	if id == "" {
		return nil, nil
	}
	if r.collections == nil {
		return nil, fmt.Errorf("collection %q: %w", id, types.ErrNotFound)
	}
	return r.collections.GetCollection(id)
}

func (r *Runner) record(ctx context.Context, req *types.Request, opts Options, resp *types.RequestResponse) {
	if r.history == nil {
		return
	}

	entry := &types.HistoryEntry{
		Timestamp:    r.now(),
		Name:         req.DisplayName(),
		Kind:         req.Kind,
		RequestID:    req.ID,
		CollectionID: req.CollectionID,
		SentRequest:  resp.SentRequest,
		Response:     resp,
	}
	if opts.Environment != nil {
		entry.EnvironmentID = opts.Environment.ID
	}

	if err := r.history.AddHistoryEntry(ctx, entry); err != nil {
		r.log.Warn("history.write.failed", "request", req.ID, "err", err)
	}
}
