package executor

import (
	"context"
	"fmt"

	"github.com/studiowebux/restflow/internal/types"
)

// UnsupportedProtocolError is returned when no executor accepts a request
type UnsupportedProtocolError struct {
	Kind types.RequestKind
}

func (e *UnsupportedProtocolError) Error() string {
	kind := string(e.Kind)
	if kind == "" {
		kind = "unknown"
	}
	return fmt.Sprintf("no executor supports request type %q", kind)
}

func (e *UnsupportedProtocolError) Unwrap() error {
	return types.ErrUnsupportedProtocol
}

// Dispatcher holds an ordered executor list. The first executor whose
// CanExecute accepts a request runs it.
type Dispatcher struct {
	executors []Executor
}

// NewDispatcher creates a dispatcher over executors, in order
func NewDispatcher(executors ...Executor) *Dispatcher {
	return &Dispatcher{executors: append([]Executor(nil), executors...)}
}

// NewDefaultDispatcher wires every built-in executor around t.
// Subscription executors come before the query executor.
func NewDefaultDispatcher(t *Transport) *Dispatcher {
	return NewDispatcher(
		NewWebSocketExecutor(t),
		NewGraphQLWebSocketExecutor(t),
		NewGraphQLSSEExecutor(t),
		NewGraphQLExecutor(t),
		NewRestExecutor(t),
	)
}

// Executors returns the registered executors in dispatch order
func (d *Dispatcher) Executors() []Executor {
	return append([]Executor(nil), d.executors...)
}

// Select returns the first executor accepting req
func (d *Dispatcher) Select(req *types.Request) (Executor, error) {
	if req == nil {
		return nil, &UnsupportedProtocolError{}
	}
	for _, ex := range d.executors {
		if ex.CanExecute(req) {
			return ex, nil
		}
	}
	return nil, &UnsupportedProtocolError{Kind: req.Kind}
}

// Execute dispatches req. The only error is *UnsupportedProtocolError.
func (d *Dispatcher) Execute(ctx context.Context, req *types.Request) (*types.RequestResponse, error) {
	ex, err := d.Select(req)
	if err != nil {
		return nil, err
	}
	return ex.Execute(ctx, req), nil
}
