// Package cli implements the restflow commands on top of the runner and the
// flow orchestrator: loading the workspace, wiring history and session state
// and rendering results.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/studiowebux/restflow/internal/config"
	"github.com/studiowebux/restflow/internal/executor"
	"github.com/studiowebux/restflow/internal/generator"
	"github.com/studiowebux/restflow/internal/history"
	"github.com/studiowebux/restflow/internal/logger"
	"github.com/studiowebux/restflow/internal/parser"
	"github.com/studiowebux/restflow/internal/runner"
	"github.com/studiowebux/restflow/internal/session"
	"github.com/studiowebux/restflow/internal/workspace"
)

var (
	// ErrRequestFailed is returned when a request ran but its status is
	// outside the success range
	ErrRequestFailed = errors.New("request failed")
	// ErrFlowFailed is returned when a flow run ends Failed
	ErrFlowFailed = errors.New("flow failed")
	// ErrFlowCancelled is returned when a flow run ends Cancelled
	ErrFlowCancelled = errors.New("flow cancelled")
)

// Config locates everything an App needs
type Config struct {
	Workspace    string
	Settings     *config.Settings
	SessionFile  string
	DatabasePath string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// App holds the wired components for one CLI invocation
type App struct {
	store    *workspace.Store
	session  *session.Manager
	history  *history.Manager
	resolver *parser.VariableResolver
	runner   *runner.Runner

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	log    *slog.Logger
}

// Open loads the workspace and session and wires the execution stack
func Open(cfg Config) (*App, error) {
	settings := cfg.Settings
	if settings == nil {
		defaults := executor.DefaultOptions()
		settings = &config.Settings{
			RequestTimeout:   defaults.RequestTimeout,
			HandshakeTimeout: defaults.HandshakeTimeout,
			ReceiveTimeout:   defaults.ReceiveTimeout,
			MaxMessages:      defaults.MaxMessages,
			HistoryEnabled:   true,
		}
	}

	workspaceDir := cfg.Workspace
	if workspaceDir == "" {
		workspaceDir = settings.Workspace
	}
	store, err := workspace.Load(workspaceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace: %w", err)
	}

	sess := session.NewManager(cfg.SessionFile)
	if err := sess.Load(); err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	transport, err := executor.NewTransport(settings.ExecutorOptions())
	if err != nil {
		return nil, err
	}

	app := &App{
		store:    store,
		session:  sess,
		resolver: parser.NewVariableResolver(generator.New()),
		in:       cfg.Stdin,
		out:      cfg.Stdout,
		errOut:   cfg.Stderr,
		log:      logger.L(),
	}
	if app.in == nil {
		app.in = os.Stdin
	}
	if app.out == nil {
		app.out = os.Stdout
	}
	if app.errOut == nil {
		app.errOut = os.Stderr
	}

	opts := []runner.Option{
		runner.WithEnvironmentTracker(sess),
		runner.WithLogger(app.log),
	}
	if cfg.DatabasePath != "" {
		app.history, err = history.NewManager(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		if settings.HistoryEnabled && sess.IsHistoryEnabled() {
			opts = append(opts, runner.WithHistory(app.history))
		}
	}

	app.runner = runner.New(app.resolver, executor.NewDefaultDispatcher(transport), store, store, opts...)
	return app, nil
}

// Close releases the history database
func (a *App) Close() error {
	if a.history != nil {
		return a.history.Close()
	}
	return nil
}
