package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/studiowebux/restflow/internal/config"
	"github.com/studiowebux/restflow/internal/filter"
	"github.com/studiowebux/restflow/internal/parser"
	"github.com/studiowebux/restflow/internal/runner"
	"github.com/studiowebux/restflow/internal/types"
)

// RunOptions contains options for running a request in CLI mode
type RunOptions struct {
	RequestID    string
	Environment  string
	EnvFile      string
	ExtraVars    []string // key=value pairs
	OutputFormat string   // json, yaml, text, body
	Filter       string   // JMESPath filter expression
	Query        string   // JMESPath query expression
	EventTypes   []string // keep only these stream event types
	ShowFull     bool
	SavePath     string
	Copy         bool
	NoPrompt     bool
}

// RunRequest executes one stored request and prints the response.
// A response outside the success range returns ErrRequestFailed after printing.
func (a *App) RunRequest(ctx context.Context, opts RunOptions) (*types.RequestResponse, error) {
	req, err := a.store.GetRequest(opts.RequestID)
	if err != nil {
		return nil, err
	}

	env, err := a.runner.Environment(opts.Environment)
	if err != nil {
		return nil, err
	}
	col, err := a.runner.Collection(req.CollectionID)
	if err != nil {
		return nil, err
	}

	vars, err := collectVariables(opts.EnvFile, opts.ExtraVars)
	if err != nil {
		return nil, err
	}

	if !opts.NoPrompt {
		if err := a.promptMissing(req, env, col, vars); err != nil {
			return nil, err
		}
	}

	if len(vars) > 0 {
		env = overlay(env, vars)
	}

	resp, err := a.runner.Execute(ctx, req, runner.Options{Environment: env, Collection: col})
	if err != nil {
		return nil, err
	}

	if err := a.printResponse(resp, opts); err != nil {
		return resp, err
	}

	if !resp.IsSuccess() {
		return resp, fmt.Errorf("%w: %s", ErrRequestFailed, statusLine(resp))
	}
	return resp, nil
}

// promptMissing asks for every variable the request references but nothing
// defines, adding the answers to vars
func (a *App) promptMissing(req *types.Request, env *types.Environment, col *types.Collection, vars map[string]string) error {
	var missing []string
	for _, name := range a.resolver.MissingRequestVariables(req, parser.Scope{Environment: env, Collection: col}) {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if a.in == os.Stdin && !isInteractive() {
		return fmt.Errorf("missing variables (non-interactive mode): %s", strings.Join(missing, ", "))
	}

	reader := bufio.NewReader(a.in)
	for _, name := range missing {
		value, err := promptForVariable(reader, a.errOut, name)
		if err != nil {
			return fmt.Errorf("failed to read input for '%s': %w", name, err)
		}
		vars[name] = value
	}
	return nil
}

// overlay returns a copy of env with vars added. A nil env becomes an
// unnamed environment holding only vars.
func overlay(env *types.Environment, vars map[string]string) *types.Environment {
	if env == nil {
		env = &types.Environment{}
	} else {
		env = env.Clone()
	}
	if env.Variables == nil {
		env.Variables = make(map[string]string, len(vars))
	}
	for k, v := range vars {
		env.Variables[k] = v
	}
	return env
}

func (a *App) printResponse(resp *types.RequestResponse, opts RunOptions) error {
	view := *resp

	if view.IsStreaming && len(opts.EventTypes) > 0 {
		view.Events = filter.EventsByType(view.Events, opts.EventTypes)
	}

	if opts.Filter != "" || opts.Query != "" {
		filtered, err := filter.Apply(view.Body, opts.Filter, opts.Query)
		if err != nil {
			fmt.Fprintf(a.errOut, "Warning: filter/query error: %v\n", err)
		} else {
			view.Body = filtered
		}
	}

	format := opts.OutputFormat
	if format == "" {
		if isTerminal(a.out) {
			format = "text"
		} else {
			// Output is being piped, just show body
			format = "body"
		}
	}

	output, err := formatOutput(&view, format, opts.ShowFull, isTerminal(a.out))
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	if opts.Copy {
		if err := clipboard.WriteAll(view.Body); err != nil {
			fmt.Fprintf(a.errOut, "Warning: failed to copy to clipboard: %v\n", err)
		} else {
			fmt.Fprintln(a.errOut, "Body copied to clipboard")
		}
	}

	if opts.SavePath != "" {
		if err := os.WriteFile(opts.SavePath, []byte(output), config.FilePermissions); err != nil {
			return fmt.Errorf("failed to save response: %w", err)
		}
		fmt.Fprintf(a.errOut, "Response saved to %s\n", opts.SavePath)
		return nil
	}

	fmt.Fprint(a.out, output)
	if !strings.HasSuffix(output, "\n") {
		fmt.Fprintln(a.out)
	}
	return nil
}

// ListRequests prints the requests of the workspace grouped by collection
func (a *App) ListRequests() {
	byCollection := make(map[string][]*types.Request)
	for _, req := range a.store.Requests() {
		byCollection[req.CollectionID] = append(byCollection[req.CollectionID], req)
	}

	names := make([]string, 0, len(byCollection))
	for name := range byCollection {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name == "" {
			fmt.Fprintln(a.out, "(no collection)")
		} else {
			fmt.Fprintf(a.out, "%s\n", name)
		}
		for _, req := range byCollection[name] {
			fmt.Fprintf(a.out, "  %-24s %-10s %s\n", req.ID, requestLabel(req), req.URL)
		}
	}
	for _, f := range a.store.Flows() {
		fmt.Fprintf(a.out, "flow %-19s %d steps\n", f.ID, len(f.Steps))
	}
}

func requestLabel(req *types.Request) string {
	switch req.Kind {
	case types.KindGraphQL:
		if req.GraphQL != nil && req.GraphQL.IsSubscription() {
			return "GQL-SUB"
		}
		return "GQL"
	case types.KindWebSocket:
		return "WS"
	default:
		if req.Method == "" {
			return "GET"
		}
		return strings.ToUpper(req.Method)
	}
}
