package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/studiowebux/restflow/internal/executor"
	"github.com/studiowebux/restflow/internal/history"
	"github.com/studiowebux/restflow/internal/types"
)

// HistoryOptions selects which history entries to print
type HistoryOptions struct {
	RequestID    string
	Limit        int
	OutputFormat string // json, yaml, text
}

// ListHistory prints recorded executions, newest first
func (a *App) ListHistory(opts HistoryOptions) ([]types.HistoryEntry, error) {
	if a.history == nil {
		return nil, fmt.Errorf("history database is not configured")
	}

	var (
		entries []types.HistoryEntry
		err     error
	)
	if opts.RequestID != "" {
		entries, err = a.history.LoadForRequest(opts.RequestID, opts.Limit)
	} else {
		entries, err = a.history.Load(opts.Limit)
	}
	if err != nil {
		return nil, err
	}

	if out, ok, err := marshal(entries, opts.OutputFormat); ok {
		if err != nil {
			return entries, fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Fprint(a.out, out)
		return entries, nil
	}

	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No history entries")
		return entries, nil
	}

	color := isTerminal(a.out)
	for _, e := range entries {
		method, url := "", ""
		if e.SentRequest != nil {
			method, url = e.SentRequest.Method, e.SentRequest.URL
		}
		status := statusLine(e.Response)
		fmt.Fprintf(a.out, "%5d  %s  %-24s %s %s  %s\n",
			e.ID,
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Name,
			strings.ToUpper(method),
			url,
			paint(getStatusColor(e.Response.StatusCode), status, color))
	}
	return entries, nil
}

// ClearHistory deletes every history entry
func (a *App) ClearHistory() error {
	if a.history == nil {
		return fmt.Errorf("history database is not configured")
	}
	count, err := a.history.Count()
	if err != nil {
		return err
	}
	if err := a.history.Clear(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %d history entries\n", count)
	return nil
}

// SetHistoryEnabled toggles history recording for later invocations
func (a *App) SetHistoryEnabled(enabled bool) error {
	if err := a.session.SetHistoryEnabled(enabled); err != nil {
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Fprintf(a.out, "History recording %s\n", state)
	return nil
}

// HistoryStats prints per-request aggregates of the recorded executions
func (a *App) HistoryStats(environmentID, format string) ([]history.Stats, error) {
	if a.history == nil {
		return nil, fmt.Errorf("history database is not configured")
	}

	stats, err := a.history.StatsPerRequest(environmentID)
	if err != nil {
		return nil, err
	}

	if out, ok, err := marshal(stats, format); ok {
		if err != nil {
			return stats, fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Fprint(a.out, out)
		return stats, nil
	}

	if len(stats) == 0 {
		fmt.Fprintln(a.out, "No history entries")
		return stats, nil
	}

	fmt.Fprintf(a.out, "%-24s %6s %6s %6s %6s %10s %10s %10s\n",
		"REQUEST", "CALLS", "OK", "ERR", "NET", "AVG", "MIN", "MAX")
	for _, s := range stats {
		fmt.Fprintf(a.out, "%-24s %6d %6d %6d %6d %10s %10s %10s\n",
			s.RequestID,
			s.TotalCalls,
			s.SuccessCount,
			s.ErrorCount,
			s.NetworkErrors,
			executor.FormatDuration(time.Duration(s.AvgDurationMs*float64(time.Millisecond))),
			executor.FormatDuration(time.Duration(s.MinDurationMs)*time.Millisecond),
			executor.FormatDuration(time.Duration(s.MaxDurationMs)*time.Millisecond))
	}
	return stats, nil
}
