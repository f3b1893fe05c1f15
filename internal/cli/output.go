package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/studiowebux/restflow/internal/executor"
	"github.com/studiowebux/restflow/internal/types"
)

// ANSI color codes
const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorDim    = "\x1b[2m"
)

func getStatusColor(status int) string {
	if types.IsSuccessStatus(status) {
		return colorGreen
	} else if status >= 400 || status == 0 {
		return colorRed
	}
	return colorYellow
}

func paint(color, text string, enabled bool) string {
	if !enabled {
		return text
	}
	return color + text + colorReset
}

// statusLine renders "200 OK", or the transport error for status 0
func statusLine(resp *types.RequestResponse) string {
	if resp.StatusCode == 0 {
		return "Error: " + resp.StatusMessage
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, resp.StatusMessage)
}

// marshal renders v as indented JSON or YAML
func marshal(v interface{}, format string) (string, bool, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", true, err
		}
		return string(data) + "\n", true, nil
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return "", true, err
		}
		return string(data), true, nil
	}
	return "", false, nil
}

// formatOutput formats the response based on the output format
func formatOutput(resp *types.RequestResponse, format string, showFull bool, color bool) (string, error) {
	if out, ok, err := marshal(resp, format); ok {
		return out, err
	}

	switch format {
	case "body":
		return resp.Body, nil

	case "text", "":
		var sb strings.Builder

		sb.WriteString(paint(getStatusColor(resp.StatusCode), statusLine(resp), color))
		sb.WriteString("\n")

		sb.WriteString(fmt.Sprintf("Duration: %s | Size: %s\n",
			executor.FormatDuration(resp.Elapsed),
			executor.FormatSize(resp.Size)))

		if showFull {
			if sent := resp.SentRequest; sent != nil {
				sb.WriteString(fmt.Sprintf("\nRequest: %s %s\n", sent.Method, sent.URL))
			}
			if len(resp.Headers) > 0 {
				sb.WriteString("\nHeaders:\n")
				keys := make([]string, 0, len(resp.Headers))
				for key := range resp.Headers {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				for _, key := range keys {
					sb.WriteString(fmt.Sprintf("  %s: %s\n", key, resp.Headers[key]))
				}
			}
		}

		if resp.IsStreaming {
			sb.WriteString(fmt.Sprintf("\nEvents (%d):\n", len(resp.Events)))
			for _, ev := range resp.Events {
				stamp := paint(colorDim, ev.Timestamp.Format("15:04:05.000"), color)
				sb.WriteString(fmt.Sprintf("  %s [%s] %s\n", stamp, ev.EventType, ev.Data))
			}
			return sb.String(), nil
		}

		if resp.Body != "" {
			if showFull {
				sb.WriteString("\nBody:\n")
			} else {
				sb.WriteString("\n")
			}
			sb.WriteString(resp.Body)
			sb.WriteString("\n")
		}

		return sb.String(), nil
	}

	return "", fmt.Errorf("unknown output format %q (json, yaml, text, body)", format)
}

// formatStep renders one flow step result as a single line
func formatStep(step types.FlowStepResult, color bool) string {
	var status string
	switch step.Status {
	case types.StepSuccess:
		status = paint(colorGreen, "ok", color)
	case types.StepSkipped:
		status = paint(colorDim, "skipped", color)
	case types.StepFailedContinued:
		status = paint(colorYellow, "failed (continued)", color)
	default:
		status = paint(colorRed, "failed", color)
	}

	line := fmt.Sprintf("%3d  %-28s %s", step.Order, step.RequestName, status)
	if step.Response != nil {
		line += fmt.Sprintf("  %s  %s", statusLine(step.Response), executor.FormatDuration(step.Response.Elapsed))
	}
	if step.Error != "" && step.Status != types.StepSuccess {
		line += "\n     " + step.Error
	}
	return line + "\n"
}

// formatFlowSummary renders the final line of a flow run
func formatFlowSummary(result *types.FlowExecutionResult, color bool) string {
	counts := make(map[types.StepStatus]int)
	for _, step := range result.StepResults {
		counts[step.Status]++
	}

	var statusColor string
	switch result.Status {
	case types.FlowCompleted:
		statusColor = colorGreen
	case types.FlowCancelled:
		statusColor = colorYellow
	default:
		statusColor = colorRed
	}

	summary := fmt.Sprintf("\nFlow %s %s: %d ok, %d failed, %d skipped",
		result.FlowID,
		paint(statusColor, string(result.Status), color),
		counts[types.StepSuccess],
		counts[types.StepFailed]+counts[types.StepFailedContinued],
		counts[types.StepSkipped])
	if result.CompletedAt != nil {
		summary += fmt.Sprintf(" in %s", executor.FormatDuration(result.CompletedAt.Sub(result.StartedAt)))
	}
	summary += "\n"
	if result.Error != "" {
		summary += paint(colorRed, "Error: "+result.Error, color) + "\n"
	}
	return summary
}
