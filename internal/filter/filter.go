// Package filter narrows response bodies and stream events for display.
package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmespath/go-jmespath"

	"github.com/studiowebux/restflow/internal/types"
)

// Apply applies filter and query expressions to a response body.
// Filter narrows results (e.g., items[?status==`active`]);
// query then transforms or selects fields (e.g., [].name).
func Apply(body string, filter string, query string) (string, error) {
	result := body

	if filter != "" {
		filtered, err := applyJMESPath(result, filter)
		if err != nil {
			return "", fmt.Errorf("failed to apply filter: %w", err)
		}
		result = filtered
	}

	if query != "" {
		queried, err := applyJMESPath(result, query)
		if err != nil {
			return "", fmt.Errorf("failed to apply query: %w", err)
		}
		result = queried
	}

	return result, nil
}

// applyJMESPath applies a JMESPath expression to a JSON string
func applyJMESPath(jsonStr string, expression string) (string, error) {
	var data interface{}
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}

	jp, err := jmespath.Compile(expression)
	if err != nil {
		return "", fmt.Errorf("invalid JMESPath expression '%s': %w", expression, err)
	}

	result, err := jp.Search(data)
	if err != nil {
		return "", fmt.Errorf("JMESPath search failed: %w", err)
	}

	if result == nil {
		return "null", nil
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	return string(output), nil
}

// IsValidJMESPath checks if an expression is valid JMESPath syntax
func IsValidJMESPath(expression string) bool {
	_, err := jmespath.Compile(expression)
	return err == nil
}

// EventsByType keeps the stream events whose type matches one of
// eventTypes, case-insensitively. No types keeps every event.
func EventsByType(events []types.StreamEvent, eventTypes []string) []types.StreamEvent {
	if len(eventTypes) == 0 {
		return events
	}

	var filtered []types.StreamEvent
	for _, ev := range events {
		for _, want := range eventTypes {
			if strings.EqualFold(ev.EventType, want) {
				filtered = append(filtered, ev)
				break
			}
		}
	}
	return filtered
}
