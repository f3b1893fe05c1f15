package flow

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/jmespath/go-jmespath"
)

// ExtractVariables evaluates each JMESPath expression in extract against the
// JSON body and returns the values as strings. Scalars are formatted plainly;
// objects and arrays are returned as JSON.
func ExtractVariables(extract map[string]string, body string) (map[string]string, error) {
	if len(extract) == 0 {
		return nil, nil
	}

	var data any
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return nil, fmt.Errorf("cannot extract variables: response is not valid JSON")
	}

	names := make([]string, 0, len(extract))
	for name := range extract {
		names = append(names, name)
	}
	sort.Strings(names)

	extracted := make(map[string]string, len(extract))
	for _, name := range names {
		expr := extract[name]
		result, err := jmespath.Search(expr, data)
		if err != nil {
			return nil, fmt.Errorf("failed to extract variable %s using path %s: %w", name, expr, err)
		}

		if result == nil {
			return nil, fmt.Errorf("variable %s: JMESPath %s returned null", name, expr)
		}
		value, err := stringify(result)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		extracted[name] = value
	}

	return extracted, nil
}

func stringify(v any) (string, error) {
	switch value := v.(type) {
	case string:
		return value, nil
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(value), nil
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("failed to convert extracted value to string: %w", err)
		}
		return string(data), nil
	}
}
