package history

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Stats aggregates the recorded executions of one request
type Stats struct {
	RequestID     string      `json:"requestId"`
	Name          string      `json:"name"`
	Kind          string      `json:"kind"`
	TotalCalls    int         `json:"totalCalls"`
	SuccessCount  int         `json:"successCount"`
	ErrorCount    int         `json:"errorCount"`
	NetworkErrors int         `json:"networkErrors"` // status 0: DNS, refused connection, timeout
	AvgDurationMs float64     `json:"avgDurationMs"`
	MinDurationMs int64       `json:"minDurationMs"`
	MaxDurationMs int64       `json:"maxDurationMs"`
	TotalRespSize int64       `json:"totalResponseSize"`
	StatusCodes   map[int]int `json:"statusCodes"`
	LastCalled    time.Time   `json:"lastCalled"`
}

// StatsPerRequest aggregates history per request, most recently called
// first. A non-empty environmentID restricts the entries considered.
func (m *Manager) StatsPerRequest(environmentID string) ([]Stats, error) {
	query := `
		WITH filtered AS (
			SELECT * FROM history
			WHERE ? = '' OR environment_id = ?
		),
		status_codes_agg AS (
			SELECT
				request_id,
				json_group_object(CAST(response_status AS TEXT), count) AS status_codes_json
			FROM (
				SELECT request_id, response_status, COUNT(*) AS count
				FROM filtered
				GROUP BY request_id, response_status
			)
			GROUP BY request_id
		)
		SELECT
			f.request_id,
			MAX(f.name),
			MAX(f.kind),
			COUNT(*) AS total_calls,
			SUM(CASE WHEN f.response_status >= 200 AND f.response_status < 300 THEN 1 ELSE 0 END) AS success_count,
			SUM(CASE WHEN f.response_status >= 400 THEN 1 ELSE 0 END) AS error_count,
			SUM(CASE WHEN f.response_status = 0 THEN 1 ELSE 0 END) AS network_errors,
			AVG(f.duration_ms) AS avg_duration,
			MIN(f.duration_ms) AS min_duration,
			MAX(f.duration_ms) AS max_duration,
			SUM(f.response_size) AS total_resp_size,
			MAX(f.timestamp) AS last_called,
			COALESCE(s.status_codes_json, '{}') AS status_codes_json
		FROM filtered f
		LEFT JOIN status_codes_agg s ON f.request_id = s.request_id
		GROUP BY f.request_id
		ORDER BY last_called DESC
	`

	rows, err := m.db.Query(query, environmentID, environmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats per request: %w", err)
	}
	defer rows.Close()

	statsList := []Stats{}
	for rows.Next() {
		var (
			s               Stats
			lastCalled      string
			statusCodesJSON string
		)

		err := rows.Scan(
			&s.RequestID,
			&s.Name,
			&s.Kind,
			&s.TotalCalls,
			&s.SuccessCount,
			&s.ErrorCount,
			&s.NetworkErrors,
			&s.AvgDurationMs,
			&s.MinDurationMs,
			&s.MaxDurationMs,
			&s.TotalRespSize,
			&lastCalled,
			&statusCodesJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}

		s.LastCalled, err = time.Parse(timestampLayout, lastCalled)
		if err != nil {
			return nil, fmt.Errorf("request %s has an invalid timestamp %q: %w", s.RequestID, lastCalled, err)
		}

		s.StatusCodes = make(map[int]int)
		var byCode map[string]int
		if err := json.Unmarshal([]byte(statusCodesJSON), &byCode); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status codes: %w", err)
		}
		for codeStr, count := range byCode {
			if code, err := strconv.Atoi(codeStr); err == nil {
				s.StatusCodes[code] = count
			}
		}

		statsList = append(statsList, s)
	}

	return statsList, rows.Err()
}
