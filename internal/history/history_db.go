// Package history stores executed requests in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/studiowebux/restflow/internal/migrations"
	"github.com/studiowebux/restflow/internal/types"
)

// timestampLayout is fixed width so stored UTC timestamps sort lexically
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Manager struct {
	db *sql.DB
}

func NewManager(dbPath string) (*Manager, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Manager{db: db}, nil
}

// AddHistoryEntry stores entry and sets its ID
func (m *Manager) AddHistoryEntry(ctx context.Context, entry *types.HistoryEntry) error {
	if entry == nil || entry.Response == nil {
		return fmt.Errorf("history entry has no response")
	}

	sent := entry.SentRequest
	if sent == nil {
		sent = &types.SentRequest{}
	}
	resp := entry.Response

	sentHeaders, err := marshalMap(sent.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal headers: %w", err)
	}
	sentQuery, err := marshalMap(sent.QueryParams)
	if err != nil {
		return fmt.Errorf("failed to marshal query parameters: %w", err)
	}
	responseHeaders, err := marshalMap(resp.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal response headers: %w", err)
	}

	var events sql.NullString
	if resp.IsStreaming {
		data, err := json.Marshal(resp.Events)
		if err != nil {
			return fmt.Errorf("failed to marshal stream events: %w", err)
		}
		events = sql.NullString{String: string(data), Valid: true}
	}

	timestamp := entry.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	query := `
		INSERT INTO history (
			timestamp, name, kind, request_id, collection_id, environment_id,
			method, url, sent_headers, sent_query, sent_body,
			response_status, response_status_text, response_headers, response_body,
			response_size, duration_ms, is_streaming, events
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := m.db.ExecContext(ctx, query,
		timestamp.UTC().Format(timestampLayout),
		entry.Name,
		string(entry.Kind),
		entry.RequestID,
		nullString(entry.CollectionID),
		nullString(entry.EnvironmentID),
		sent.Method,
		sent.URL,
		sentHeaders,
		sentQuery,
		sent.Body,
		resp.StatusCode,
		resp.StatusMessage,
		responseHeaders,
		resp.Body,
		resp.Size,
		resp.Elapsed.Milliseconds(),
		resp.IsStreaming,
		events,
	)
	if err != nil {
		return fmt.Errorf("failed to save history entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read history entry id: %w", err)
	}
	entry.ID = id
	return nil
}

const selectColumns = `
	SELECT id, timestamp, name, kind, request_id, collection_id, environment_id,
	       method, url, sent_headers, sent_query, sent_body,
	       response_status, response_status_text, response_headers, response_body,
	       response_size, duration_ms, is_streaming, events
	FROM history
`

// Load returns the newest entries first. A limit of zero or less means all.
func (m *Manager) Load(limit int) ([]types.HistoryEntry, error) {
	rows, err := m.db.Query(selectColumns+` ORDER BY timestamp DESC, id DESC LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	return m.scanEntries(rows)
}

// LoadForRequest returns the entries of one request, newest first
func (m *Manager) LoadForRequest(requestID string, limit int) ([]types.HistoryEntry, error) {
	rows, err := m.db.Query(selectColumns+` WHERE request_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, requestID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to load history for request: %w", err)
	}
	defer rows.Close()

	return m.scanEntries(rows)
}

func (m *Manager) scanEntries(rows *sql.Rows) ([]types.HistoryEntry, error) {
	entries := []types.HistoryEntry{}

	for rows.Next() {
		var (
			entry           types.HistoryEntry
			sent            types.SentRequest
			resp            types.RequestResponse
			timestamp       string
			kind            string
			collectionID    sql.NullString
			environmentID   sql.NullString
			sentHeaders     string
			sentQuery       string
			sentBody        sql.NullString
			responseHeaders string
			durationMs      int64
			events          sql.NullString
		)

		err := rows.Scan(
			&entry.ID,
			&timestamp,
			&entry.Name,
			&kind,
			&entry.RequestID,
			&collectionID,
			&environmentID,
			&sent.Method,
			&sent.URL,
			&sentHeaders,
			&sentQuery,
			&sentBody,
			&resp.StatusCode,
			&resp.StatusMessage,
			&responseHeaders,
			&resp.Body,
			&resp.Size,
			&durationMs,
			&resp.IsStreaming,
			&events,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		parsed, err := time.Parse(timestampLayout, timestamp)
		if err != nil {
			return nil, fmt.Errorf("history entry %d has an invalid timestamp %q: %w", entry.ID, timestamp, err)
		}
		entry.Timestamp = parsed
		entry.Kind = types.RequestKind(kind)
		entry.CollectionID = collectionID.String
		entry.EnvironmentID = environmentID.String

		sent.Headers = unmarshalMap(sentHeaders)
		sent.QueryParams = unmarshalMap(sentQuery)
		sent.Body = sentBody.String

		resp.Headers = unmarshalMap(responseHeaders)
		resp.Elapsed = time.Duration(durationMs) * time.Millisecond
		if events.Valid {
			if err := json.Unmarshal([]byte(events.String), &resp.Events); err != nil {
				return nil, fmt.Errorf("history entry %d has invalid events: %w", entry.ID, err)
			}
		}
		resp.SentRequest = &sent

		entry.SentRequest = &sent
		entry.Response = &resp
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (m *Manager) Clear() error {
	_, err := m.db.Exec("DELETE FROM history")
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

func (m *Manager) Delete(id int64) error {
	_, err := m.db.Exec("DELETE FROM history WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}
	return nil
}

func (m *Manager) Count() (int, error) {
	var count int
	err := m.db.QueryRow("SELECT COUNT(*) FROM history").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get history count: %w", err)
	}
	return count, nil
}

func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

func marshalMap(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalMap(raw string) map[string]string {
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// sqlLimit maps "no limit" to SQLite's -1
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
