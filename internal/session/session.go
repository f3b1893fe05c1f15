package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/studiowebux/restflow/internal/types"
)

// Manager persists the current environment selection and the history toggle
type Manager struct {
	mu      sync.RWMutex
	path    string
	session *types.Session
}

// NewManager creates a session manager backed by path
func NewManager(path string) *Manager {
	return &Manager{
		path:    path,
		session: defaultSession(),
	}
}

func defaultSession() *types.Session {
	enabled := true
	return &types.Session{HistoryEnabled: &enabled}
}

// Load loads the session file. A missing file yields the default session.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			m.session = defaultSession()
			return nil
		}
		return fmt.Errorf("failed to read session file: %w", err)
	}

	var session types.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return fmt.Errorf("failed to parse session file: %w", err)
	}

	if session.HistoryEnabled == nil {
		enabled := true
		session.HistoryEnabled = &enabled
	}

	m.session = &session
	return nil
}

// save writes the session to disk; callers hold the lock
func (m *Manager) save() error {
	data, err := json.MarshalIndent(m.session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// CurrentEnvironment returns the selected environment id, or "" when none
func (m *Manager) CurrentEnvironment() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.CurrentEnvironment
}

// SetCurrentEnvironment selects an environment and saves the session.
// An empty id clears the selection.
func (m *Manager) SetCurrentEnvironment(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.CurrentEnvironment = id
	return m.save()
}

// IsHistoryEnabled returns whether history tracking is enabled
func (m *Manager) IsHistoryEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session.HistoryEnabled == nil {
		return true
	}
	return *m.session.HistoryEnabled
}

// SetHistoryEnabled sets whether history tracking is enabled
func (m *Manager) SetHistoryEnabled(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.HistoryEnabled = &enabled
	return m.save()
}
