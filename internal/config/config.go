package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/studiowebux/restflow/internal/executor"
)

const (
	// FilePermissions is the default permission mode for regular files (read/write for owner, read for others)
	FilePermissions = 0644
	// DirPermissions is the default permission mode for directories (rwxr-xr-x)
	DirPermissions = 0755

	// HomeEnv overrides the configuration directory
	HomeEnv = "RESTFLOW_HOME"
	// EnvPrefix prefixes environment overrides of settings, e.g. RESTFLOW_REQUEST_TIMEOUT
	EnvPrefix = "RESTFLOW"
)

var (
	// ConfigDir is the global configuration directory (~/.restflow)
	ConfigDir string

	// DatabasePath is the SQLite database file for history
	DatabasePath string

	// SessionFile is the session state file
	SessionFile string

	// LogDir holds restflow.log
	LogDir string
)

// Initialize sets up the configuration directories and files.
// It creates $RESTFLOW_HOME, or ~/.restflow, if it doesn't exist.
func Initialize() error {
	dir := os.Getenv(HomeEnv)
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".restflow")
	}

	ConfigDir = dir
	DatabasePath = filepath.Join(ConfigDir, "restflow.db")
	SessionFile = filepath.Join(ConfigDir, ".session.json")
	LogDir = filepath.Join(ConfigDir, "logs")

	for _, d := range []string{ConfigDir, LogDir} {
		if err := os.MkdirAll(d, DirPermissions); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}

	// Create empty session file if it doesn't exist
	if _, err := os.Stat(SessionFile); os.IsNotExist(err) {
		defaultSession := []byte(`{"historyEnabled":true}`)
		if err := os.WriteFile(SessionFile, defaultSession, FilePermissions); err != nil {
			return fmt.Errorf("failed to create session file: %w", err)
		}
	}

	return nil
}

// Settings are the tunables read from config.yaml and RESTFLOW_* variables
type Settings struct {
	RequestTimeout   time.Duration
	HandshakeTimeout time.Duration
	ReceiveTimeout   time.Duration
	MaxMessages      int
	HistoryEnabled   bool
	Workspace        string
	TLS              executor.TLSConfig
}

// Load reads config.yaml from dir. A missing file leaves the defaults.
func Load(dir string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	s := &Settings{
		RequestTimeout:   v.GetDuration("request_timeout"),
		HandshakeTimeout: v.GetDuration("websocket.handshake_timeout"),
		ReceiveTimeout:   v.GetDuration("websocket.receive_timeout"),
		MaxMessages:      v.GetInt("websocket.max_messages"),
		HistoryEnabled:   v.GetBool("history.enabled"),
		Workspace:        v.GetString("workspace"),
		TLS: executor.TLSConfig{
			InsecureSkipVerify: v.GetBool("tls.insecure_skip_verify"),
			CertFile:           v.GetString("tls.cert_file"),
			KeyFile:            v.GetString("tls.key_file"),
			CAFile:             v.GetString("tls.ca_file"),
		},
	}

	if s.MaxMessages <= 0 {
		return nil, fmt.Errorf("websocket.max_messages must be positive, got %d", s.MaxMessages)
	}
	return s, nil
}

func setDefaults(v *viper.Viper) {
	defaults := executor.DefaultOptions()
	v.SetDefault("request_timeout", defaults.RequestTimeout)
	v.SetDefault("websocket.handshake_timeout", defaults.HandshakeTimeout)
	v.SetDefault("websocket.receive_timeout", defaults.ReceiveTimeout)
	v.SetDefault("websocket.max_messages", defaults.MaxMessages)
	v.SetDefault("history.enabled", true)
	v.SetDefault("workspace", ".")
	v.SetDefault("tls.insecure_skip_verify", false)
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("tls.ca_file", "")
}

// ExecutorOptions maps the settings onto transport options
func (s *Settings) ExecutorOptions() executor.Options {
	opts := executor.Options{
		RequestTimeout:   s.RequestTimeout,
		HandshakeTimeout: s.HandshakeTimeout,
		ReceiveTimeout:   s.ReceiveTimeout,
		MaxMessages:      s.MaxMessages,
	}
	if s.TLS != (executor.TLSConfig{}) {
		tls := s.TLS
		opts.TLS = &tls
	}
	return opts
}
