package executor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studiowebux/restflow/internal/oauth"
	"github.com/studiowebux/restflow/internal/types"
)

// Executor runs one request shape. Transport failures are reported inside
// the returned response (status 0), never as a Go error.
type Executor interface {
	Name() string
	CanExecute(req *types.Request) bool
	Execute(ctx context.Context, req *types.Request) *types.RequestResponse
}

// TLSConfig holds optional client TLS settings
type TLSConfig struct {
	InsecureSkipVerify bool
	CertFile           string
	KeyFile            string
	CAFile             string
}

// Options tunes the shared transport
type Options struct {
	RequestTimeout   time.Duration
	HandshakeTimeout time.Duration
	// ReceiveTimeout ends a streaming session after this much silence
	ReceiveTimeout time.Duration
	// MaxMessages ends a streaming session after this many received frames
	MaxMessages int
	TLS         *TLSConfig
}

// DefaultOptions returns the settings used when nothing is configured
func DefaultOptions() Options {
	return Options{
		RequestTimeout:   30 * time.Second,
		HandshakeTimeout: 45 * time.Second,
		ReceiveTimeout:   5 * time.Second,
		MaxMessages:      100,
	}
}

// Transport is the HTTP client, WebSocket dialer settings and token cache
// shared by every executor
type Transport struct {
	opts      Options
	client    *http.Client
	tlsConfig *tls.Config
	tokens    *oauth.TokenCache
}

// NewTransport builds a transport from opts
func NewTransport(opts Options) (*Transport, error) {
	tlsCfg, err := buildTLSConfig(opts.TLS)
	if err != nil {
		return nil, fmt.Errorf("failed to configure TLS: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if tlsCfg != nil {
		transport.TLSClientConfig = tlsCfg
	}

	client := &http.Client{
		Timeout:   opts.RequestTimeout,
		Transport: transport,
	}

	return &Transport{
		opts:      opts,
		client:    client,
		tlsConfig: tlsCfg,
		tokens:    oauth.NewTokenCache(client),
	}, nil
}

// Client returns the HTTP client used for Rest, GraphQL and SSE calls
func (t *Transport) Client() *http.Client {
	return t.client
}

func (t *Transport) dialer(subprotocols []string) *websocket.Dialer {
	return &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: t.opts.HandshakeTimeout,
		TLSClientConfig:  t.tlsConfig,
		Subprotocols:     subprotocols,
	}
}

// buildTLSConfig creates a TLS configuration with optional mTLS and custom CA.
// It returns nil when no TLS settings are given.
func buildTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, nil
	}

	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	// Load client certificate if provided (for mTLS)
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	// Load CA certificate if provided (for server verification)
	if cfg.CAFile != "" {
		caCert, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsCfg.RootCAs = caCertPool
	}

	return tlsCfg, nil
}

// FormatDuration formats a duration to a human-readable string
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000.0
	return fmt.Sprintf("%.2fs", seconds)
}

// FormatSize formats byte size to human-readable string
func FormatSize(bytes int) string {
	if bytes < 1024 {
		return fmt.Sprintf("%dB", bytes)
	}
	if bytes < 1024*1024 {
		return fmt.Sprintf("%.2fKB", float64(bytes)/1024.0)
	}
	return fmt.Sprintf("%.2fMB", float64(bytes)/(1024.0*1024.0))
}
