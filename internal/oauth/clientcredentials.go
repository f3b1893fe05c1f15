// Package oauth obtains access tokens for the oauth2 auth mode using the
// client-credentials grant.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/studiowebux/restflow/internal/types"
)

// ErrMissingConfig is returned when the oauth2 auth mode lacks a token URL or client id
var ErrMissingConfig = errors.New("oauth2 configuration requires tokenUrl and clientId")

// TokenCache hands out access tokens and reuses them until they expire.
// Tokens are keyed by token URL, client id, client secret and scopes.
type TokenCache struct {
	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
	client  *http.Client
}

// NewTokenCache creates a cache. client is used for token requests;
// nil means http.DefaultClient.
func NewTokenCache(client *http.Client) *TokenCache {
	return &TokenCache{
		sources: make(map[string]oauth2.TokenSource),
		client:  client,
	}
}

// Token returns a valid access token for cfg, fetching one when needed
func (c *TokenCache) Token(ctx context.Context, cfg *types.OAuth2Config) (string, error) {
	if cfg == nil || cfg.TokenURL == "" || cfg.ClientID == "" {
		return "", ErrMissingConfig
	}

	token, err := c.source(ctx, cfg).Token()
	if err != nil {
		return "", fmt.Errorf("oauth2 client_credentials flow failed: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("oauth2 token endpoint %s returned an empty access token", cfg.TokenURL)
	}
	return token.AccessToken, nil
}

// Forget drops any cached token for cfg so the next call fetches a new one
func (c *TokenCache) Forget(cfg *types.OAuth2Config) {
	if cfg == nil {
		return
	}
	c.mu.Lock()
	delete(c.sources, cacheKey(cfg))
	c.mu.Unlock()
}

func (c *TokenCache) source(ctx context.Context, cfg *types.OAuth2Config) oauth2.TokenSource {
	key := cacheKey(cfg)

	c.mu.Lock()
	defer c.mu.Unlock()

	if src, ok := c.sources[key]; ok {
		return src
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	// The token source keeps this context for refreshes, so it must not be
	// the caller's request-scoped one.
	base := context.WithoutCancel(ctx)
	if c.client != nil {
		base = context.WithValue(base, oauth2.HTTPClient, c.client)
	}
	src := oauth2.ReuseTokenSource(nil, cc.TokenSource(base))
	c.sources[key] = src
	return src
}

func cacheKey(cfg *types.OAuth2Config) string {
	return strings.Join([]string{cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, strings.Join(cfg.Scopes, " ")}, "\x00")
}
