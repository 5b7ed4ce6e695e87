// Package credentials reads bearer tokens from the external token cache.
// This is part of the Imperative Shell - token acquisition and refresh are
// owned by the platform's CLI tooling; this package only reads its cache.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fnship/fnship/internal/core/domain"
)

// TokenSource supplies a short-lived bearer token for remote calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// =============================================================================
// File Cache
// =============================================================================

// Cache reads tokens from a JSON token-cache file keyed by account.
type Cache struct {
	path    string
	account string
}

// cacheEntry is one token record in the cache file.
type cacheEntry struct {
	Account     string `json:"account"`
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType,omitempty"`
	ExpiresOn   string `json:"expiresOn,omitempty"`
}

// NewCache creates a token cache reader for the given file and account.
func NewCache(path, account string) *Cache {
	return &Cache{
		path:    path,
		account: account,
	}
}

// Token returns the first cached access token for the configured account.
func (c *Cache) Token(_ context.Context) (string, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return "", fmt.Errorf("failed to read token cache %s: %w", c.path, err)
	}

	var entries []cacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return "", fmt.Errorf("failed to parse token cache %s: %w", c.path, err)
	}

	for _, entry := range entries {
		if entry.Account == c.account {
			return entry.AccessToken, nil
		}
	}

	return "", fmt.Errorf("account %q in %s: %w", c.account, c.path, domain.ErrNoCachedToken)
}
