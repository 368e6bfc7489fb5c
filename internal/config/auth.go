// ABOUTME: Auth credential storage for provider API keys
// ABOUTME: Reads/writes ~/.gpt-go/auth.json with 0600 permissions, falling back to env vars

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// AuthStore holds API keys per provider.
type AuthStore struct {
	Keys map[string]string `json:"keys"` // provider -> api key
	path string
	mu   sync.Mutex
}

// LoadAuth reads the auth file at path, or returns an empty store if it
// doesn't exist. An empty path means AuthFile().
func LoadAuth(path string) (*AuthStore, error) {
	if path == "" {
		path = AuthFile()
	}
	store := &AuthStore{Keys: make(map[string]string), path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading auth file: %w", err)
	}
	if err := json.Unmarshal(data, store); err != nil {
		return nil, fmt.Errorf("parsing auth file: %w", err)
	}
	if store.Keys == nil {
		store.Keys = make(map[string]string)
	}
	return store, nil
}

// Save writes the auth store to disk with restricted permissions.
func (a *AuthStore) Save() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := EnsureDir(filepath.Dir(a.path)); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling auth: %w", err)
	}
	if err := os.WriteFile(a.path, data, 0o600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return nil
}

// GetKey returns the API key for a provider. Falls back to environment
// variables: GPT_API_KEY_<PROVIDER> then <PROVIDER>_API_KEY.
func (a *AuthStore) GetKey(provider string) string {
	a.mu.Lock()
	key := a.Keys[provider]
	a.mu.Unlock()
	if key != "" {
		return key
	}

	upper := strings.ToUpper(provider)
	for _, env := range []string{"GPT_API_KEY_" + upper, upper + "_API_KEY"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return ""
}

// SetKey stores an API key for a provider.
func (a *AuthStore) SetKey(provider, key string) {
	a.mu.Lock()
	a.Keys[provider] = key
	a.mu.Unlock()
}
