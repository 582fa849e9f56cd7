package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	secretService   = "wordsync"
	ankiKeyAccount  = "anki_key"
	apiTokenAccount = "api_token"
)

// SecretStore reads and writes secrets in the platform secret store.
type SecretStore interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

// NewKeychain returns the platform secret store: the macOS Keychain, or a
// 0600 JSON file under $XDG_DATA_HOME elsewhere.
func NewKeychain() SecretStore {
	return keychainStore{}
}

type keychainStore struct {
	keychainReader
}

func (keychainStore) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}

// GetAPIToken returns the bearer token guarding the local HTTP API,
// generating and storing one on first use.
func GetAPIToken(s SecretStore) (string, error) {
	if tok, err := s.Get(secretService, apiTokenAccount); err == nil && tok != "" {
		return tok, nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating API token: %w", err)
	}
	tok := hex.EncodeToString(buf)
	if err := s.Set(secretService, apiTokenAccount, tok); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return tok, nil
}
