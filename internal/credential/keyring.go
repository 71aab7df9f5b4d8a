package credential

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const serviceName = "toolchat"

// Keys under which secrets are stored.
const (
	KeyAnthropicAPIKey     = "anthropic-api-key"
	KeyConnectClientID     = "connect-client-id"
	KeyConnectClientSecret = "connect-client-secret"
	KeySessionUserID       = "session-user-id"
	KeySessionEmail        = "session-email"
)

// envOverrides lists the environment variables consulted before the keyring.
var envOverrides = map[string]string{
	KeyAnthropicAPIKey:     "ANTHROPIC_API_KEY",
	KeyConnectClientID:     "PIPEDREAM_CLIENT_ID",
	KeyConnectClientSecret: "PIPEDREAM_CLIENT_SECRET",
}

// ErrNotFound is returned when no value is stored under a key.
var ErrNotFound = errors.New("credential not found")

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/toolchat/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("toolchat-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Lookup returns the environment override for key when one is set and
// non-empty, otherwise the keyring value.
func Lookup(key string) (string, error) {
	if env, ok := envOverrides[key]; ok {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}
	return Get(key)
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring. Deleting a
// missing key is not an error.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
