package auth

import (
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "grabbot"
	keyringPrefix  = "cookies_"
)

// KeyringStore implements CredentialStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a new keyring-based credential store
func NewKeyringStore() (*KeyringStore, error) {
	// Test if keyring is available
	testKey := "test_availability"
	err := keyring.Set(keyringService, testKey, "test")
	if err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves a cookie jar to the system keychain
func (k *KeyringStore) Store(jar *CookieJar) error {
	if jar == nil || jar.Name == "" {
		return ErrInvalidCredentials
	}

	// Serialize jar to JSON
	data, err := json.Marshal(jar)
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}

	// Store in keyring
	key := keyringPrefix + jar.Name
	if err := keyring.Set(keyringService, key, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return nil
}

// Retrieve gets a cookie jar from the system keychain
func (k *KeyringStore) Retrieve(name string) (*CookieJar, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	key := keyringPrefix + name
	data, err := keyring.Get(keyringService, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var jar CookieJar
	if err := json.Unmarshal([]byte(data), &jar); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cookies: %w", err)
	}

	return &jar, nil
}

// List returns all stored cookie jars from the keychain
func (k *KeyringStore) List() ([]*CookieJar, error) {
	// go-keyring cannot enumerate keys, so listing falls through to the
	// encrypted file store
	return []*CookieJar{}, nil
}

// Delete removes a cookie jar from the system keychain
func (k *KeyringStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}

	key := keyringPrefix + name
	err := keyring.Delete(keyringService, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	return nil
}

// Exists checks if a cookie jar exists in the keychain
func (k *KeyringStore) Exists(name string) bool {
	if name == "" {
		return false
	}

	key := keyringPrefix + name
	_, err := keyring.Get(keyringService, key)
	return err == nil
}
