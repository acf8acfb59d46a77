package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// This is primarily for container deployments where no keychain exists
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(jar *CookieJar) error {
	return ErrStoreUnavailable
}

// Retrieve gets cookies from GRABBOT_COOKIES or a file named by
// GRABBOT_COOKIES_FILE
func (e *EnvironmentStore) Retrieve(name string) (*CookieJar, error) {
	data := os.Getenv("GRABBOT_COOKIES")
	if data == "" {
		if path := os.Getenv("GRABBOT_COOKIES_FILE"); path != "" {
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, ErrCredentialsNotFound
			}
			data = string(content)
		}
	}

	if data == "" {
		return nil, ErrCredentialsNotFound
	}

	// Environment variables don't carry a jar name, so default it
	if name == "" {
		name = "default"
	}

	return &CookieJar{
		Name:         name,
		Data:         data,
		LastModified: time.Now(),
	}, nil
}

// List returns a single jar if environment cookies are set
func (e *EnvironmentStore) List() ([]*CookieJar, error) {
	jar, err := e.Retrieve("")
	if err != nil {
		return []*CookieJar{}, nil
	}
	return []*CookieJar{jar}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment cookies exist
func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}
