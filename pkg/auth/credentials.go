package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// CookieJar holds an exported browser cookie file for a site, in the
// Netscape cookies.txt format that yt-dlp consumes
type CookieJar struct {
	Name         string    `json:"name"`
	Data         string    `json:"data"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving cookie jars
type CredentialStore interface {
	// Store saves a cookie jar under its name
	Store(jar *CookieJar) error

	// Retrieve gets the cookie jar for a specific name
	Retrieve(name string) (*CookieJar, error)

	// List returns all stored cookie jars
	List() ([]*CookieJar, error)

	// Delete removes the cookie jar for a specific name
	Delete(name string) error

	// Exists checks if a cookie jar exists for a name
	Exists(name string) bool
}

// Manager handles cookie storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a new credential manager with appropriate storage backends
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	// Try keyring first (system keychain)
	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	// Always add encrypted file store as fallback
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "cookies.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	// Add environment store as last resort
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves a cookie jar using the first available store
func (m *Manager) Store(jar *CookieJar) error {
	if jar.Name == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(jar.Data) == "" {
		return errors.New("cookie data is required")
	}

	jar.LastModified = time.Now()

	// Try each store in order
	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(jar); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store cookies: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets a cookie jar from the first store that has it
func (m *Manager) Retrieve(name string) (*CookieJar, error) {
	for _, store := range m.stores {
		if jar, err := store.Retrieve(name); err == nil && jar != nil {
			return jar, nil
		}
	}
	return nil, fmt.Errorf("cookies not found: %s", name)
}

// RetrieveDefault gets the default cookie jar or the first available one
func (m *Manager) RetrieveDefault() (*CookieJar, error) {
	// First try to get from environment (for container deployments)
	if envStore, ok := m.stores[len(m.stores)-1].(*EnvironmentStore); ok {
		if jar, err := envStore.Retrieve(""); err == nil && jar != nil {
			return jar, nil
		}
	}

	// Then try to get the first available jar
	jars, err := m.List()
	if err == nil && len(jars) > 0 {
		return jars[0], nil
	}

	return nil, errors.New("no cookies found")
}

// List returns all stored cookie jars from all stores
func (m *Manager) List() ([]*CookieJar, error) {
	jarMap := make(map[string]*CookieJar)

	for _, store := range m.stores {
		jars, err := store.List()
		if err != nil {
			continue
		}
		for _, jar := range jars {
			// Use the most recently modified version
			if existing, ok := jarMap[jar.Name]; !ok || jar.LastModified.After(existing.LastModified) {
				jarMap[jar.Name] = jar
			}
		}
	}

	var result []*CookieJar
	for _, jar := range jarMap {
		result = append(result, jar)
	}

	return result, nil
}

// Delete removes a cookie jar from all stores
func (m *Manager) Delete(name string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete cookies: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("cookies not found: %s", name)
	}

	return nil
}

// DeleteAll removes all stored cookie jars
func (m *Manager) DeleteAll() error {
	jars, err := m.List()
	if err != nil {
		return err
	}

	for _, jar := range jars {
		_ = m.Delete(jar.Name) // Ignore individual errors
	}

	return nil
}

// MaterializeDefault writes the default cookie jar to a file under dir and
// returns its path. A missing jar is a normal outcome and returns an empty
// path with a nil error, so downloads simply run without cookies.
func (m *Manager) MaterializeDefault(dir string) (string, error) {
	jar, err := m.RetrieveDefault()
	if err != nil {
		return "", nil
	}

	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create cookie directory: %w", err)
	}

	path := filepath.Join(dir, "cookies.txt")
	if err := os.WriteFile(path, []byte(jar.Data), 0600); err != nil {
		return "", fmt.Errorf("failed to write cookie file: %w", err)
	}

	return path, nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "grabbot")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "grabbot")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "grabbot")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "grabbot")
		}
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeJar creates a copy of the jar with the cookie payload masked
func SanitizeJar(jar *CookieJar) *CookieJar {
	if jar == nil {
		return nil
	}

	return &CookieJar{
		Name:         jar.Name,
		Data:         fmt.Sprintf("<%d bytes>", len(jar.Data)),
		LastModified: jar.LastModified,
	}
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("cookies not found")
	ErrInvalidCredentials  = errors.New("invalid cookies")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
