package auth

import (
	"fmt"
	"sync"
)

// MockStore implements CredentialStore for testing purposes
type MockStore struct {
	jars map[string]*CookieJar
	mu   sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock credential store
func NewMockStore() *MockStore {
	return &MockStore{
		jars: make(map[string]*CookieJar),
	}
}

// Store saves a cookie jar to the mock store
func (m *MockStore) Store(jar *CookieJar) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if jar == nil || jar.Name == "" {
		return ErrInvalidCredentials
	}

	// Create a copy to avoid external modifications
	jarCopy := *jar
	m.jars[jar.Name] = &jarCopy

	return nil
}

// Retrieve gets a cookie jar from the mock store
func (m *MockStore) Retrieve(name string) (*CookieJar, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if name == "" {
		return nil, ErrInvalidCredentials
	}

	jar, exists := m.jars[name]
	if !exists {
		return nil, ErrCredentialsNotFound
	}

	// Return a copy to avoid external modifications
	jarCopy := *jar
	return &jarCopy, nil
}

// List returns all stored cookie jars from the mock store
func (m *MockStore) List() ([]*CookieJar, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var jars []*CookieJar
	for _, jar := range m.jars {
		// Create a copy for each jar
		jarCopy := *jar
		jars = append(jars, &jarCopy)
	}

	return jars, nil
}

// Delete removes a cookie jar from the mock store
func (m *MockStore) Delete(name string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		return ErrInvalidCredentials
	}

	if _, exists := m.jars[name]; !exists {
		return ErrCredentialsNotFound
	}

	delete(m.jars, name)
	return nil
}

// Exists checks if a cookie jar exists in the mock store
func (m *MockStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.jars[name]
	return exists
}

// Clear removes all jars from the mock store (useful for test cleanup)
func (m *MockStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jars = make(map[string]*CookieJar)
}

// Count returns the number of jars in the mock store (useful for testing)
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.jars)
}

// NewMockManager creates a Manager with a mock store for testing
func NewMockManager() (*Manager, *MockStore) {
	mockStore := NewMockStore()
	manager := &Manager{
		stores: []CredentialStore{mockStore},
	}
	return manager, mockStore
}

// NewMockManagerWithStores creates a Manager with multiple stores for testing
func NewMockManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{
		stores: stores,
	}
}

// GetJar returns a copy of the jar for inspection (useful for testing)
func (m *MockStore) GetJar(name string) (*CookieJar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jar, exists := m.jars[name]
	if !exists {
		return nil, fmt.Errorf("jar not found: %s", name)
	}

	jarCopy := *jar
	return &jarCopy, nil
}
