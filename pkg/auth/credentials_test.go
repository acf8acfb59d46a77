package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleCookies = "# Netscape HTTP Cookie File\n.example.com\tTRUE\t/\tTRUE\t2147483647\tsession\tabc123def456\n"

func TestCredentialManager(t *testing.T) {
	// Use mock manager for reliable testing
	manager, mockStore := NewMockManager()

	// Test storing cookies
	jar := &CookieJar{
		Name:         "example",
		Data:         sampleCookies,
		LastModified: time.Now(),
	}

	err := manager.Store(jar)
	if err != nil {
		t.Errorf("Failed to store jar: %v", err)
	}

	// Test retrieving cookies
	retrieved, err := manager.Retrieve("example")
	if err != nil {
		t.Errorf("Failed to retrieve jar: %v", err)
	}

	if retrieved.Name != jar.Name {
		t.Errorf("Name mismatch: got %s, want %s", retrieved.Name, jar.Name)
	}
	if retrieved.Data != jar.Data {
		t.Error("Cookie data mismatch")
	}

	// Test listing jars
	jars, err := manager.List()
	if err != nil {
		t.Errorf("Failed to list jars: %v", err)
	}
	if len(jars) == 0 {
		t.Error("Expected at least one jar in list")
	}

	// Test sanitization
	sanitized := SanitizeJar(jar)
	if sanitized.Data == jar.Data {
		t.Error("Cookie data should be masked")
	}
	if sanitized.Name != jar.Name {
		t.Error("Name should not be masked")
	}

	// Test deletion
	err = manager.Delete("example")
	if err != nil {
		t.Errorf("Failed to delete jar: %v", err)
	}

	// Verify deletion
	_, err = manager.Retrieve("example")
	if err == nil {
		t.Error("Expected error retrieving deleted jar")
	}

	// Verify mock store state
	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 jars after deletion, got %d", mockStore.Count())
	}
}

func TestManagerRejectsEmptyData(t *testing.T) {
	manager, _ := NewMockManager()

	if err := manager.Store(&CookieJar{Name: "blank", Data: "   \n"}); err == nil {
		t.Error("Expected error storing empty cookie data")
	}
	if err := manager.Store(&CookieJar{Data: sampleCookies}); err == nil {
		t.Error("Expected error storing jar without a name")
	}
}

func TestEncryptedFileStore(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "test_cookies.enc")

	// Set test passphrase
	os.Setenv("GRABBOT_PASSPHRASE", "test_passphrase_123")
	defer os.Unsetenv("GRABBOT_PASSPHRASE")

	// Create store
	store, err := NewEncryptedFileStore(tempFile)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	jar := &CookieJar{
		Name: "encrypted_site",
		Data: sampleCookies,
	}

	// Store
	err = store.Store(jar)
	if err != nil {
		t.Errorf("Failed to store in encrypted file: %v", err)
	}

	// Retrieve
	retrieved, err := store.Retrieve("encrypted_site")
	if err != nil {
		t.Errorf("Failed to retrieve from encrypted file: %v", err)
	}

	if retrieved.Data != jar.Data {
		t.Errorf("Cookie data mismatch after encryption/decryption")
	}

	// Verify file is actually encrypted
	fileContent, err := os.ReadFile(tempFile)
	if err != nil {
		t.Fatal(err)
	}

	// File should not contain the plaintext cookie value
	if strings.Contains(string(fileContent), "abc123def456") {
		t.Error("File contains plaintext cookie value")
	}
}

func TestEnvironmentStore(t *testing.T) {
	os.Setenv("GRABBOT_COOKIES", sampleCookies)
	defer os.Unsetenv("GRABBOT_COOKIES")

	store := NewEnvironmentStore()

	// Test retrieve
	jar, err := store.Retrieve("")
	if err != nil {
		t.Errorf("Failed to retrieve from environment: %v", err)
	}

	if jar.Data != sampleCookies {
		t.Error("Cookie data mismatch from environment")
	}
	if jar.Name != "default" {
		t.Errorf("Name mismatch: got %s, want default", jar.Name)
	}

	// Test that store is not supported
	err = store.Store(&CookieJar{})
	if err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}
}

func TestEnvironmentStoreFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	if err := os.WriteFile(path, []byte(sampleCookies), 0600); err != nil {
		t.Fatal(err)
	}

	os.Setenv("GRABBOT_COOKIES_FILE", path)
	defer os.Unsetenv("GRABBOT_COOKIES_FILE")

	store := NewEnvironmentStore()
	jar, err := store.Retrieve("yt")
	if err != nil {
		t.Fatalf("Failed to retrieve from file: %v", err)
	}
	if jar.Data != sampleCookies {
		t.Error("Cookie data mismatch from file")
	}
	if jar.Name != "yt" {
		t.Errorf("Name mismatch: got %s, want yt", jar.Name)
	}
}

func TestRealManagerWithEncryptedStore(t *testing.T) {
	tempDir := t.TempDir()

	// Set passphrase for testing
	os.Setenv("GRABBOT_PASSPHRASE", "test_passphrase_real_manager")
	defer os.Unsetenv("GRABBOT_PASSPHRASE")

	// Create manager with only encrypted file store (most reliable for testing)
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(tempDir, "cookies.enc"))
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	manager := NewMockManagerWithStores(encryptedStore)

	jar := &CookieJar{
		Name:         "real_site",
		Data:         sampleCookies,
		LastModified: time.Now(),
	}

	err = manager.Store(jar)
	if err != nil {
		t.Fatalf("Failed to store jar: %v", err)
	}

	// Test listing jars
	jars, err := manager.List()
	if err != nil {
		t.Fatalf("Failed to list jars: %v", err)
	}
	if len(jars) != 1 {
		t.Errorf("Expected 1 jar in list, got %d", len(jars))
	}

	// Test retrieving cookies
	retrieved, err := manager.Retrieve("real_site")
	if err != nil {
		t.Fatalf("Failed to retrieve jar: %v", err)
	}

	if retrieved.Name != jar.Name {
		t.Errorf("Name mismatch: got %s, want %s", retrieved.Name, jar.Name)
	}
	if retrieved.Data != jar.Data {
		t.Error("Cookie data mismatch")
	}
}

func TestMaterializeDefault(t *testing.T) {
	manager, _ := NewMockManager()
	dir := t.TempDir()

	// Missing jar is not an error, path is just empty
	path, err := manager.MaterializeDefault(dir)
	if err != nil {
		t.Fatalf("Unexpected error with no jar: %v", err)
	}
	if path != "" {
		t.Errorf("Expected empty path with no jar, got %s", path)
	}

	err = manager.Store(&CookieJar{Name: "example", Data: sampleCookies})
	if err != nil {
		t.Fatal(err)
	}

	path, err = manager.MaterializeDefault(dir)
	if err != nil {
		t.Fatalf("Failed to materialize cookies: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read materialized cookies: %v", err)
	}
	if string(content) != sampleCookies {
		t.Error("Materialized cookie data mismatch")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
	}
}

func TestMockStore(t *testing.T) {
	store := NewMockStore()

	// Test empty store
	jars, err := store.List()
	if err != nil {
		t.Errorf("Failed to list empty store: %v", err)
	}
	if len(jars) != 0 {
		t.Errorf("Expected 0 jars, got %d", len(jars))
	}

	jar := &CookieJar{
		Name: "mock_site",
		Data: sampleCookies,
	}

	err = store.Store(jar)
	if err != nil {
		t.Errorf("Failed to store jar: %v", err)
	}

	// Verify count
	if store.Count() != 1 {
		t.Errorf("Expected 1 jar, got %d", store.Count())
	}

	// Test exists
	if !store.Exists("mock_site") {
		t.Error("Jar should exist")
	}

	// Test error injection
	store.ListError = fmt.Errorf("injected error")
	_, err = store.List()
	if err == nil || err.Error() != "injected error" {
		t.Error("Expected injected error")
	}
}
