package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grabbot/pkg/config"
	"grabbot/pkg/errors"
	"grabbot/pkg/logger"
	"grabbot/pkg/retry"
	"grabbot/pkg/staging"
)

func testScrapeConfig() *config.ScrapeConfig {
	return &config.ScrapeConfig{
		UserAgent:      "test-agent",
		RequestTimeout: 5 * time.Second,
		MinImageBytes:  100,
		MaxBodyBytes:   1024 * 1024,
		RetryAttempts:  1,
	}
}

func TestFetchHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer server.Close()

	client := NewClient(testScrapeConfig(), logger.NewNopLogger())
	body, err := client.FetchHTML(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "hello")
}

func TestFetchHTMLCapsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer server.Close()

	cfg := testScrapeConfig()
	cfg.MaxBodyBytes = 1024

	client := NewClient(cfg, logger.NewNopLogger())
	body, err := client.FetchHTML(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, body, 1024)
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		status   int
		wantType errors.ErrorType
	}{
		{http.StatusUnauthorized, errors.ErrorTypeUnavailable},
		{http.StatusForbidden, errors.ErrorTypeUnavailable},
		{http.StatusNotFound, errors.ErrorTypeNotFound},
		{http.StatusGone, errors.ErrorTypeNotFound},
		{http.StatusTooManyRequests, errors.ErrorTypeServerError},
		{http.StatusInternalServerError, errors.ErrorTypeServerError},
		{http.StatusBadGateway, errors.ErrorTypeServerError},
		{http.StatusTeapot, errors.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(testScrapeConfig(), logger.NewNopLogger())
			_, err := client.FetchHTML(context.Background(), server.URL)
			require.Error(t, err)
			assert.Equal(t, tt.wantType, errors.TypeOf(err))
		})
	}
}

func TestFetchHTMLRetriesServerErrors(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("<html>recovered</html>"))
	}))
	defer server.Close()

	cfg := testScrapeConfig()
	cfg.RetryAttempts = 3

	client := NewClient(cfg, logger.NewNopLogger())
	client.retrier.Backoffs = &retry.ErrorTypeBackoff{
		NetworkErrorBackoff: &retry.ConstantBackoff{Delay: time.Millisecond},
		ServerErrorBackoff:  &retry.ConstantBackoff{Delay: time.Millisecond},
		DefaultBackoff:      &retry.ConstantBackoff{Delay: time.Millisecond},
	}

	body, err := client.FetchHTML(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "recovered")
	assert.Equal(t, int64(3), atomic.LoadInt64(&hits))
}

func TestFetchHTMLDoesNotRetryNotFound(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := testScrapeConfig()
	cfg.RetryAttempts = 3

	client := NewClient(cfg, logger.NewNopLogger())
	_, err := client.FetchHTML(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeNotFound, errors.TypeOf(err))
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits), "terminal statuses must not be retried")
}

func TestNetworkErrorType(t *testing.T) {
	client := NewClient(testScrapeConfig(), logger.NewNopLogger())
	_, err := client.FetchHTML(context.Background(), "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeNetwork, errors.TypeOf(err))
}

func TestDownloadToFile(t *testing.T) {
	payload := strings.Repeat("a", 500)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer server.Close()

	scope, err := staging.NewScope(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)
	defer scope.Cleanup()

	client := NewClient(testScrapeConfig(), logger.NewNopLogger())
	path, size, err := client.DownloadToFile(context.Background(), server.URL, scope, "img.jpg", 100)
	require.NoError(t, err)
	assert.NotEmpty(t, path)
	assert.Equal(t, int64(500), size)
	assert.FileExists(t, path)
}

func TestDownloadToFileDiscardsPlaceholders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tiny"))
	}))
	defer server.Close()

	scope, err := staging.NewScope(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)
	defer scope.Cleanup()

	client := NewClient(testScrapeConfig(), logger.NewNopLogger())
	path, size, err := client.DownloadToFile(context.Background(), server.URL, scope, "img.jpg", 100)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Zero(t, size)

	files, err := scope.Files()
	require.NoError(t, err)
	assert.Empty(t, files, "placeholder must not stay staged")
}
