package downloader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"grabbot/pkg/logger"
	"grabbot/pkg/ratelimit"
	"grabbot/pkg/staging"
)

// mockFetcher is a scripted ImageFetcher
type mockFetcher struct {
	downloadDelay   time.Duration
	downloadError   error
	placeholderFor  map[string]bool
	downloadCounter int32
}

func (m *mockFetcher) DownloadToFile(ctx context.Context, url string, scope *staging.Scope, name string, minBytes int64) (string, int64, error) {
	atomic.AddInt32(&m.downloadCounter, 1)
	if m.downloadDelay > 0 {
		time.Sleep(m.downloadDelay)
	}
	if m.downloadError != nil {
		return "", 0, m.downloadError
	}
	if m.placeholderFor[url] {
		return "", 0, nil
	}
	path, size, err := scope.Save(name, strings.NewReader("mock image data"))
	return path, size, err
}

func (m *mockFetcher) count() int {
	return int(atomic.LoadInt32(&m.downloadCounter))
}

func newTestScope(t *testing.T) *staging.Scope {
	t.Helper()
	scope, err := staging.NewScope(t.TempDir(), logger.NewNopLogger())
	if err != nil {
		t.Fatalf("failed to create scope: %v", err)
	}
	t.Cleanup(scope.Cleanup)
	return scope
}

func TestPoolBasicFunctionality(t *testing.T) {
	fetcher := &mockFetcher{downloadDelay: 10 * time.Millisecond}
	scope := newTestScope(t)
	rateLimiter := ratelimit.NewTokenBucket(100, time.Second)

	pool := NewPool(context.Background(), 3, fetcher, scope, 0, rateLimiter, nil)
	pool.Start()

	var results []Result
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range pool.Results() {
			results = append(results, result)
		}
	}()

	numJobs := 10
	for i := 0; i < numJobs; i++ {
		job := Job{
			URL:  fmt.Sprintf("https://example.com/photo%d.jpg", i),
			Name: fmt.Sprintf("image_%03d.jpg", i),
		}
		if err := pool.Submit(job); err != nil {
			t.Errorf("Failed to submit job %d: %v", i, err)
		}
	}

	pool.Stop()
	wg.Wait()

	if len(results) != numJobs {
		t.Errorf("Expected %d results, got %d", numJobs, len(results))
	}

	successCount := 0
	for _, result := range results {
		if result.Success {
			successCount++
		}
	}
	if successCount != numJobs {
		t.Errorf("Expected %d successful downloads, got %d", numJobs, successCount)
	}

	if fetcher.count() != numJobs {
		t.Errorf("Expected %d download calls, got %d", numJobs, fetcher.count())
	}

	files, err := scope.Files()
	if err != nil {
		t.Fatalf("Failed to list scope files: %v", err)
	}
	if len(files) != numJobs {
		t.Errorf("Expected %d staged files, got %d", numJobs, len(files))
	}
}

func TestPoolWithErrors(t *testing.T) {
	fetcher := &mockFetcher{downloadError: fmt.Errorf("download error")}
	scope := newTestScope(t)
	rateLimiter := ratelimit.NewTokenBucket(100, time.Second)

	pool := NewPool(context.Background(), 2, fetcher, scope, 0, rateLimiter, nil)
	pool.Start()

	var results []Result
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range pool.Results() {
			results = append(results, result)
		}
	}()

	numJobs := 5
	for i := 0; i < numJobs; i++ {
		job := Job{URL: fmt.Sprintf("https://example.com/photo%d.jpg", i), Name: fmt.Sprintf("%d.jpg", i)}
		if err := pool.Submit(job); err != nil {
			t.Errorf("Failed to submit job %d: %v", i, err)
		}
	}

	pool.Stop()
	wg.Wait()

	if len(results) != numJobs {
		t.Errorf("Expected %d results, got %d", numJobs, len(results))
	}
	for _, result := range results {
		if result.Success {
			t.Error("Expected all downloads to fail")
		}
		if result.Error == nil {
			t.Error("Expected error in result")
		}
	}
}

func TestPoolConcurrency(t *testing.T) {
	fetcher := &mockFetcher{downloadDelay: 100 * time.Millisecond}
	scope := newTestScope(t)
	rateLimiter := ratelimit.NewTokenBucket(100, time.Second)

	pool := NewPool(context.Background(), 5, fetcher, scope, 0, rateLimiter, nil)
	pool.Start()

	var results []Result
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range pool.Results() {
			results = append(results, result)
		}
	}()

	numJobs := 10
	startTime := time.Now()

	for i := 0; i < numJobs; i++ {
		job := Job{URL: fmt.Sprintf("https://example.com/photo%d.jpg", i), Name: fmt.Sprintf("%d.jpg", i)}
		if err := pool.Submit(job); err != nil {
			t.Errorf("Failed to submit job %d: %v", i, err)
		}
	}

	pool.Stop()
	wg.Wait()

	elapsed := time.Since(startTime)

	// With 5 workers and 10 jobs taking 100ms each, it should take ~200ms
	expectedTime := 400 * time.Millisecond
	if elapsed > expectedTime {
		t.Errorf("Downloads took too long: %v (expected < %v)", elapsed, expectedTime)
	}

	if len(results) != numJobs {
		t.Errorf("Expected %d results, got %d", numJobs, len(results))
	}
}

func TestFetchAllKeepsCandidateOrder(t *testing.T) {
	fetcher := &mockFetcher{downloadDelay: 5 * time.Millisecond}
	scope := newTestScope(t)

	urls := []string{
		"https://example.com/a.jpg",
		"https://example.com/b.jpg",
		"https://example.com/c.jpg",
		"https://example.com/d.jpg",
	}

	paths := FetchAll(context.Background(), urls, 4, fetcher, scope, 0, nil, logger.NewNopLogger())

	if len(paths) != len(urls) {
		t.Fatalf("Expected %d paths, got %d", len(urls), len(paths))
	}
	for i, p := range paths {
		want := fmt.Sprintf("image_%03d.jpg", i)
		if filepath.Base(p) != want {
			t.Errorf("Path %d: expected base %s, got %s", i, want, filepath.Base(p))
		}
	}
}

func TestFetchAllDropsPlaceholders(t *testing.T) {
	fetcher := &mockFetcher{
		placeholderFor: map[string]bool{"https://example.com/b.jpg": true},
	}
	scope := newTestScope(t)

	urls := []string{
		"https://example.com/a.jpg",
		"https://example.com/b.jpg",
		"https://example.com/c.jpg",
	}

	paths := FetchAll(context.Background(), urls, 2, fetcher, scope, 0, nil, logger.NewNopLogger())

	if len(paths) != 2 {
		t.Fatalf("Expected 2 surviving paths, got %d", len(paths))
	}
}

func TestFetchAllStopsOnCancelledContext(t *testing.T) {
	fetcher := &mockFetcher{downloadDelay: 50 * time.Millisecond}
	scope := newTestScope(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	urls := make([]string, 20)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/photo%d.jpg", i)
	}

	start := time.Now()
	paths := FetchAll(ctx, urls, 2, fetcher, scope, 0, nil, logger.NewNopLogger())
	elapsed := time.Since(start)

	if len(paths) != 0 {
		t.Errorf("Expected no survivors under a cancelled context, got %d", len(paths))
	}
	if fetcher.count() != 0 {
		t.Errorf("Expected no downloads under a cancelled context, got %d", fetcher.count())
	}
	// 20 slow jobs through 2 workers would take ~500ms if the pool ignored
	// the cancellation
	if elapsed > 200*time.Millisecond {
		t.Errorf("FetchAll did not return promptly after cancellation: %v", elapsed)
	}
}

func TestFetchAllEmptyInput(t *testing.T) {
	scope := newTestScope(t)
	paths := FetchAll(context.Background(), nil, 3, &mockFetcher{}, scope, 0, nil, logger.NewNopLogger())
	if paths != nil {
		t.Errorf("Expected nil for empty input, got %v", paths)
	}
}
