package downloader

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"grabbot/pkg/logger"
	"grabbot/pkg/ratelimit"
	"grabbot/pkg/staging"
)

// Job represents a single candidate image download
type Job struct {
	URL  string
	Name string
}

// Result represents the outcome of a download job
type Result struct {
	Job      Job
	Path     string
	Size     int64
	Success  bool
	Error    error
	Duration time.Duration
}

// ImageFetcher downloads a URL into a staging scope, discarding results
// under minBytes. An empty path with a nil error means the candidate was
// a placeholder and should be skipped.
type ImageFetcher interface {
	DownloadToFile(ctx context.Context, url string, scope *staging.Scope, name string, minBytes int64) (string, int64, error)
}

// Pool manages concurrent image download workers for one request
type Pool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     ImageFetcher
	scope       *staging.Scope
	minBytes    int64
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
}

// NewPool creates a download pool writing into the given scope. Workers
// inherit ctx, so cancelling the request aborts in-flight downloads
func NewPool(
	ctx context.Context,
	numWorkers int,
	fetcher ImageFetcher,
	scope *staging.Scope,
	minBytes int64,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) *Pool {
	ctx, cancel := context.WithCancel(ctx)

	if log == nil {
		log = logger.GetLogger()
	}

	return &Pool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		fetcher:     fetcher,
		scope:       scope,
		minBytes:    minBytes,
		rateLimiter: rateLimiter,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (p *Pool) Start() {
	p.logger.DebugWithFields("Starting download pool", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop gracefully shuts down the pool
func (p *Pool) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()
}

// Submit adds a new download job to the queue
func (p *Pool) Submit(job Job) error {
	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("download pool is shutting down")
	}
}

// Results returns the result channel for consuming download results
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		result := p.processJob(job, id)

		select {
		case p.resultQueue <- result:
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) processJob(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	if p.rateLimiter != nil && !p.rateLimiter.Allow() {
		p.rateLimiter.Wait()
	}

	path, size, err := p.fetcher.DownloadToFile(p.ctx, job.URL, p.scope, job.Name, p.minBytes)
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		p.logger.ErrorWithFields("Worker failed to download image", map[string]interface{}{
			"worker_id": workerID,
			"url":       job.URL,
			"error":     err.Error(),
			"duration":  result.Duration,
		})
		return result
	}

	// Empty path means the fetcher discarded a placeholder.
	result.Path = path
	result.Size = size
	result.Success = path != ""

	p.logger.DebugWithFields("Worker finished image job", map[string]interface{}{
		"worker_id": workerID,
		"url":       job.URL,
		"kept":      result.Success,
		"size":      size,
		"duration":  result.Duration,
	})

	return result
}

// FetchAll downloads every candidate URL through a fresh pool and returns
// the staged paths in candidate order. Individual download failures drop
// the candidate; only a total absence of survivors is reported upstream
// by the caller.
func FetchAll(
	ctx context.Context,
	urls []string,
	numWorkers int,
	fetcher ImageFetcher,
	scope *staging.Scope,
	minBytes int64,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) []string {
	if len(urls) == 0 {
		return nil
	}
	if numWorkers > len(urls) {
		numWorkers = len(urls)
	}

	pool := NewPool(ctx, numWorkers, fetcher, scope, minBytes, rateLimiter, log)
	pool.Start()

	go func() {
		defer pool.Stop()
		for i, url := range urls {
			job := Job{URL: url, Name: fmt.Sprintf("image_%03d%s", i, extOf(url))}
			if err := pool.Submit(job); err != nil {
				return
			}
		}
	}()

	indexed := make(map[string]int, len(urls))
	for i, url := range urls {
		indexed[url] = i
	}

	type kept struct {
		order int
		path  string
	}
	var survivors []kept
	for result := range pool.Results() {
		if ctx.Err() != nil {
			continue
		}
		if result.Success {
			survivors = append(survivors, kept{order: indexed[result.Job.URL], path: result.Path})
		}
	}

	sort.Slice(survivors, func(i, j int) bool { return survivors[i].order < survivors[j].order })

	paths := make([]string, 0, len(survivors))
	for _, s := range survivors {
		paths = append(paths, s.path)
	}
	return paths
}

func extOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".jpg"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" || len(ext) > 5 {
		return ".jpg"
	}
	return ext
}
