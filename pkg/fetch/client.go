// Package fetch provides the HTTP client used by the scraping strategies:
// browser-like headers, bounded response bodies, streaming downloads into
// a staging scope, and bounded retries for transient failures.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"grabbot/pkg/config"
	"grabbot/pkg/errors"
	"grabbot/pkg/logger"
	"grabbot/pkg/retry"
	"grabbot/pkg/staging"
)

// Client is an HTTP client tuned for scraping media pages
type Client struct {
	httpClient   *http.Client
	headers      map[string]string
	maxBodyBytes int64
	retrier      *retry.Retrier
	logger       logger.Logger
}

// NewClient creates a fetch client from the scrape configuration
func NewClient(cfg *config.ScrapeConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		headers: map[string]string{
			"User-Agent":      cfg.UserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
			"Sec-Fetch-Dest":  "document",
			"Sec-Fetch-Mode":  "navigate",
			"Sec-Fetch-Site":  "none",
			"Sec-Fetch-User":  "?1",
		},
		maxBodyBytes: cfg.MaxBodyBytes,
		retrier:      retry.NewRetrier(attempts, log),
		logger:       log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Get performs a GET request with the configured headers
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeUnknown, fmt.Sprintf("failed to create request: %v", err))
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errors.New(errors.ErrorTypeNetwork, fmt.Sprintf("network error: %v", err))
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      url,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// FetchHTML retrieves a page body, capped at the configured size.
// Network and server errors are retried up to the configured attempts.
func (c *Client) FetchHTML(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := c.retrier.Do(ctx, func() error {
		resp, err := c.Get(ctx, url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := c.checkResponseStatus(resp); err != nil {
			return err
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
		if err != nil {
			return errors.New(errors.ErrorTypeNetwork, fmt.Sprintf("failed to read response body: %v", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

// DownloadToFile streams a URL into the staging scope. Results smaller
// than minBytes are treated as placeholder images and discarded; the
// empty path signals the caller to skip the candidate.
func (c *Client) DownloadToFile(ctx context.Context, url string, scope *staging.Scope, name string, minBytes int64) (string, int64, error) {
	var path string
	var size int64
	err := c.retrier.Do(ctx, func() error {
		resp, err := c.Get(ctx, url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := c.checkResponseStatus(resp); err != nil {
			return err
		}

		// Scope.Save truncates an existing file of the same name, so a
		// retried attempt overwrites the partial result of the last one.
		path, size, err = scope.Save(name, resp.Body)
		if err != nil {
			return errors.New(errors.ErrorTypeFilesystem, fmt.Sprintf("failed to stage download: %v", err))
		}
		return nil
	})
	if err != nil {
		return "", 0, err
	}

	if size < minBytes {
		c.logger.DebugWithFields("discarding undersized download", map[string]interface{}{
			"url":  url,
			"size": size,
			"min":  minBytes,
		})
		if err := scope.Remove(path); err != nil {
			c.logger.WithError(err).Warn("failed to remove undersized download")
		}
		return "", 0, nil
	}

	return path, size, nil
}

// checkResponseStatus maps HTTP status codes onto the error taxonomy
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &errors.Error{
			Type:    errors.ErrorTypeUnavailable,
			Message: "source requires authentication",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return &errors.Error{
			Type:    errors.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return &errors.Error{
			Type:    errors.ErrorTypeServerError,
			Message: fmt.Sprintf("server returned status %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	case resp.StatusCode >= 400:
		return &errors.Error{
			Type:    errors.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	default:
		return nil
	}
}
