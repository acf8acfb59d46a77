package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "grabbot/pkg/errors"
	"grabbot/pkg/logger"
)

// Operation is one attempt of retryable work
type Operation func() error

// OperationWithResult is one attempt of retryable work returning a value
type OperationWithResult[T any] func() (T, error)

// Config controls how Do paces and bounds attempts
type Config struct {
	// MaxAttempts bounds the total attempts; 0 means unlimited
	MaxAttempts int
	// Backoff decides the pause before each retry
	Backoff BackoffStrategy
	// RetryIf decides whether a failure is worth another attempt
	RetryIf func(error) bool
	// Context aborts the pause between attempts when cancelled
	Context context.Context
	// Logger records retry activity
	Logger logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.GetLogger(),
	}
}

// DefaultRetryIf retries transport-class failures and gives up on
// everything the taxonomy marks terminal
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Untyped errors get the benefit of the doubt
	return true
}

// Do runs op until it succeeds, the failure stops being retryable, the
// attempts run out, or the context ends during a pause
func Do(op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("operation recovered", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !cfg.RetryIf(err) {
			if cfg.Logger != nil {
				cfg.Logger.DebugWithFields("failure is terminal, not retrying", map[string]interface{}{
					"error": err.Error(),
				})
			}
			return err
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			break
		}

		delay := cfg.Backoff.NextDelay(attempt)
		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("retrying after failure", map[string]interface{}{
				"attempt":  attempt,
				"error":    err.Error(),
				"delay_ms": delay.Milliseconds(),
			})
		}
		if err := Wait(cfg.Context, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}

	if cfg.Logger != nil {
		cfg.Logger.ErrorWithFields("giving up after repeated failures", map[string]interface{}{
			"attempts":   cfg.MaxAttempts,
			"last_error": lastErr.Error(),
		})
	}
	return fmt.Errorf("gave up after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// DoWithResult runs an operation returning a value under the same policy
func DoWithResult[T any](op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)

	return result, err
}

// Retrier retries fetch-path operations, switching backoff by the typed
// error of the last failure so server trouble backs off harder than a
// flaky connection
type Retrier struct {
	MaxAttempts int
	Backoffs    *ErrorTypeBackoff
	Logger      logger.Logger
}

// NewRetrier creates a retrier with error-type aware backoff
func NewRetrier(maxAttempts int, log logger.Logger) *Retrier {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Retrier{
		MaxAttempts: maxAttempts,
		Backoffs:    NewErrorTypeBackoff(),
		Logger:      log,
	}
}

// Do runs op under the retrier's policy
func (r *Retrier) Do(ctx context.Context, op Operation) error {
	picker := &typedBackoff{backoffs: r.Backoffs}
	return Do(func() error {
		err := op()
		picker.observe(err)
		return err
	}, &Config{
		MaxAttempts: r.MaxAttempts,
		Backoff:     picker,
		RetryIf:     DefaultRetryIf,
		Context:     ctx,
		Logger:      r.Logger,
	})
}

// typedBackoff delegates to the strategy matching the last observed error
type typedBackoff struct {
	backoffs *ErrorTypeBackoff
	current  BackoffStrategy
}

func (tb *typedBackoff) observe(err error) {
	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		tb.current = tb.backoffs.GetBackoffForError(string(apiErr.Type))
		return
	}
	tb.current = tb.backoffs.DefaultBackoff
}

func (tb *typedBackoff) NextDelay(attempt int) time.Duration {
	if tb.current == nil {
		tb.current = tb.backoffs.DefaultBackoff
	}
	return tb.current.NextDelay(attempt)
}

func (tb *typedBackoff) Reset() {
	tb.current = nil
}
