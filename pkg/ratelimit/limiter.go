package ratelimit

import (
	"sync"
	"time"
)

// Limiter paces repeated operations against an external service
type Limiter interface {
	// Allow reports whether one more operation may proceed now
	Allow() bool
	// Wait blocks until an operation may proceed
	Wait()
	// Reset clears accumulated pacing state
	Reset()
}

// TokenBucket grants a burst of operations and then refuses until the
// bucket refills. Outbound Telegram calls go through one of these so a
// ten-image album does not trip the send rate
type TokenBucket struct {
	mu          sync.Mutex
	capacity    int
	remaining   int
	refillEvery time.Duration
	refilledAt  time.Time
}

// NewTokenBucket creates a bucket of capacity tokens refilled in full
// every refillEvery
func NewTokenBucket(capacity int, refillEvery time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:    capacity,
		remaining:   capacity,
		refillEvery: refillEvery,
		refilledAt:  time.Now(),
	}
}

// Allow takes a token if one is available
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if time.Since(tb.refilledAt) >= tb.refillEvery {
		tb.remaining = tb.capacity
		tb.refilledAt = time.Now()
	}

	if tb.remaining == 0 {
		return false
	}
	tb.remaining--
	return true
}

// Wait sleeps until a token can be taken
func (tb *TokenBucket) Wait() {
	for !tb.Allow() {
		tb.mu.Lock()
		pause := tb.refillEvery - time.Since(tb.refilledAt)
		tb.mu.Unlock()

		if pause <= 0 {
			pause = 50 * time.Millisecond
		}
		time.Sleep(pause)
	}
}

// Reset refills the bucket immediately
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.remaining = tb.capacity
	tb.refilledAt = time.Now()
}

// SlidingWindow admits at most budget operations inside any window-sized
// span. The scrape strategies pace their image downloads through one so a
// large gallery does not hammer the source host
type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	budget int
	stamps []time.Time
}

// NewSlidingWindow creates a window admitting budget operations per window
func NewSlidingWindow(budget int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		window: window,
		budget: budget,
		stamps: make([]time.Time, 0, budget),
	}
}

// Allow records the operation if the window has room
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.prune(now)

	if len(sw.stamps) >= sw.budget {
		return false
	}
	sw.stamps = append(sw.stamps, now)
	return true
}

// Wait blocks until the oldest recorded operation leaves the window
func (sw *SlidingWindow) Wait() {
	for !sw.Allow() {
		sw.mu.Lock()
		pause := 50 * time.Millisecond
		if len(sw.stamps) > 0 {
			if until := sw.window - time.Since(sw.stamps[0]); until > 0 {
				pause = until
			}
		}
		sw.mu.Unlock()
		time.Sleep(pause)
	}
}

// Reset forgets all recorded operations
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.stamps = sw.stamps[:0]
}

// prune drops stamps that have aged out of the window, reusing the
// backing array
func (sw *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-sw.window)

	aged := 0
	for aged < len(sw.stamps) && sw.stamps[aged].Before(cutoff) {
		aged++
	}
	if aged > 0 {
		n := copy(sw.stamps, sw.stamps[aged:])
		sw.stamps = sw.stamps[:n]
	}
}
