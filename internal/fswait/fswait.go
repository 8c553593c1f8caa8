// Package fswait waits for a file to become visible after a creation event.
//
// On some systems an inotify creation event for a file can be delivered
// slightly before the file is reliably visible to stat/open. The cause is
// not understood, so rather than trusting the event we poll for a short,
// bounded time and give up loudly if the file never shows up.
package fswait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultInterval    = time.Millisecond
	DefaultMaxAttempts = 500
)

// ErrTimeout is returned when the file did not appear within the attempt budget.
var ErrTimeout = errors.New("file did not appear")

// Waiter polls for a path at a fixed interval up to a fixed number of checks.
type Waiter struct {
	Interval    time.Duration
	MaxAttempts int
	// Check reports whether the path is available; nil means Readable.
	Check func(path string) error
}

// New returns a Waiter with the given interval and attempt cap. Non-positive
// values select the defaults.
func New(interval time.Duration, maxAttempts int) *Waiter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Waiter{Interval: interval, MaxAttempts: maxAttempts}
}

// Wait blocks until path is available. It checks at most MaxAttempts times,
// pausing Interval between checks, and returns an error wrapping ErrTimeout
// if every check failed.
func (w *Waiter) Wait(ctx context.Context, path string) error {
	check := w.Check
	if check == nil {
		check = Readable
	}
	limiter := rate.NewLimiter(rate.Every(w.Interval), 1)
	// Drain the initial token so the first retry is spaced like the rest.
	limiter.Allow()

	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = check(path)
		if lastErr == nil {
			return nil
		}
		if attempt >= w.MaxAttempts {
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("failed to wait for `%s`: %w", path, err)
		}
	}
	return fmt.Errorf("failed to find `%s` after %d attempts: %w (last error: %v)",
		path, w.MaxAttempts, ErrTimeout, lastErr)
}
