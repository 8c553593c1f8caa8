// Package watch implements the loop that follows MPD's state file and sends
// a notification whenever the current song changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/micro-nova/npd/internal/fswait"
	"github.com/micro-nova/npd/internal/mpdstate"
	"github.com/micro-nova/npd/internal/notify"
)

// Waiter blocks until a path is readable after a creation event.
type Waiter interface {
	Wait(ctx context.Context, path string) error
}

// Tracker remembers the last observed song.
type Tracker struct {
	previous string
	seen     bool
}

// Observe records the song found by the latest read and reports whether it
// should be announced: ok is false when no song was observed, which is never
// announced but still replaces the previous observation.
func (t *Tracker) Observe(song string, ok bool) bool {
	changed := ok != t.seen || song != t.previous
	t.previous, t.seen = song, ok
	return changed && ok
}

// Previous returns the last observed song, if any.
func (t *Tracker) Previous() (string, bool) {
	return t.previous, t.seen
}

// Loop follows a single MPD state file.
type Loop struct {
	path     string
	sub      Subscription
	waiter   Waiter
	notifier notify.Notifier
	parse    func(path string) (string, error)
	tracker  Tracker
}

// NewLoop returns a loop following the state file at path.
func NewLoop(path string, sub Subscription, waiter Waiter, notifier notify.Notifier) *Loop {
	return &Loop{
		path:     path,
		sub:      sub,
		waiter:   waiter,
		notifier: notifier,
		parse:    mpdstate.CurrentFile,
	}
}

// Run arms the watch, waits for the state file to be rewritten, and
// notifies when the current song changed, forever. It returns nil once ctx
// is cancelled and an error on the first failure of any step.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := l.sub.Arm(l.path); err != nil {
			return fmt.Errorf("failed to add file watch for `%s`: %w", l.path, err)
		}
		slog.Debug("watch: armed", "path", l.path)

		if err := l.sub.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to wait for file event on `%s`: %w", l.path, err)
		}

		if err := l.handleCreate(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// handleCreate runs once per creation event.
func (l *Loop) handleCreate(ctx context.Context) error {
	if err := l.waiter.Wait(ctx, l.path); err != nil {
		if errors.Is(err, fswait.ErrTimeout) {
			slog.Error("watch: state file vanished right after creation event", "path", l.path, "err", err)
		}
		return fmt.Errorf("failed to find MPD state file: %w", err)
	}

	current, err := l.parse(l.path)
	if err != nil {
		return fmt.Errorf("failed to parse MPD state file: %w", err)
	}

	if !l.tracker.Observe(current, true) {
		slog.Debug("watch: current song unchanged", "song", current)
		return nil
	}
	slog.Info("watch: now playing", "song", current)
	if _, err := l.notifier.Notify(ctx, current); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}
