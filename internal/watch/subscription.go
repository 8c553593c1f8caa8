package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Subscription delivers "created" events for a single path.
// Callers re-arm before every Wait; creations seen between two Waits must
// not be lost.
type Subscription interface {
	// Arm registers interest in the creation of path.
	Arm(path string) error
	// Wait blocks until the armed path is created or ctx is done.
	Wait(ctx context.Context) error
	Close() error
}

// FSSubscription is a Subscription backed by fsnotify.
//
// fsnotify cannot watch a path that does not exist yet, and a watch on a
// file is lost once the file is replaced. MPD replaces its state file
// wholesale, so the parent directory is watched and events are filtered by
// name. A rename onto the path is reported as a Create.
type FSSubscription struct {
	watcher *fsnotify.Watcher
	dir     string
	name    string
}

// NewFSSubscription creates an unarmed subscription.
func NewFSSubscription() (*FSSubscription, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &FSSubscription{watcher: w}, nil
}

// Arm watches the directory containing path. The directory watch stays
// registered across cycles, so creations that happen while the caller is
// busy are queued and reported by the next Wait.
func (s *FSSubscription) Arm(path string) error {
	name := filepath.Clean(path)
	dir := filepath.Dir(name)
	// Adding an already watched directory is a no-op.
	if err := s.watcher.Add(dir); err != nil {
		return err
	}
	if s.dir != "" && s.dir != dir {
		if err := s.watcher.Remove(s.dir); err != nil {
			slog.Debug("watch: failed to remove watch", "path", s.dir, "err", err)
		}
	}
	s.dir = dir
	s.name = name
	return nil
}

// Wait returns once a Create event for the armed path has been seen. A
// dropped-event overflow also counts, since the creation may be among the
// lost events.
func (s *FSSubscription) Wait(ctx context.Context) error {
	if s.dir == "" {
		return fmt.Errorf("subscription is not armed")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-s.watcher.Events:
			if !ok {
				return fmt.Errorf("file watcher closed")
			}
			if event.Has(fsnotify.Create) && filepath.Clean(event.Name) == s.name {
				return nil
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return fmt.Errorf("file watcher closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				slog.Warn("watch: event queue overflowed, rereading state file", "path", s.name)
				return nil
			}
			return err
		}
	}
}

// Close releases the underlying watcher and its watch.
func (s *FSSubscription) Close() error {
	return s.watcher.Close()
}

var _ Subscription = (*FSSubscription)(nil)
