package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/micro-nova/npd/internal/fswait"
)

func TestTracker_ChangeDetection(t *testing.T) {
	type obs struct {
		song string
		ok   bool
	}
	seq := []obs{{"", false}, {"a", true}, {"a", true}, {"b", true}, {"b", true}, {"a", true}}
	want := []bool{false, true, false, true, false, true}

	var tr Tracker
	notified := 0
	for i, o := range seq {
		got := tr.Observe(o.song, o.ok)
		if got != want[i] {
			t.Errorf("Observe(%q, %v) #%d = %v, want %v", o.song, o.ok, i, got, want[i])
		}
		if got {
			notified++
		}
	}
	if notified != 3 {
		t.Errorf("notifications = %d, want 3", notified)
	}
	if prev, ok := tr.Previous(); !ok || prev != "a" {
		t.Errorf("Previous() = %q, %v; want a, true", prev, ok)
	}
}

func TestTracker_AbsentNeverNotifies(t *testing.T) {
	var tr Tracker
	if tr.Observe("", false) {
		t.Error("absent first observation notified")
	}
	tr.Observe("a", true)
	if tr.Observe("", false) {
		t.Error("absent observation notified")
	}
	if !tr.Observe("a", true) {
		t.Error("absent -> a should notify")
	}
}

// ─── fakes ──────────────────────────────────────────────────────────────────

var errDone = errors.New("no more events")

type fakeSub struct {
	events int // events left to deliver
	armed  int
	waits  int
	armErr error
}

func (f *fakeSub) Arm(string) error {
	if f.armErr != nil {
		return f.armErr
	}
	f.armed++
	return nil
}

func (f *fakeSub) Wait(ctx context.Context) error {
	f.waits++
	if f.waits > f.armed {
		return errors.New("wait without arm")
	}
	if f.events == 0 {
		return errDone
	}
	f.events--
	return nil
}

func (f *fakeSub) Close() error { return nil }

type fakeWaiter struct{ err error }

func (f fakeWaiter) Wait(context.Context, string) error { return f.err }

type fakeNotifier struct {
	summaries []string
	err       error
	ch        chan string
}

func (f *fakeNotifier) Notify(_ context.Context, summary string) (uint32, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.summaries = append(f.summaries, summary)
	if f.ch != nil {
		f.ch <- summary
	}
	return uint32(len(f.summaries)), nil
}

func newFakeLoop(songs []string, n *fakeNotifier) (*Loop, *fakeSub) {
	sub := &fakeSub{events: len(songs)}
	l := NewLoop("/var/lib/mpd/state", sub, fakeWaiter{}, n)
	i := 0
	l.parse = func(string) (string, error) {
		s := songs[i]
		i++
		return s, nil
	}
	return l, sub
}

// ─── Loop ───────────────────────────────────────────────────────────────────

func TestLoop_NotifiesOncePerChange(t *testing.T) {
	n := &fakeNotifier{}
	l, sub := newFakeLoop([]string{"a", "a", "b", "b", "a"}, n)

	err := l.Run(context.Background())
	if !errors.Is(err, errDone) {
		t.Fatalf("Run() error = %v, want errDone", err)
	}
	want := []string{"a", "b", "a"}
	if !reflect.DeepEqual(n.summaries, want) {
		t.Errorf("notifications = %v, want %v", n.summaries, want)
	}
	// One arm per cycle plus the final one.
	if sub.armed != 6 {
		t.Errorf("armed %d times, want 6", sub.armed)
	}
}

func TestLoop_ArmError(t *testing.T) {
	armErr := errors.New("no such directory")
	l := NewLoop("/x/state", &fakeSub{armErr: armErr}, fakeWaiter{}, &fakeNotifier{})
	if err := l.Run(context.Background()); !errors.Is(err, armErr) {
		t.Errorf("Run() error = %v, want %v", err, armErr)
	}
}

func TestLoop_MaterializationTimeoutIsFatal(t *testing.T) {
	n := &fakeNotifier{}
	timeout := fmt.Errorf("gone: %w", fswait.ErrTimeout)
	l := NewLoop("/x/state", &fakeSub{events: 3}, fakeWaiter{err: timeout}, n)
	l.parse = func(string) (string, error) { return "a", nil }

	err := l.Run(context.Background())
	if !errors.Is(err, fswait.ErrTimeout) {
		t.Errorf("Run() error = %v, want ErrTimeout", err)
	}
	if len(n.summaries) != 0 {
		t.Errorf("notified %v despite timeout", n.summaries)
	}
}

func TestLoop_ParseErrorIsFatal(t *testing.T) {
	parseErr := errors.New("corrupt")
	l := NewLoop("/x/state", &fakeSub{events: 2}, fakeWaiter{}, &fakeNotifier{})
	l.parse = func(string) (string, error) { return "", parseErr }

	if err := l.Run(context.Background()); !errors.Is(err, parseErr) {
		t.Errorf("Run() error = %v, want %v", err, parseErr)
	}
}

func TestLoop_NotifyErrorIsFatal(t *testing.T) {
	notifyErr := errors.New("no notification daemon")
	l, _ := newFakeLoop([]string{"a", "b"}, &fakeNotifier{err: notifyErr})
	if err := l.Run(context.Background()); !errors.Is(err, notifyErr) {
		t.Errorf("Run() error = %v, want %v", err, notifyErr)
	}
}

// ─── fsnotify end to end ────────────────────────────────────────────────────

// replaceFile writes data next to path and renames it into place, the way
// MPD saves its state file.
func replaceFile(t *testing.T, path, data string) {
	t.Helper()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("Rename: %v", err)
	}
}

func stateWith(song string) string {
	return fmt.Sprintf("state: play\ncurrent: 1\nplaylist_begin\n0:other.opus\n1:%s\nplaylist_end\n", song)
}

func TestFSSubscription_CreateEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	sub, err := NewFSSubscription()
	if err != nil {
		t.Fatalf("NewFSSubscription: %v", err)
	}
	defer sub.Close()

	if err := sub.Arm(path); err != nil {
		t.Fatalf("Arm() error = %v", err)
	}
	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(path+"-other", nil, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	replaceFile(t, path, "x")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := sub.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	// A creation while nobody waits is queued for the next Wait.
	replaceFile(t, path, "y")
	if err := sub.Arm(path); err != nil {
		t.Fatalf("re-Arm() error = %v", err)
	}
	if err := sub.Wait(ctx); err != nil {
		t.Fatalf("Wait() after queued creation error = %v", err)
	}
}

func TestFSSubscription_NotArmed(t *testing.T) {
	sub, err := NewFSSubscription()
	if err != nil {
		t.Fatalf("NewFSSubscription: %v", err)
	}
	defer sub.Close()
	if err := sub.Wait(context.Background()); err == nil {
		t.Error("Wait() before Arm should fail")
	}
}

func TestFSSubscription_OverflowTriggers(t *testing.T) {
	sub, err := NewFSSubscription()
	if err != nil {
		t.Fatalf("NewFSSubscription: %v", err)
	}
	defer sub.Close()
	if err := sub.Arm(filepath.Join(t.TempDir(), "state")); err != nil {
		t.Fatalf("Arm() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	go func() { sub.watcher.Errors <- fsnotify.ErrEventOverflow }()
	if err := sub.Wait(ctx); err != nil {
		t.Errorf("Wait() on overflow error = %v, want nil", err)
	}

	watchErr := errors.New("inotify failure")
	go func() { sub.watcher.Errors <- watchErr }()
	if err := sub.Wait(ctx); !errors.Is(err, watchErr) {
		t.Errorf("Wait() error = %v, want %v", err, watchErr)
	}
}

func TestFSSubscription_ContextCancel(t *testing.T) {
	sub, err := NewFSSubscription()
	if err != nil {
		t.Fatalf("NewFSSubscription: %v", err)
	}
	defer sub.Close()
	if err := sub.Arm(filepath.Join(t.TempDir(), "state")); err != nil {
		t.Fatalf("Arm() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := sub.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}

func TestLoop_EndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	sub, err := NewFSSubscription()
	if err != nil {
		t.Fatalf("NewFSSubscription: %v", err)
	}
	defer sub.Close()

	n := &fakeNotifier{ch: make(chan string, 16)}
	l := NewLoop(path, sub, fswait.New(time.Millisecond, 500), n)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	// The loop may not be armed yet, so keep rewriting until it notices.
	expect := func(song string) {
		t.Helper()
		deadline := time.After(5 * time.Second)
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case got := <-n.ch:
				if got != song {
					t.Fatalf("notified %q, want %q", got, song)
				}
				return
			case <-tick.C:
				replaceFile(t, path, stateWith(song))
			case <-deadline:
				t.Fatalf("no notification for %q", song)
			}
		}
	}
	expect("a.opus")
	expect("b.opus")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() after cancel = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

// armSignal reports the first Arm, after which creations are observed.
type armSignal struct {
	Subscription
	armed chan struct{}
	once  sync.Once
}

func (a *armSignal) Arm(path string) error {
	err := a.Subscription.Arm(path)
	a.once.Do(func() { close(a.armed) })
	return err
}

// rewritingNotifier replaces the state file while delivering its first
// notification, simulating MPD switching songs mid-cycle.
type rewritingNotifier struct {
	path  string
	next  string
	calls int
	ch    chan string
}

func (r *rewritingNotifier) Notify(_ context.Context, summary string) (uint32, error) {
	r.calls++
	if r.calls == 1 {
		tmp := r.path + ".tmp"
		if err := os.WriteFile(tmp, []byte(stateWith(r.next)), 0644); err != nil {
			return 0, err
		}
		if err := os.Rename(tmp, r.path); err != nil {
			return 0, err
		}
	}
	r.ch <- summary
	return uint32(r.calls), nil
}

func TestLoop_ChangeDuringNotificationIsAnnounced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	fsSub, err := NewFSSubscription()
	if err != nil {
		t.Fatalf("NewFSSubscription: %v", err)
	}
	defer fsSub.Close()
	sub := &armSignal{Subscription: fsSub, armed: make(chan struct{})}

	n := &rewritingNotifier{path: path, next: "b.opus", ch: make(chan string, 4)}
	l := NewLoop(path, sub, fswait.New(time.Millisecond, 500), n)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case <-sub.armed:
	case <-time.After(3 * time.Second):
		t.Fatal("loop never armed")
	}
	// Written exactly once; the second song is written by the notifier.
	replaceFile(t, path, stateWith("a.opus"))

	for _, want := range []string{"a.opus", "b.opus"} {
		select {
		case got := <-n.ch:
			if got != want {
				t.Fatalf("notified %q, want %q", got, want)
			}
		case err := <-done:
			t.Fatalf("Run() returned early: %v", err)
		case <-time.After(3 * time.Second):
			t.Fatalf("no notification for %q", want)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() after cancel = %v, want nil", err)
	}
}
