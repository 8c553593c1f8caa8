package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod = "org.freedesktop.Notifications.Notify"
)

// caller is the part of dbus.BusObject used here.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DBus sends notifications through the freedesktop notification service on
// the session bus.
type DBus struct {
	opts Options
	// connect returns the notification object and a function releasing it.
	connect func() (caller, func() error, error)
}

// NewDBus returns a D-Bus notifier.
func NewDBus(opts Options) *DBus {
	return &DBus{
		opts:    opts.withDefaults(),
		connect: sessionNotifications,
	}
}

// sessionNotifications opens a fresh session bus connection. A connection is
// made per notification since notifications are rare and the session bus
// may restart underneath a long-running daemon.
func sessionNotifications() (caller, func() error, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to establish D-Bus session connection: %w", err)
	}
	return conn.Object(notifyDest, notifyPath), conn.Close, nil
}

// Notify sends summary as a notification and returns the server-assigned id.
// It is Send with every field other than the summary taken from the options.
func (d *DBus) Notify(ctx context.Context, summary string) (uint32, error) {
	return d.Send(ctx, d.opts.notification(summary))
}

// Send delivers n as given and returns the server-assigned id. It is the
// general entry point for callers that need an icon, a body, hints or
// actions; options passed to NewDBus are not applied.
func (d *DBus) Send(ctx context.Context, n Notification) (uint32, error) {
	obj, closeConn, err := d.connect()
	if err != nil {
		return 0, err
	}
	defer closeConn()

	hints := make(map[string]dbus.Variant, len(n.Hints))
	for k, v := range n.Hints {
		hints[k] = dbus.MakeVariant(v)
	}
	actions := n.Actions
	if actions == nil {
		actions = []string{}
	}

	var id uint32
	err = obj.CallWithContext(ctx, notifyMethod, 0,
		n.AppName,
		n.ReplacesID,
		n.Icon,
		n.Summary,
		n.Body,
		actions,
		hints,
		int32(n.Timeout.Milliseconds()),
	).Store(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to call %s: %w", notifyMethod, err)
	}
	slog.Debug("notify: delivered via D-Bus", "id", id, "summary", n.Summary)
	return id, nil
}

var _ Notifier = (*DBus)(nil)
