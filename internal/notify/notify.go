// Package notify delivers "now playing" desktop notifications.
package notify

import (
	"context"
	"time"
)

// Defaults used when no settings override them.
const (
	DefaultAppName    = "npd"
	DefaultReplacesID = 1
	DefaultTimeout    = 5 * time.Second
)

// Notifier delivers a single summary line to the user.
// It returns the notification id assigned by the server, if any.
type Notifier interface {
	Notify(ctx context.Context, summary string) (uint32, error)
}

// Notification is the full set of arguments to a desktop notification, as
// accepted by DBus.Send. Notifier.Notify fills only the summary.
type Notification struct {
	AppName string
	// ReplacesID asks the server to replace an existing notification
	// with this id rather than stacking a new one. 0 means none.
	ReplacesID uint32
	Icon       string
	Summary    string
	Body       string
	Actions    []string
	Hints      map[string]any
	Timeout    time.Duration
}

// Options configures the notifiers in this package.
type Options struct {
	AppName    string
	ReplacesID uint32
	Timeout    time.Duration
}

func (o Options) withDefaults() Options {
	if o.AppName == "" {
		o.AppName = DefaultAppName
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// notification builds the Notification sent for summary.
func (o Options) notification(summary string) Notification {
	return Notification{
		AppName:    o.AppName,
		ReplacesID: o.ReplacesID,
		Summary:    summary,
		Actions:    []string{},
		Hints:      map[string]any{},
		Timeout:    o.Timeout,
	}
}
