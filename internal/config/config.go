// Package config handles loading npd's own settings.
//
// Settings live in an optional TOML file; a missing file means defaults.
// The MPD configuration itself is read by package mpdconf.
package config

import (
	"fmt"
	"time"

	"github.com/micro-nova/npd/internal/fswait"
	"github.com/micro-nova/npd/internal/notify"
)

// Notifier backends.
const (
	NotifierDBus = "dbus"
	NotifierGNTP = "gntp"
)

// Duration is a time.Duration read from a TOML string such as "5ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Settings is the daemon configuration.
type Settings struct {
	// MPDConfig overrides the search for mpd.conf when set.
	MPDConfig string `toml:"mpd_config"`
	// Notifier selects the backend: "dbus" or "gntp".
	Notifier string `toml:"notifier"`

	Notification Notification `toml:"notification"`
	Wait         Wait         `toml:"wait"`
	GNTP         GNTP         `toml:"gntp"`
}

type Notification struct {
	AppName    string `toml:"app_name"`
	ReplacesID uint32 `toml:"replaces_id"`
	TimeoutMS  int    `toml:"timeout_ms"`
}

// Wait bounds the wait for the state file after a creation event.
type Wait struct {
	PollInterval Duration `toml:"poll_interval"`
	MaxAttempts  int      `toml:"max_attempts"`
}

type GNTP struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Default returns the settings used when no file overrides them.
func Default() Settings {
	return Settings{
		Notifier: NotifierDBus,
		Notification: Notification{
			AppName:    notify.DefaultAppName,
			ReplacesID: notify.DefaultReplacesID,
			TimeoutMS:  int(notify.DefaultTimeout / time.Millisecond),
		},
		Wait: Wait{
			PollInterval: Duration{fswait.DefaultInterval},
			MaxAttempts:  fswait.DefaultMaxAttempts,
		},
		GNTP: GNTP{
			Host: "localhost",
			Port: 23053,
		},
	}
}

// Validate rejects settings the daemon cannot run with.
func (s *Settings) Validate() error {
	switch s.Notifier {
	case NotifierDBus, NotifierGNTP:
	default:
		return fmt.Errorf("unknown notifier %q (want %q or %q)", s.Notifier, NotifierDBus, NotifierGNTP)
	}
	if s.Notification.TimeoutMS < 0 {
		return fmt.Errorf("notification timeout_ms must not be negative, got %d", s.Notification.TimeoutMS)
	}
	if s.Wait.PollInterval.Duration <= 0 {
		return fmt.Errorf("wait poll_interval must be positive, got %s", s.Wait.PollInterval)
	}
	if s.Wait.MaxAttempts <= 0 {
		return fmt.Errorf("wait max_attempts must be positive, got %d", s.Wait.MaxAttempts)
	}
	if s.Notifier == NotifierGNTP && (s.GNTP.Port <= 0 || s.GNTP.Port > 65535) {
		return fmt.Errorf("gntp port out of range: %d", s.GNTP.Port)
	}
	return nil
}

// NotifyOptions converts the notification settings for package notify.
func (s *Settings) NotifyOptions() notify.Options {
	return notify.Options{
		AppName:    s.Notification.AppName,
		ReplacesID: s.Notification.ReplacesID,
		Timeout:    time.Duration(s.Notification.TimeoutMS) * time.Millisecond,
	}
}
