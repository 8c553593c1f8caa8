package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cumulus13/go-gntp"
)

const (
	gntpSongChange = "song_change"
	gntpTimeout    = 10 * time.Second
)

// GNTP sends notifications to a Growl-compatible server.
// GNTP has no notion of notification ids, so Notify always returns 0.
type GNTP struct {
	opts       Options
	client     *gntp.Client
	registered bool
}

// NewGNTP returns a GNTP notifier talking to host:port. Registration with the
// server happens on the first notification.
func NewGNTP(opts Options, host string, port int) *GNTP {
	opts = opts.withDefaults()
	client := gntp.NewClient(opts.AppName).
		WithHost(host).
		WithPort(port).
		WithTimeout(gntpTimeout)
	return &GNTP{opts: opts, client: client}
}

// Notify sends summary as the notification title.
func (g *GNTP) Notify(ctx context.Context, summary string) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !g.registered {
		songChange := gntp.NewNotificationType(gntpSongChange).
			WithDisplayName("Song Changed")
		if err := g.client.Register([]*gntp.NotificationType{songChange}); err != nil {
			return 0, fmt.Errorf("failed to register with GNTP server: %w", err)
		}
		g.registered = true
	}

	if err := g.client.NotifyWithOptions(gntpSongChange, summary, "", gntp.NewNotifyOptions()); err != nil {
		return 0, fmt.Errorf("failed to send GNTP notification: %w", err)
	}
	slog.Debug("notify: delivered via GNTP", "summary", summary)
	return 0, nil
}

var _ Notifier = (*GNTP)(nil)
