// Command npd, the Now Playing Daemon, sends a desktop notification whenever
// the song currently played by MPD changes.
//
// It follows MPD's state_file rather than talking to MPD over its protocol,
// so it works without any network access to the player.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/micro-nova/npd/internal/config"
	"github.com/micro-nova/npd/internal/fswait"
	"github.com/micro-nova/npd/internal/mpdconf"
	"github.com/micro-nova/npd/internal/notify"
	"github.com/micro-nova/npd/internal/watch"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "npd: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// options holds the command line.
type options struct {
	debug     bool
	mpdConfig string
	settings  string
	notifier  string
	version   bool
}

// parseArgs parses args. It returns flag.ErrHelp after printing usage when
// help was requested.
func parseArgs(args []string, out io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("npd", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")
	fs.StringVarP(&opts.mpdConfig, "config", "c", "", "MPD configuration file (default: search the usual locations)")
	fs.StringVar(&opts.settings, "settings", config.DefaultPath(), "npd settings file")
	fs.StringVar(&opts.notifier, "notifier", "", "notification backend: dbus or gntp (default: from settings)")
	fs.BoolVarP(&opts.version, "version", "V", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(out, "npd sends notifications when MPD plays a new song.\n\nUsage:\n  npd [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseArgs(args, stdout)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.version {
		fmt.Fprintf(stdout, "npd %s\n", version)
		return nil
	}

	logLevel := slog.LevelInfo
	if opts.debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel})))

	settings, err := config.Load(opts.settings)
	if err != nil {
		return err
	}
	if opts.mpdConfig != "" {
		settings.MPDConfig = opts.mpdConfig
	}
	if opts.notifier != "" {
		settings.Notifier = opts.notifier
		if err := settings.Validate(); err != nil {
			return err
		}
	}

	stateFile, err := locateStateFile(settings.MPDConfig)
	if err != nil {
		return err
	}

	notifier := newNotifier(&settings)

	sub, err := watch.NewFSSubscription()
	if err != nil {
		return err
	}
	defer sub.Close()

	waiter := fswait.New(settings.Wait.PollInterval.Duration, settings.Wait.MaxAttempts)

	slog.Info("npd: watching MPD state file", "path", stateFile, "notifier", settings.Notifier, "version", version)
	return watch.NewLoop(stateFile, sub, waiter, notifier).Run(ctx)
}

// locateStateFile reads the MPD configuration at confPath, or at the first
// of the usual locations when confPath is empty, and returns its state_file.
func locateStateFile(confPath string) (string, error) {
	if confPath == "" {
		var err error
		if confPath, err = mpdconf.Find(); err != nil {
			return "", err
		}
	}
	slog.Debug("npd: using MPD configuration", "path", confPath)

	values, err := mpdconf.ParseFile(confPath)
	if err != nil {
		return "", fmt.Errorf("failed to parse MPD config file: %w", err)
	}
	return values.StateFile()
}

func newNotifier(s *config.Settings) notify.Notifier {
	if s.Notifier == config.NotifierGNTP {
		return notify.NewGNTP(s.NotifyOptions(), s.GNTP.Host, s.GNTP.Port)
	}
	return notify.NewDBus(s.NotifyOptions())
}
