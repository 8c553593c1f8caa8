package mpdconf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const systemConfig = "/etc/mpd.conf"

// ErrConfigNotFound is returned by Find when no candidate location exists.
var ErrConfigNotFound = errors.New("failed to find MPD configuration file")

// Candidates returns the locations MPD itself searches for its
// configuration, in priority order. Empty directories are skipped.
func Candidates(configDir, homeDir string) []string {
	var paths []string
	if configDir != "" {
		paths = append(paths, filepath.Join(configDir, "mpd", "mpd.conf"))
	}
	if homeDir != "" {
		paths = append(paths,
			filepath.Join(homeDir, ".mpdconf"),
			filepath.Join(homeDir, ".mpd", "mpd.conf"),
		)
	}
	return append(paths, systemConfig)
}

// DefaultCandidates returns Candidates for the current user.
func DefaultCandidates() []string {
	// Either lookup may fail in a stripped-down environment; the
	// remaining locations are still worth trying.
	configDir, _ := os.UserConfigDir()
	homeDir, _ := os.UserHomeDir()
	return Candidates(configDir, homeDir)
}

// FindIn returns the first of paths that exists.
func FindIn(paths []string) (string, error) {
	for _, p := range paths {
		_, err := os.Stat(p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to check for `%s`: %w", p, err)
		}
	}
	return "", ErrConfigNotFound
}

// Find locates the MPD configuration file of the current user.
func Find() (string, error) {
	return FindIn(DefaultCandidates())
}
