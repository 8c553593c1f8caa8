// Package mpdstate extracts the currently playing song from MPD's state file.
//
// The state file is a plain text dump. The lines of interest are
//
//	current: 6
//	...
//	playlist_begin
//	0:some/song.opus
//	...
//	6:the/current/song.opus
//	playlist_end
//
// The playlist block delimiters are not checked; the first line carrying the
// right index prefix after the `current:` line wins.
package mpdstate

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const currentPrefix = "current:"

// ErrNoCurrent is returned when the dump does not name a current song, or
// names an index missing from the playlist.
var ErrNoCurrent = errors.New("failed to find currently playing song in MPD state file contents")

// Current returns the URI of the currently playing song. The input is read
// in a single pass and reading stops as soon as the song is found.
func Current(r io.Reader) (string, error) {
	br := bufio.NewReader(r)
	// Empty until the current index has been seen.
	var songPrefix string
	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read state: %w", err)
		}

		if songPrefix == "" {
			if rest, ok := strings.CutPrefix(line, currentPrefix); ok {
				rest = strings.TrimSpace(rest)
				// ParseUint rejects an explicit plus sign; MPD never writes
				// one, but tolerate it rather than fail on hand-edited files.
				idx, perr := strconv.ParseUint(strings.TrimPrefix(rest, "+"), 10, 64)
				if perr != nil {
					return "", fmt.Errorf("failed to parse current song index `%s`: %w", rest, perr)
				}
				songPrefix = strconv.FormatUint(idx, 10) + ":"
			}
		} else if rest, ok := strings.CutPrefix(line, songPrefix); ok {
			return strings.TrimSpace(rest), nil
		}

		if err != nil {
			return "", ErrNoCurrent
		}
	}
}

// CurrentFile opens the state file at path and returns its current song.
func CurrentFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file `%s`: %w", path, err)
	}
	defer f.Close()
	return Current(f)
}
