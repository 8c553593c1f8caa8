// Package mpdconf reads the MPD daemon configuration file.
//
// Only as much of the mpd.conf grammar is understood as is needed to pull
// out simple "key value" directives. Blocks such as `input { ... }` are not
// interpreted; their inner lines simply show up as ordinary directives.
package mpdconf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoStateFile is returned when the configuration lacks a state_file directive.
var ErrNoStateFile = errors.New("MPD configuration does not specify `state_file`")

// Values maps directive names to their (unquoted) values.
type Values map[string]string

// StateFile returns the value of the state_file directive. The path is used
// verbatim; no `~` or environment variable expansion is performed.
func (v Values) StateFile() (string, error) {
	path, ok := v["state_file"]
	if !ok {
		return "", ErrNoStateFile
	}
	return path, nil
}

// Parse reads configuration text from r.
//
// Everything from the first `#` on a line is treated as a comment, even
// when the `#` sits inside a quoted value. Lines that do not consist of a key
// followed by whitespace and a value are skipped. A later directive with the
// same key overwrites an earlier one.
func Parse(r io.Reader) (Values, error) {
	values := make(Values)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read configuration: %w", err)
		}
		parseLine(values, line)
		if err != nil {
			return values, nil
		}
	}
}

func parseLine(values Values, line string) {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)

	idx := strings.IndexFunc(line, isSpace)
	if idx < 0 {
		return
	}
	key := line[:idx]
	value := strings.TrimSpace(line[idx:])
	// Only a single quote on either side, unlike strings.Trim.
	value = strings.TrimPrefix(value, `"`)
	value = strings.TrimSuffix(value, `"`)
	values[key] = value
}

// ParseFile opens and parses the configuration file at path.
func ParseFile(path string) (Values, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file `%s`: %w", path, err)
	}
	defer f.Close()

	values, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse `%s`: %w", path, err)
	}
	return values, nil
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
