package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const settingsFileName = "npd.toml"

// DefaultPath returns <user config dir>/npd/npd.toml, or "" if the user
// config directory cannot be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "npd", settingsFileName)
}

// Load reads settings from path on top of Default. A missing file is not an
// error. The result is validated.
func Load(path string) (Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}

	md, err := toml.DecodeFile(path, &s)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("config: no settings file, using defaults", "path", path)
			return Default(), nil
		}
		return Settings{}, fmt.Errorf("failed to parse settings file `%s`: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		slog.Warn("config: ignoring unknown setting", "path", path, "key", key.String())
	}

	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings in `%s`: %w", path, err)
	}
	return s, nil
}
