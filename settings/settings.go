// Package settings persists the chat client configuration: the identity to
// register under and the relay server address.
//
// Settings live in a JSON file under the user's configuration directory
// (x-ferris-say/x-ferris-say.json), and individual fields can be overridden
// through X_FERRIS_SAY_USERNAME and X_FERRIS_SAY_SERVER environment
// variables. Empty values mean "not configured"; the client core never
// attempts a connection in that state.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	appDirName = "x-ferris-say"
	fileName   = "x-ferris-say.json"

	envUsername = "X_FERRIS_SAY_USERNAME"
	envServer   = "X_FERRIS_SAY_SERVER"
)

// ErrSettingsNotFound reports that no settings file exists at the given path.
var ErrSettingsNotFound = errors.New("settings file not found")

// Settings is the persisted client configuration.
type Settings struct {
	Username string `json:"username"`
	Server   string `json:"server"`
}

// New builds a Settings value.
func New(username, server string) Settings {
	return Settings{Username: username, Server: server}
}

// IsConfigured reports whether both fields are present.
func (s Settings) IsConfigured() bool {
	return s.Username != "" && s.Server != ""
}

// DefaultPath returns the per-user settings file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config directory: %w", err)
	}
	return filepath.Join(dir, appDirName, fileName), nil
}

// Load reads settings from path and applies environment overrides. A missing
// file yields an error wrapping ErrSettingsNotFound.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Settings{}, fmt.Errorf("%w: %s", ErrSettingsNotFound, path)
		}
		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings file %s: %w", path, err)
	}

	return applyEnv(s), nil
}

// LoadDefault reads settings from the per-user location.
func LoadDefault() (Settings, error) {
	path, err := DefaultPath()
	if err != nil {
		return Settings{}, err
	}
	return Load(path)
}

// FromEnv builds settings from environment variables alone.
func FromEnv() Settings {
	return applyEnv(Settings{})
}

func applyEnv(s Settings) Settings {
	if v := os.Getenv(envUsername); v != "" {
		s.Username = v
	}
	if v := os.Getenv(envServer); v != "" {
		s.Server = v
	}
	return s
}

// Save writes the settings as JSON to path, creating parent directories as
// needed.
func (s Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}

// SaveDefault writes the settings to the per-user location and returns the
// path it wrote to.
func (s Settings) SaveDefault() (string, error) {
	path, err := DefaultPath()
	if err != nil {
		return "", err
	}
	if err := s.Save(path); err != nil {
		return "", err
	}
	return path, nil
}
