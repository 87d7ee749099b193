package config

import (
	"os"
	"path/filepath"
)

// appDirName is the directory under the user config dir holding config, cache and logs.
const appDirName = "syncbrowse"

// ConfigDirectory returns the per-user directory for syncbrowse state.
//
// Locations:
//   - Unix: ~/.config/syncbrowse
//   - Windows: %APPDATA%\syncbrowse
func ConfigDirectory() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), appDirName)
		}
		return filepath.Join(homeDir, ".config", appDirName)
	}
	return filepath.Join(configDir, appDirName)
}

// DefaultConfigPath returns the default path for the INI config file.
func DefaultConfigPath() (string, error) {
	return filepath.Join(ConfigDirectory(), "config.ini"), nil
}

// DefaultCachePath returns the default sqlite cache database path.
func DefaultCachePath() string {
	return filepath.Join(ConfigDirectory(), "cache.db")
}

// LogDirectory returns the directory for rotated log files.
func LogDirectory() string {
	return filepath.Join(ConfigDirectory(), "logs")
}

// EnsureLogDirectory creates the log directory if it doesn't exist.
// Uses 0700 permissions to restrict log access to owner only.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}
