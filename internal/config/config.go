// Package config provides configuration management for syncbrowse.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/syncbrowse/syncbrowse/internal/constants"
)

// Config is the connection and client configuration for one daemon.
//
// Config file location:
//   - Unix: ~/.config/syncbrowse/config.ini
//   - Windows: %APPDATA%\syncbrowse\config.ini
//
// INI format:
//
//	[daemon]
//	base_url = http://127.0.0.1:8384
//	api_key = <daemon api key>
//	proxy_mode = no-proxy
//	proxy_url =
//	no_proxy =
//
//	[client]
//	poll_interval_ms = 1000
//	reconcile_interval_s = 600
//	idle_threshold_ms = 1500
//	filter_refresh_ms = 2000
//	pending_op_timeout_s = 30
//	cache_path =
//	log_path =
//
//	[paths]
//	/var/syncthing/Sync = /home/me/Sync
type Config struct {
	// Daemon connection settings
	BaseURL   string `ini:"base_url"`
	APIKey    string `ini:"api_key"`
	ProxyMode string `ini:"proxy_mode"` // no-proxy, system, basic
	ProxyURL  string `ini:"proxy_url"`
	NoProxy   string `ini:"no_proxy"`

	// Client behavior
	Client ClientConfig

	// PathMap translates daemon-side folder paths to local paths.
	// Keys are remote prefixes, values the local replacement.
	PathMap map[string]string
}

// ClientConfig holds timing knobs for the control loop.
type ClientConfig struct {
	// PollInterval is the tick for re-querying folders in a transient state.
	PollInterval time.Duration

	// ReconcileInterval is the period of the full folder-status pass.
	// Zero disables reconciliation.
	ReconcileInterval time.Duration

	// IdleThreshold is how long without input counts as idle.
	IdleThreshold time.Duration

	// FilterRefresh is the minimum interval between out-of-sync re-queries.
	FilterRefresh time.Duration

	// PendingOpTimeout bounds how long an ignore+delete blocks un-ignore.
	PendingOpTimeout time.Duration

	// CachePath is the sqlite cache database. Empty means DefaultCachePath().
	CachePath string

	// LogPath is the rotating log file used while the browser runs. Empty means DefaultLogPath().
	LogPath string
}

// Environment variable overrides
const (
	EnvAPIKey  = "SYNCBROWSE_API_KEY"
	EnvBaseURL = "SYNCBROWSE_URL"
)

// Validation errors
var (
	ErrMissingBaseURL  = errors.New("base_url is required")
	ErrInvalidBaseURL  = errors.New("base_url must be an absolute http(s) URL")
	ErrMissingAPIKey   = errors.New("api_key is required")
	ErrInvalidProxy    = errors.New("proxy_mode must be one of no-proxy, system, basic")
	ErrMissingProxyURL = errors.New("proxy_url is required when proxy_mode is basic")
)

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		BaseURL:   "http://127.0.0.1:8384",
		ProxyMode: "no-proxy",
		Client: ClientConfig{
			PollInterval:      constants.DefaultPollInterval,
			ReconcileInterval: constants.DefaultReconcileInterval,
			IdleThreshold:     constants.DefaultIdleThreshold,
			FilterRefresh:     constants.DefaultFilterRefresh,
			PendingOpTimeout:  constants.DefaultPendingOpTimeout,
		},
		PathMap: map[string]string{},
	}
}

// Load loads configuration from an INI file.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	// If no path provided, use default
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil // Return defaults if we can't determine path
		}
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Parse [daemon] section
	daemon := iniFile.Section("daemon")
	cfg.BaseURL = strings.TrimRight(daemon.Key("base_url").MustString(cfg.BaseURL), "/")
	cfg.APIKey = daemon.Key("api_key").String()
	cfg.ProxyMode = daemon.Key("proxy_mode").MustString(cfg.ProxyMode)
	cfg.ProxyURL = daemon.Key("proxy_url").String()
	cfg.NoProxy = daemon.Key("no_proxy").String()

	// Parse [client] section
	client := iniFile.Section("client")
	cfg.Client.PollInterval = millis(client.Key("poll_interval_ms").MustInt(int(cfg.Client.PollInterval / time.Millisecond)))
	cfg.Client.ReconcileInterval = seconds(client.Key("reconcile_interval_s").MustInt(int(cfg.Client.ReconcileInterval / time.Second)))
	cfg.Client.IdleThreshold = millis(client.Key("idle_threshold_ms").MustInt(int(cfg.Client.IdleThreshold / time.Millisecond)))
	cfg.Client.FilterRefresh = millis(client.Key("filter_refresh_ms").MustInt(int(cfg.Client.FilterRefresh / time.Millisecond)))
	cfg.Client.PendingOpTimeout = seconds(client.Key("pending_op_timeout_s").MustInt(int(cfg.Client.PendingOpTimeout / time.Second)))
	cfg.Client.CachePath = client.Key("cache_path").String()
	cfg.Client.LogPath = client.Key("log_path").String()

	// Parse [paths] section: every key is a remote prefix
	for _, key := range iniFile.Section("paths").Keys() {
		remote := strings.TrimSpace(key.Name())
		local := strings.TrimSpace(key.Value())
		if remote == "" || local == "" {
			continue
		}
		cfg.PathMap[remote] = local
	}

	return cfg, nil
}

// Save saves configuration to an INI file.
// Creates parent directories if they don't exist.
// The API key is stored in the file - ensure appropriate file permissions.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	daemon, err := iniFile.NewSection("daemon")
	if err != nil {
		return fmt.Errorf("failed to create daemon section: %w", err)
	}
	daemon.Key("base_url").SetValue(cfg.BaseURL)
	daemon.Key("api_key").SetValue(cfg.APIKey)
	daemon.Key("proxy_mode").SetValue(cfg.ProxyMode)
	daemon.Key("proxy_url").SetValue(cfg.ProxyURL)
	daemon.Key("no_proxy").SetValue(cfg.NoProxy)

	client, err := iniFile.NewSection("client")
	if err != nil {
		return fmt.Errorf("failed to create client section: %w", err)
	}
	client.Key("poll_interval_ms").SetValue(fmt.Sprintf("%d", cfg.Client.PollInterval/time.Millisecond))
	client.Key("reconcile_interval_s").SetValue(fmt.Sprintf("%d", cfg.Client.ReconcileInterval/time.Second))
	client.Key("idle_threshold_ms").SetValue(fmt.Sprintf("%d", cfg.Client.IdleThreshold/time.Millisecond))
	client.Key("filter_refresh_ms").SetValue(fmt.Sprintf("%d", cfg.Client.FilterRefresh/time.Millisecond))
	client.Key("pending_op_timeout_s").SetValue(fmt.Sprintf("%d", cfg.Client.PendingOpTimeout/time.Second))
	client.Key("cache_path").SetValue(cfg.Client.CachePath)
	client.Key("log_path").SetValue(cfg.Client.LogPath)

	if len(cfg.PathMap) > 0 {
		paths, err := iniFile.NewSection("paths")
		if err != nil {
			return fmt.Errorf("failed to create paths section: %w", err)
		}
		remotes := make([]string, 0, len(cfg.PathMap))
		for remote := range cfg.PathMap {
			remotes = append(remotes, remote)
		}
		sort.Strings(remotes)
		for _, remote := range remotes {
			paths.Key(remote).SetValue(cfg.PathMap[remote])
		}
	}

	// Use temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	// Set restrictive permissions (API key is sensitive)
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// ApplyEnv overlays environment variable overrides onto the config.
func (cfg *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
}

// Validate checks that the connection settings are usable.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBaseURL
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return ErrMissingAPIKey
	}
	switch strings.ToLower(cfg.ProxyMode) {
	case "", "no-proxy", "system":
	case "basic":
		if strings.TrimSpace(cfg.ProxyURL) == "" {
			return ErrMissingProxyURL
		}
	default:
		return ErrInvalidProxy
	}
	return nil
}

// TranslatePath maps a daemon-side path to the local filesystem using the
// longest matching [paths] prefix. Prefixes match on whole path segments.
// Paths with no matching prefix are returned unchanged.
func (cfg *Config) TranslatePath(remote string) string {
	best := ""
	for prefix := range cfg.PathMap {
		trimmed := strings.TrimRight(prefix, "/\\")
		if trimmed == "" {
			continue
		}
		if remote != trimmed && !strings.HasPrefix(remote, trimmed+"/") && !strings.HasPrefix(remote, trimmed+"\\") {
			continue
		}
		if len(trimmed) > len(strings.TrimRight(best, "/\\")) {
			best = prefix
		}
	}
	if best == "" {
		return remote
	}
	trimmed := strings.TrimRight(best, "/\\")
	local := strings.TrimRight(cfg.PathMap[best], "/\\")
	return local + remote[len(trimmed):]
}

// MaskedAPIKey returns the API key with all but the last four characters hidden.
func (cfg *Config) MaskedAPIKey() string {
	key := cfg.APIKey
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// ResolvedCachePath returns the configured cache path or the default.
func (cfg *Config) ResolvedCachePath() string {
	if cfg.Client.CachePath != "" {
		return cfg.Client.CachePath
	}
	return DefaultCachePath()
}

// ResolvedLogPath returns the configured log path or the default.
func (cfg *Config) ResolvedLogPath() string {
	if cfg.Client.LogPath != "" {
		return cfg.Client.LogPath
	}
	return filepath.Join(LogDirectory(), "syncbrowse.log")
}

func millis(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	return time.Duration(n) * time.Millisecond
}

func seconds(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	return time.Duration(n) * time.Second
}
