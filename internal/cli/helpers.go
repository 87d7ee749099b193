package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/syncbrowse/syncbrowse/internal/api"
	"github.com/syncbrowse/syncbrowse/internal/config"
	"github.com/syncbrowse/syncbrowse/internal/logging"
	"github.com/syncbrowse/syncbrowse/internal/store"
)

// resolvedConfigPath is --config or the default location.
func resolvedConfigPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the config file and applies overrides.
// Priority: flags > environment > config file > defaults.
func loadConfig() (*config.Config, error) {
	path, err := resolvedConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to determine config path: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	if apiBaseURL != "" {
		cfg.BaseURL = strings.TrimRight(apiBaseURL, "/")
	}
	return cfg, nil
}

// getAPIClient loads and validates configuration and creates an API client.
func getAPIClient(log *logging.Logger) (*config.Config, *api.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	client, err := api.NewClient(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return cfg, client, nil
}

// openCache opens the sqlite cache, or an in-memory one when ephemeral is
// set, and wraps it in a batch writer. Closing the returned function flushes
// pending writes before the database is closed.
func openCache(cfg *config.Config, ephemeral bool, log *logging.Logger) (*store.KV, *store.Batcher, func() error, error) {
	var kv *store.KV
	var err error
	if ephemeral {
		kv, err = store.OpenMemory()
	} else {
		kv, err = store.Open(cfg.ResolvedCachePath())
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open cache: %w", err)
	}
	batcher := store.NewBatcher(kv, log)
	closeFn := func() error {
		// The root context may already be cancelled by a signal.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		flushErr := batcher.Close(ctx)
		if err := kv.Close(); err != nil {
			return err
		}
		return flushErr
	}
	return kv, batcher, closeFn, nil
}
