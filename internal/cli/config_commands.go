package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syncbrowse/syncbrowse/internal/api"
	"github.com/syncbrowse/syncbrowse/internal/config"
	"github.com/syncbrowse/syncbrowse/internal/constants"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage syncbrowse configuration",
		Long: `Configuration management commands for syncbrowse.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test the daemon connection
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup.

The configuration is saved to ~/.config/syncbrowse/config.ini unless
--config names another file. Use --force to overwrite an existing file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolvedConfigPath()
			if err != nil {
				return fmt.Errorf("failed to determine config path: %w", err)
			}

			if !force {
				if _, err := os.Stat(configPath); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Configuration already exists at: %s\n", configPath)
					fmt.Fprintln(cmd.OutOrStdout(), "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			cfg, err := promptConfig(cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := config.Save(cfg, configPath); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			GetLogger().Info().Str("path", configPath).Msg("configuration saved")

			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration saved to: %s\n", configPath)
			fmt.Fprintln(cmd.OutOrStdout(), "Test your configuration with: syncbrowse config test")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// promptConfig asks for the connection settings. Empty answers keep defaults.
func promptConfig(in io.Reader, out io.Writer) (*config.Config, error) {
	cfg := config.NewConfig()
	reader := bufio.NewReader(in)

	ask := func(label, def string) (string, error) {
		if def != "" {
			fmt.Fprintf(out, "%s [%s]: ", label, def)
		} else {
			fmt.Fprintf(out, "%s: ", label)
		}
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			if err == io.EOF && def == "" {
				return "", io.ErrUnexpectedEOF
			}
			return def, nil
		}
		return line, nil
	}

	fmt.Fprintln(out, "syncbrowse Configuration Setup")
	fmt.Fprintln(out, "==============================")
	fmt.Fprintln(out)

	var err error
	if cfg.BaseURL, err = ask("Daemon URL", cfg.BaseURL); err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	for cfg.APIKey == "" {
		if cfg.APIKey, err = ask("API key (required)", ""); err != nil {
			return nil, fmt.Errorf("API key is required: %w", err)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Proxy modes: no-proxy, system, basic")
	if cfg.ProxyMode, err = ask("Proxy mode", cfg.ProxyMode); err != nil {
		return nil, err
	}
	if cfg.ProxyMode == "basic" {
		if cfg.ProxyURL, err = ask("Proxy URL", ""); err != nil {
			return nil, err
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Path mapping (daemon path prefix = local path prefix), empty line to finish")
	for {
		remote, err := ask("Daemon path prefix", "-")
		if err != nil {
			return nil, err
		}
		if remote == "-" {
			break
		}
		local, err := ask("Local path prefix", "")
		if err != nil {
			return nil, err
		}
		cfg.PathMap[remote] = local
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/syncbrowse/config.ini)
  2. Environment variables (SYNCBROWSE_API_KEY, SYNCBROWSE_URL)
  3. Command-line flags (--api-key, --api-url)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolvedConfigPath()
			if err != nil {
				return fmt.Errorf("failed to determine config path: %w", err)
			}
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			showConfig(cmd.OutOrStdout(), cfg, configPath)
			return nil
		},
	}
}

func showConfig(out io.Writer, cfg *config.Config, configPath string) {
	fmt.Fprintln(out, "Current Configuration")
	fmt.Fprintln(out, "=====================")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Daemon:")
	fmt.Fprintf(out, "  URL:        %s\n", cfg.BaseURL)
	fmt.Fprintf(out, "  API Key:    %s\n", cfg.MaskedAPIKey())
	fmt.Fprintf(out, "  Proxy Mode: %s\n", cfg.ProxyMode)
	if cfg.ProxyURL != "" {
		fmt.Fprintf(out, "  Proxy URL:  %s\n", cfg.ProxyURL)
	}
	fmt.Fprintln(out)

	c := cfg.Client
	fmt.Fprintln(out, "Client:")
	fmt.Fprintf(out, "  Poll Interval:      %s\n", c.PollInterval)
	fmt.Fprintf(out, "  Reconcile Interval: %s\n", c.ReconcileInterval)
	fmt.Fprintf(out, "  Idle Threshold:     %s\n", c.IdleThreshold)
	fmt.Fprintf(out, "  Filter Refresh:     %s\n", c.FilterRefresh)
	fmt.Fprintf(out, "  Pending Op Timeout: %s\n", c.PendingOpTimeout)
	fmt.Fprintf(out, "  Cache:              %s\n", cfg.ResolvedCachePath())
	fmt.Fprintf(out, "  Log File:           %s\n", cfg.ResolvedLogPath())
	fmt.Fprintln(out)

	if len(cfg.PathMap) > 0 {
		fmt.Fprintln(out, "Path Mapping:")
		remotes := make([]string, 0, len(cfg.PathMap))
		for r := range cfg.PathMap {
			remotes = append(remotes, r)
		}
		sort.Strings(remotes)
		for _, r := range remotes {
			fmt.Fprintf(out, "  %s => %s\n", r, cfg.PathMap[r])
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "Configuration file: %s\n", configPath)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Fprintln(out, "  (file does not exist - using defaults)")
	}
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the daemon connection",
		Long: `Test the daemon connection with the current configuration.

Use this to verify the API key and network connectivity.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := GetLogger()
			cfg, client, err := getAPIClient(log.Named("api"))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon URL: %s\n", cfg.BaseURL)
			fmt.Fprintln(out, "Testing connection...")
			fmt.Fprintln(out)

			ctx, cancel := context.WithTimeout(GetContext(), constants.APIConnectionTestTimeout)
			defer cancel()

			n, err := testConnection(ctx, client)
			if err != nil {
				log.Error().Err(err).Msg("connection test failed")
				fmt.Fprintln(out, "✗ Connection FAILED")
				fmt.Fprintf(out, "  Error: %v\n", err)
				return fmt.Errorf("connection test failed")
			}

			log.Info().Msg("connection test successful")
			fmt.Fprintln(out, "✓ Connection SUCCESSFUL")
			fmt.Fprintf(out, "  Folders: %d\n", n)
			return nil
		},
	}
}

// testConnection pings the daemon and lists its folders, which also checks
// the API key.
func testConnection(ctx context.Context, client api.Remote) (int, error) {
	if err := client.Ping(ctx); err != nil {
		return 0, err
	}
	folders, err := client.Folders(ctx)
	if err != nil {
		return 0, err
	}
	return len(folders), nil
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolvedConfigPath()
			if err != nil {
				return fmt.Errorf("failed to determine config path: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), configPath)
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				fmt.Fprintln(cmd.ErrOrStderr(), "(file does not exist)")
			}
			return nil
		},
	}
}
