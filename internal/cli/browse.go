package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/syncbrowse/syncbrowse/internal/api"
	"github.com/syncbrowse/syncbrowse/internal/config"
	"github.com/syncbrowse/syncbrowse/internal/events"
	inthttp "github.com/syncbrowse/syncbrowse/internal/http"
	"github.com/syncbrowse/syncbrowse/internal/logging"
	"github.com/syncbrowse/syncbrowse/internal/mirror"
	"github.com/syncbrowse/syncbrowse/internal/tui"
)

type browseOptions struct {
	ephemeral bool
	noResume  bool
}

func newBrowseCmd() *cobra.Command {
	var opts browseOptions

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Open the interactive browser (default command)",
		Long: `Open the interactive folder browser.

The browser follows the daemon's event stream in the background and evicts
cached listings and sync states as events arrive. Logs are written to the
rotating log file (see 'config show'), never to the terminal.

Keys:
  ↑/↓ j/k   move           → l enter  open       ← h  back
  tab       next pane      s / S      sort / reverse
  o         out-of-sync    /          search      esc  clear search
  i / u     ignore / un-ignore         d          ignore and delete locally
  r         revert folder  R          restore latest version
  F         rescan         ctrl+r     refresh     q    quit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(GetContext(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.ephemeral, "ephemeral", false, "Use an in-memory cache that is discarded on exit")
	cmd.Flags().BoolVar(&opts.noResume, "no-resume", false, "Ignore the stored event position")

	return cmd
}

func runBrowse(ctx context.Context, opts browseOptions) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("the browser needs an interactive terminal; see 'syncbrowse --help' for headless commands")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w (run 'syncbrowse config init')", err)
	}

	// The terminal belongs to the UI from here on.
	log, closeLog, err := logging.NewFileLogger(logging.FileLogConfig{Path: cfg.ResolvedLogPath()})
	if err != nil {
		return err
	}
	defer closeLog()
	log.Info().Str("base_url", cfg.BaseURL).Bool("ephemeral", opts.ephemeral).Msg("browser starting")

	apiClient, err := api.NewClient(cfg, log.Named("api"))
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	_, batcher, closeCache, err := openCache(cfg, opts.ephemeral, log.Named("cache"))
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCache(); err != nil {
			log.Error().Err(err).Msg("failed to close cache")
		}
	}()
	m := mirror.New(batcher)

	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()
	invs, wms, err := startFeed(feedCtx, cfg, m, opts.noResume, log)
	if err != nil {
		return err
	}

	model := tui.New(tui.Options{
		Context:       ctx,
		Remote:        apiClient,
		Mirror:        m,
		Batcher:       batcher,
		Config:        cfg,
		BaseURL:       cfg.BaseURL,
		Invalidations: invs,
		Watermarks:    wms,
		Logger:        log,
	})

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	stopFeed()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("browser exited: %w", err)
	}
	log.Info().Msg("browser stopped")
	return nil
}

// startFeed launches the event client in its own goroutine. It resumes from
// the stored watermark unless noResume is set. The queues are closed when
// the client returns.
func startFeed(ctx context.Context, cfg *config.Config, m *mirror.Mirror, noResume bool, log *logging.Logger) (*events.Queue[events.CacheInvalidation], *events.Queue[uint64], error) {
	httpClient, err := inthttp.CreateClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	var since uint64
	if !noResume {
		since, err = m.Watermark(ctx, cfg.BaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to read stored event position, starting fresh")
			since = 0
		}
	}

	invs := events.NewQueue[events.CacheInvalidation]()
	wms := events.NewQueue[uint64]()
	client := events.NewClient(cfg.BaseURL, cfg.APIKey, httpClient, log.Named("events"))

	go func() {
		defer invs.Close()
		defer wms.Close()
		log.Info().Uint64("last_id", since).Msg("event feed started")
		if err := client.Run(ctx, since, invs, wms); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("event feed stopped")
		}
	}()

	return invs, wms, nil
}
