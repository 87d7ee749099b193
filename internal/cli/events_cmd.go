package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/syncbrowse/syncbrowse/internal/events"
	inthttp "github.com/syncbrowse/syncbrowse/internal/http"
	"github.com/syncbrowse/syncbrowse/internal/logging"
	"github.com/syncbrowse/syncbrowse/internal/mirror"
	"github.com/syncbrowse/syncbrowse/internal/perf"
	"github.com/syncbrowse/syncbrowse/internal/store"
)

func newEventsCmd() *cobra.Command {
	var since uint64
	var noResume bool
	var ephemeral bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow the event feed and print cache invalidations",
		Long: `Follow the daemon's event feed without the browser.

Every invalidation is printed as it is derived. Folder state transitions
and sequence changes pushed by the daemon go to stderr, marked "polled"
while the folder is in a transient state. The event position is
stored in the cache after each batch so the next run (or the browser)
resumes where this one stopped.

By default the feed resumes from the stored position. --since starts from a
given event ID instead, and --no-resume starts from the oldest event the
daemon still buffers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			_, batcher, closeCache, err := openCache(cfg, ephemeral, log.Named("cache"))
			if err != nil {
				return err
			}
			defer func() {
				if err := closeCache(); err != nil {
					log.Error().Err(err).Msg("failed to close cache")
				}
			}()
			m := mirror.New(batcher)

			ctx := GetContext()
			start := since
			if !cmd.Flags().Changed("since") && !noResume {
				if start, err = m.Watermark(ctx, cfg.BaseURL); err != nil {
					log.Warn().Err(err).Msg("failed to read stored event position, starting fresh")
					start = 0
				}
			}

			httpClient, err := inthttp.CreateClient(cfg)
			if err != nil {
				return fmt.Errorf("failed to configure HTTP client: %w", err)
			}
			client := events.NewClient(cfg.BaseURL, cfg.APIKey, httpClient, log.Named("events"))
			// OnBatch runs on the client goroutine, which alone writes stderr.
			tracker := perf.NewTracker()
			client.OnBatch = func(res events.BatchResult) {
				for _, gap := range res.Gaps {
					fmt.Fprintf(cmd.ErrOrStderr(), "gap: last %d, got %d (%d missed)\n", gap.LastID, gap.EventID, gap.Missed())
				}
				for _, line := range folderReport(tracker, res.Payloads) {
					fmt.Fprintln(cmd.ErrOrStderr(), line)
				}
			}

			log.Info().Uint64("last_id", start).Str("base_url", cfg.BaseURL).Msg("following events")
			return followEvents(ctx, client, start, cmd.OutOrStdout(), m, batcher, cfg.BaseURL, log)
		},
	}

	cmd.Flags().Uint64Var(&since, "since", 0, "Start after this event ID")
	cmd.Flags().BoolVar(&noResume, "no-resume", false, "Ignore the stored event position")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "Do not persist the event position")
	cmd.MarkFlagsMutuallyExclusive("since", "no-resume")

	return cmd
}

// feedRunner is the part of events.Client the headless feed uses.
type feedRunner interface {
	Run(ctx context.Context, lastID uint64, invalidations events.Sink[events.CacheInvalidation], watermarks events.Sink[uint64]) error
}

// followEvents runs the client and a consumer side by side until ctx is
// cancelled. The consumer prints invalidations and persists each watermark
// once every invalidation queued before it has been printed.
func followEvents(ctx context.Context, client feedRunner, since uint64, out io.Writer, m *mirror.Mirror, batcher *store.Batcher, baseURL string, log *logging.Logger) error {
	invs := events.NewQueue[events.CacheInvalidation]()
	wms := events.NewQueue[uint64]()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer invs.Close()
		defer wms.Close()
		return client.Run(gctx, since, invs, wms)
	})

	g.Go(func() error {
		flush := time.NewTicker(time.Second)
		defer flush.Stop()
		for {
			var wm uint64
			if ids := wms.Drain(0); len(ids) > 0 {
				wm = ids[len(ids)-1]
			}
			for _, inv := range invs.Drain(0) {
				fmt.Fprintln(out, describeInvalidation(inv))
			}
			if wm > 0 {
				if err := m.PutWatermark(gctx, baseURL, wm); err != nil {
					log.Warn().Err(err).Uint64("event_id", wm).Msg("failed to store event position")
				}
			}
			if invs.Done() && wms.Done() {
				return nil
			}

			select {
			case <-invs.Ready():
			case <-wms.Ready():
			case <-flush.C:
				if _, err := batcher.MaybeFlush(gctx, time.Now()); err != nil {
					log.Warn().Err(err).Msg("cache flush failed")
				}
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func describeInvalidation(inv events.CacheInvalidation) string {
	switch v := inv.(type) {
	case events.File:
		return fmt.Sprintf("file      %s  %s", v.FolderID, v.Path)
	case events.Directory:
		path := v.Path
		if path == "" {
			path = "/"
		}
		return fmt.Sprintf("directory %s  %s", v.FolderID, path)
	default:
		return fmt.Sprintf("unknown   %s", inv.Folder())
	}
}

// folderReport describes the folder payloads of one batch. Summaries go
// through tracker, so only a moved sequence or a poll-set change is
// reported.
func folderReport(tracker *perf.Tracker, payloads []events.Payload) []string {
	var lines []string
	for _, p := range payloads {
		switch p := p.(type) {
		case events.FolderSummary:
			was := tracker.InPollSet(p.Folder)
			obs := tracker.Observe(p.Folder, perf.Fingerprint{
				State:            p.State,
				Sequence:         p.Sequence,
				ReceiveOnlyItems: int(p.ReceiveOnlyItems),
			})
			if !obs.First && !obs.Changed && was == obs.Transient {
				continue
			}
			line := fmt.Sprintf("folder    %s  %s seq %d", p.Folder, p.State, p.Sequence)
			if obs.Transient {
				line += " polled"
			}
			lines = append(lines, line)
		case events.StateChanged:
			lines = append(lines, fmt.Sprintf("state     %s  %s -> %s", p.Folder, p.From, p.To))
		}
	}
	return lines
}
