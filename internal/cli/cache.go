package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/syncbrowse/syncbrowse/internal/api"
	"github.com/syncbrowse/syncbrowse/internal/constants"
	"github.com/syncbrowse/syncbrowse/internal/mirror"
	"github.com/syncbrowse/syncbrowse/internal/perf"
	"github.com/syncbrowse/syncbrowse/internal/progress"
	"github.com/syncbrowse/syncbrowse/internal/services"
	"github.com/syncbrowse/syncbrowse/internal/store"
)

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the local cache",
		Long: `Commands for the local listing and sync state cache.

Commands:
  stats  - Show what the cache holds
  clear  - Drop everything, including the stored event position
  warm   - Fetch every directory listing of a folder ahead of time`,
	}

	cacheCmd.AddCommand(newCacheStatsCmd())
	cacheCmd.AddCommand(newCacheClearCmd())
	cacheCmd.AddCommand(newCacheWarmCmd())

	return cacheCmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache location and entry counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			kv, _, closeCache, err := openCache(cfg, false, GetLogger().Named("cache"))
			if err != nil {
				return err
			}
			defer closeCache()
			return printCacheStats(GetContext(), kv, cmd.OutOrStdout())
		},
	}
}

func printCacheStats(ctx context.Context, kv *store.KV, out io.Writer) error {
	fmt.Fprintf(out, "Cache: %s\n", kv.Path())
	if info, err := os.Stat(kv.Path()); err == nil {
		fmt.Fprintf(out, "Size:  %.1f KiB\n", float64(info.Size())/1024)
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	total := 0
	for _, ns := range mirror.Namespaces {
		n, err := kv.Count(ctx, ns.Prefix)
		if err != nil {
			return err
		}
		total += n
		fmt.Fprintf(w, "%s\t%d\n", ns.Name, n)
	}
	all, err := kv.Count(ctx, "")
	if err != nil {
		return err
	}
	if other := all - total; other > 0 {
		fmt.Fprintf(w, "other\t%d\n", other)
	}
	fmt.Fprintf(w, "total\t%d\n", all)
	return w.Flush()
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached entry",
		Long: `Remove every cached listing, sync state, folder fingerprint and event
position. The next browser run starts from fresh snapshots.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := GetLogger()
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			kv, batcher, closeCache, err := openCache(cfg, false, log.Named("cache"))
			if err != nil {
				return err
			}
			defer closeCache()

			before, err := kv.Count(GetContext(), "")
			if err != nil {
				return err
			}
			if err := batcher.InvalidatePrefix(GetContext(), ""); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			log.Info().Str("path", kv.Path()).Int("entries", before).Msg("cache cleared")
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries from %s\n", before, kv.Path())
			return nil
		},
	}
}

func newCacheWarmCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "warm <folder>",
		Short: "Fetch every directory listing of a folder into the cache",
		Long: `Walk a folder breadth first and store every directory listing, so the
browser opens any directory of it from the cache.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := GetLogger()
			cfg, client, err := getAPIClient(log.Named("api"))
			if err != nil {
				return err
			}
			_, batcher, closeCache, err := openCache(cfg, false, log.Named("cache"))
			if err != nil {
				return err
			}
			defer func() {
				if err := closeCache(); err != nil {
					log.Error().Err(err).Msg("failed to close cache")
				}
			}()

			var reporter progress.Reporter = progress.NewNoOpProgress()
			if term.IsTerminal(int(os.Stderr.Fd())) {
				reporter = progress.NewCLIProgress()
			}

			stats, err := warmFolder(GetContext(), client, batcher, args[0], concurrency, reporter)
			if err != nil {
				return fmt.Errorf("warm %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cached %d directories (%d entries) of %s\n", stats.Dirs, stats.Entries, args[0])
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", constants.WarmConcurrency, "Parallel directory listings")

	return cmd
}

// warmFolder walks folder into the cache, reporting directories done against
// directories discovered so far.
func warmFolder(ctx context.Context, remote api.Remote, batcher *store.Batcher, folder string, concurrency int, reporter progress.Reporter) (services.WarmStats, error) {
	var done atomic.Int64
	reporter.Start(1, "warming "+folder)

	w := &services.Warmer{
		Remote:      remote,
		Mirror:      mirror.New(batcher),
		Ledger:      perf.NewLedger(),
		Concurrency: concurrency,
		Logger:      GetLogger().Named("warm"),
		OnDir: func(dir string, discovered int) {
			reporter.Update(done.Add(1), int64(discovered))
			if _, err := batcher.MaybeFlush(ctx, time.Now()); err != nil {
				reporter.Error(err)
			}
		},
	}

	stats, err := w.Warm(ctx, folder)
	if err != nil {
		reporter.Error(err)
		return stats, err
	}
	reporter.Finish()
	return stats, nil
}
