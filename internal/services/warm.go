package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/syncbrowse/syncbrowse/internal/api"
	"github.com/syncbrowse/syncbrowse/internal/constants"
	"github.com/syncbrowse/syncbrowse/internal/logging"
	"github.com/syncbrowse/syncbrowse/internal/mirror"
	"github.com/syncbrowse/syncbrowse/internal/models"
	"github.com/syncbrowse/syncbrowse/internal/perf"
)

// WarmStats summarizes one warm run.
type WarmStats struct {
	Dirs    int
	Entries int
	// Cached counts directories served from the mirror without a browse.
	Cached  int
	Skipped int
}

// Warmer walks a folder breadth first and fills the mirror with every
// directory listing it finds. A directory the ledger has already discovered
// and whose listing is still cached is not browsed again; a Directory
// invalidation forgets it and the next walk lists it afresh.
type Warmer struct {
	Remote      api.Remote
	Mirror      *mirror.Mirror
	Ledger      *perf.Ledger
	Concurrency int
	Logger      *logging.Logger

	// OnDir is called after each directory is stored, with the number of
	// directories discovered so far. It may be called concurrently.
	OnDir func(dir string, discovered int)

	// Timeout bounds each directory listing. Zero means
	// constants.APIContextTimeout.
	Timeout time.Duration

	mu sync.Mutex // guards Ledger
}

// Warm walks folder from its root.
func (w *Warmer) Warm(ctx context.Context, folder string) (WarmStats, error) {
	if w.Concurrency <= 0 {
		w.Concurrency = 1
	}
	if w.Logger == nil {
		w.Logger = logging.NewNopLogger()
	}

	var stats WarmStats
	var statsMu sync.Mutex
	level := []string{""}
	discovered := 1

	for len(level) > 0 {
		var next []string
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(w.Concurrency)

		for _, dir := range level {
			g.Go(func() error {
				w.mu.Lock()
				ticket, ok := w.Ledger.Begin(perf.KindBrowse, perf.Key(folder, dir))
				w.mu.Unlock()
				if !ok {
					statsMu.Lock()
					stats.Skipped++
					statsMu.Unlock()
					return nil
				}
				defer func() {
					w.mu.Lock()
					w.Ledger.Finish(ticket)
					w.mu.Unlock()
				}()

				entries, cached, err := w.listing(gctx, folder, dir)
				if err != nil {
					return err
				}

				var children []string
				for _, e := range entries {
					if e.IsDir() {
						children = append(children, models.JoinPath(dir, e.Name))
					}
				}

				statsMu.Lock()
				stats.Dirs++
				stats.Entries += len(entries)
				if cached {
					stats.Cached++
				}
				next = append(next, children...)
				discovered += len(children)
				n := discovered
				statsMu.Unlock()

				if w.OnDir != nil {
					w.OnDir(dir, n)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return stats, err
		}
		level = next
	}

	w.Logger.Info().
		Str("folder", folder).
		Int("dirs", stats.Dirs).
		Int("entries", stats.Entries).
		Int("cached", stats.Cached).
		Msg("cache warmed")
	return stats, nil
}

// listing returns the cached listing of a discovered directory, or browses
// it, stores the result and marks it discovered.
func (w *Warmer) listing(ctx context.Context, folder, dir string) ([]models.Entry, bool, error) {
	w.mu.Lock()
	known := w.Ledger.Discovered(folder, dir)
	w.mu.Unlock()
	if known {
		l, ok, err := w.Mirror.Listing(ctx, folder, dir)
		if err != nil {
			w.Logger.Warn().Err(err).Str("folder", folder).Str("dir", dir).Msg("cache read failed")
		}
		if ok {
			return l.Entries, true, nil
		}
	}

	entries, err := w.browse(ctx, folder, dir)
	if err != nil {
		return nil, false, fmt.Errorf("browse %s/%s: %w", folder, dir, err)
	}
	if err := w.Mirror.PutListing(ctx, folder, dir, entries, time.Now()); err != nil {
		return nil, false, fmt.Errorf("cache %s/%s: %w", folder, dir, err)
	}
	w.mu.Lock()
	w.Ledger.MarkDiscovered(folder, dir)
	w.mu.Unlock()
	return entries, false, nil
}

func (w *Warmer) browse(ctx context.Context, folder, dir string) ([]models.Entry, error) {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = constants.APIContextTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return w.Remote.Browse(ctx, folder, dir)
}
