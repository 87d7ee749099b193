package services

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/syncbrowse/syncbrowse/internal/api"
	"github.com/syncbrowse/syncbrowse/internal/constants"
	"github.com/syncbrowse/syncbrowse/internal/models"
)

// NeedSet turns a folder's need listing into a path set.
func NeedSet(resp models.NeedResponse) map[string]struct{} {
	paths := resp.Paths()
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}

// LoadStates derives the sync state of the named children of dir. needed is
// the folder's need set and may be nil. Paths the daemon has no record of
// resolve from the need set alone. On error the states loaded so far are
// returned with it.
func LoadStates(ctx context.Context, remote api.Remote, folder, dir string, names []string, needed map[string]struct{}) (map[string]models.SyncState, error) {
	var mu sync.Mutex
	out := make(map[string]models.SyncState, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.PrefetchBatch)
	for _, name := range names {
		g.Go(func() error {
			path := models.JoinPath(dir, name)
			_, isNeeded := needed[path]

			detail, err := remote.File(gctx, folder, path)
			if err != nil && !errors.Is(err, api.ErrNotFound) {
				return err
			}
			state := models.DeriveSyncState(name, detail, isNeeded)

			mu.Lock()
			out[name] = state
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return out, err
}
