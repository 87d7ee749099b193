package mirror

import (
	"context"
	"fmt"

	"github.com/syncbrowse/syncbrowse/internal/events"
	"github.com/syncbrowse/syncbrowse/internal/models"
	"github.com/syncbrowse/syncbrowse/internal/perf"
)

// Refetch names the directories whose listings an invalidation made stale.
// A breadcrumb level showing one of them should be reloaded.
type Refetch struct {
	Folder string
	Dirs   []string
}

// Router applies cache invalidations to the mirror and the dedup ledger.
// It is owned by the control loop.
type Router struct {
	mirror *Mirror
	ledger *perf.Ledger
}

// NewRouter creates a router over mirror and ledger.
func NewRouter(mirror *Mirror, ledger *perf.Ledger) *Router {
	return &Router{mirror: mirror, ledger: ledger}
}

// Apply evicts whatever inv covers. Evicting something that is not cached is
// a no-op, so applying the same invalidation twice is harmless.
func (r *Router) Apply(ctx context.Context, inv events.CacheInvalidation) (Refetch, error) {
	switch inv := inv.(type) {
	case events.File:
		return r.applyFile(ctx, inv)
	case events.Directory:
		return r.applyDirectory(ctx, inv)
	}
	return Refetch{}, fmt.Errorf("unknown invalidation %T", inv)
}

func (r *Router) applyFile(ctx context.Context, inv events.File) (Refetch, error) {
	parent := models.ParentDir(inv.Path)
	if err := r.mirror.EvictFile(ctx, inv.FolderID, inv.Path); err != nil {
		return Refetch{}, fmt.Errorf("evict file %s/%s: %w", inv.FolderID, inv.Path, err)
	}
	if err := r.mirror.EvictListing(ctx, inv.FolderID, parent); err != nil {
		return Refetch{}, fmt.Errorf("evict listing %s/%s: %w", inv.FolderID, parent, err)
	}
	r.ledger.DropDir(inv.FolderID, parent)
	return Refetch{Folder: inv.FolderID, Dirs: []string{parent}}, nil
}

func (r *Router) applyDirectory(ctx context.Context, inv events.Directory) (Refetch, error) {
	dir := clean(inv.Path)
	if err := r.mirror.EvictDir(ctx, inv.FolderID, dir); err != nil {
		return Refetch{}, fmt.Errorf("evict dir %s/%s: %w", inv.FolderID, dir, err)
	}
	r.ledger.ForgetDiscovered(inv.FolderID, dir)
	r.ledger.DropTree(inv.FolderID, dir)

	if dir == "" {
		return Refetch{Folder: inv.FolderID, Dirs: []string{""}}, nil
	}

	// The directory may have appeared or vanished, so its parent's listing is stale too.
	parent := models.ParentDir(dir)
	if err := r.mirror.EvictListing(ctx, inv.FolderID, parent); err != nil {
		return Refetch{}, fmt.Errorf("evict listing %s/%s: %w", inv.FolderID, parent, err)
	}
	r.ledger.DropDir(inv.FolderID, parent)
	return Refetch{Folder: inv.FolderID, Dirs: []string{dir, parent}}, nil
}
