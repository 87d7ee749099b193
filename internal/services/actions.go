// Package services implements the operations the browser triggers on the
// daemon: ignore and un-ignore, ignore-and-delete, revert, restore and
// rescan, plus the background loaders for sync states and cache warming.
//
// Everything here runs off the control loop, so none of it touches
// navigation or performance state. Checks that need that state, like
// CheckUnignore, are plain functions the loop calls before dispatching.
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/syncbrowse/syncbrowse/internal/api"
	"github.com/syncbrowse/syncbrowse/internal/logging"
	"github.com/syncbrowse/syncbrowse/internal/models"
	"github.com/syncbrowse/syncbrowse/internal/perf"
	"github.com/syncbrowse/syncbrowse/internal/validation"
)

var (
	// ErrUnignoreBlocked is returned while an ignore+delete of the same path
	// has not resolved or timed out.
	ErrUnignoreBlocked = errors.New("un-ignore blocked: delete still pending for this path")
	// ErrNoVersions means the path has no archived versions to restore.
	ErrNoVersions = errors.New("no archived versions")
	// ErrUnsafePath rejects deletes that would escape or remove the folder root.
	ErrUnsafePath = errors.New("refusing to delete outside the folder")
)

// Actions performs remote actions against one daemon.
type Actions struct {
	remote api.Remote
	logger *logging.Logger
}

// NewActions creates Actions over remote. logger may be nil.
func NewActions(remote api.Remote, logger *logging.Logger) *Actions {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Actions{remote: remote, logger: logger}
}

// IgnorePattern is the anchored pattern that ignores exactly path.
func IgnorePattern(path string) string {
	return "/" + strings.Trim(path, "/")
}

// Ignore adds path to the folder's ignore patterns. Ignoring an already
// ignored path is a no-op.
func (a *Actions) Ignore(ctx context.Context, folder, path string) error {
	ign, err := a.remote.Ignores(ctx, folder)
	if err != nil {
		return fmt.Errorf("failed to read ignores: %w", err)
	}
	pattern := IgnorePattern(path)
	if slices.Contains(ign.Ignore, pattern) {
		return nil
	}
	if err := a.remote.SetIgnores(ctx, folder, append(ign.Ignore, pattern)); err != nil {
		return fmt.Errorf("failed to write ignores: %w", err)
	}
	a.logger.Info().Str("folder", folder).Str("path", path).Msg("ignored")
	return nil
}

// CheckUnignore reports ErrUnignoreBlocked while an ignore+delete of path is
// still pending.
func CheckUnignore(pending *perf.PendingOps, folder, path string, now time.Time) error {
	if pending.Blocks(folder, path, now) {
		return ErrUnignoreBlocked
	}
	return nil
}

// Unignore removes path's pattern from the folder's ignore list. Returns
// false when the path was not ignored by an exact pattern.
func (a *Actions) Unignore(ctx context.Context, folder, path string) (bool, error) {
	ign, err := a.remote.Ignores(ctx, folder)
	if err != nil {
		return false, fmt.Errorf("failed to read ignores: %w", err)
	}
	pattern := IgnorePattern(path)
	bare := strings.Trim(path, "/")
	kept := make([]string, 0, len(ign.Ignore))
	for _, p := range ign.Ignore {
		if p == pattern || p == bare {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == len(ign.Ignore) {
		return false, nil
	}
	if err := a.remote.SetIgnores(ctx, folder, kept); err != nil {
		return false, fmt.Errorf("failed to write ignores: %w", err)
	}
	a.logger.Info().Str("folder", folder).Str("path", path).Msg("un-ignored")
	return true, nil
}

// LocalPath joins a folder's translated root and a folder-relative path,
// refusing results that are the root itself or outside it.
func LocalPath(root, path string) (string, error) {
	if root == "" {
		return "", ErrUnsafePath
	}
	if err := validation.ValidateRelPath(path); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}
	full := filepath.Join(root, filepath.FromSlash(strings.Trim(path, "/")))
	if err := validation.ValidatePathInDirectory(full, root); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}
	return full, nil
}

// IgnoreAndDelete ignores path, then removes its local copy under root (the
// folder's translated on-disk path). The pending op guarding a later
// un-ignore is registered and resolved by the caller.
func (a *Actions) IgnoreAndDelete(ctx context.Context, folder, root, path string) error {
	local, err := LocalPath(root, path)
	if err != nil {
		return err
	}
	if err := a.Ignore(ctx, folder, path); err != nil {
		return err
	}
	if err := os.RemoveAll(local); err != nil {
		return fmt.Errorf("failed to delete %s: %w", local, err)
	}
	a.logger.Info().Str("folder", folder).Str("path", path).Str("local", local).Msg("ignored and deleted")
	return nil
}

// Revert discards local changes in a receive-only folder.
func (a *Actions) Revert(ctx context.Context, folder models.Folder) error {
	if !folder.IsReceiveOnly() {
		return fmt.Errorf("folder %s is %s, revert needs a receive-only folder", folder.DisplayName(), folder.Type)
	}
	if err := a.remote.Revert(ctx, folder.ID); err != nil {
		return fmt.Errorf("revert failed: %w", err)
	}
	a.logger.Info().Str("folder", folder.ID).Msg("reverted")
	return nil
}

// RestoreLatest restores the newest archived version of path.
func (a *Actions) RestoreLatest(ctx context.Context, folder, path string) (time.Time, error) {
	path = strings.Trim(path, "/")
	all, err := a.remote.Versions(ctx, folder)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to list versions: %w", err)
	}
	versions := all[path]
	if len(versions) == 0 {
		return time.Time{}, fmt.Errorf("%s: %w", path, ErrNoVersions)
	}
	latest := versions[0].VersionTime
	for _, v := range versions[1:] {
		if v.VersionTime.After(latest) {
			latest = v.VersionTime
		}
	}

	failed, err := a.remote.RestoreVersions(ctx, folder, map[string]time.Time{path: latest})
	if err != nil {
		return time.Time{}, fmt.Errorf("restore failed: %w", err)
	}
	if msg, ok := failed[path]; ok {
		return time.Time{}, fmt.Errorf("restore %s: %s", path, msg)
	}
	a.logger.Info().Str("folder", folder).Str("path", path).Time("version", latest).Msg("restored")
	return latest, nil
}

// Rescan asks the daemon to rescan sub of folder ("" for all of it).
func (a *Actions) Rescan(ctx context.Context, folder, sub string) error {
	if err := a.remote.Scan(ctx, folder, sub); err != nil {
		return fmt.Errorf("rescan failed: %w", err)
	}
	return nil
}
