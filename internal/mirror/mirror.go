// Package mirror is the typed, cached view of the daemon's folders that the
// browser renders from, and the router that applies cache invalidations to it.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/syncbrowse/syncbrowse/internal/models"
	"github.com/syncbrowse/syncbrowse/internal/perf"
	"github.com/syncbrowse/syncbrowse/internal/store"
)

// Key namespaces.
const (
	nsBrowse    = "browse/"
	nsState     = "state/"
	nsWatermark = "watermark/"
	nsFolder    = "folder/"
	keyFolders  = "folders"
)

// Namespaces lists the key prefixes of everything the mirror stores, with a
// short name for each.
var Namespaces = []struct{ Name, Prefix string }{
	{"listings", nsBrowse},
	{"sync states", nsState},
	{"folder fingerprints", nsFolder},
	{"watermarks", nsWatermark},
}

// Listing is one cached directory listing.
type Listing struct {
	Entries   []models.Entry `json:"entries"`
	FetchedAt time.Time      `json:"fetchedAt"`
}

// Mirror maps the browser's view of the daemon onto a Store.
type Mirror struct {
	kv store.Store
}

// New creates a mirror over kv. kv is normally a *store.Batcher.
func New(kv store.Store) *Mirror {
	return &Mirror{kv: kv}
}

func folderSeg(folder string) string {
	return url.PathEscape(folder) + "/"
}

func clean(p string) string {
	return strings.Trim(p, "/")
}

// BrowseKey is the key of one directory listing. The folder root uses "".
func BrowseKey(folder, dir string) string {
	return nsBrowse + folderSeg(folder) + clean(dir)
}

// StateKey is the key of one file's sync state.
func StateKey(folder, path string) string {
	return nsState + folderSeg(folder) + clean(path)
}

// WatermarkKey is the key of the event resume point for one daemon.
func WatermarkKey(baseURL string) string {
	return nsWatermark + strings.TrimRight(baseURL, "/")
}

// subtreePrefix returns the prefix matching every key nested under dir in
// namespace ns. For the root it matches the whole folder.
func subtreePrefix(ns, folder, dir string) string {
	dir = clean(dir)
	if dir == "" {
		return ns + folderSeg(folder)
	}
	return ns + folderSeg(folder) + dir + "/"
}

// Listing returns the cached listing of dir, if any.
func (m *Mirror) Listing(ctx context.Context, folder, dir string) (Listing, bool, error) {
	var l Listing
	ok, err := m.getJSON(ctx, BrowseKey(folder, dir), &l)
	return l, ok, err
}

// PutListing caches a directory listing.
func (m *Mirror) PutListing(ctx context.Context, folder, dir string, entries []models.Entry, fetchedAt time.Time) error {
	return m.putJSON(ctx, BrowseKey(folder, dir), Listing{Entries: entries, FetchedAt: fetchedAt})
}

// SyncState returns the cached state of one file.
func (m *Mirror) SyncState(ctx context.Context, folder, path string) (models.SyncState, bool, error) {
	v, ok, err := m.kv.Get(ctx, StateKey(folder, path))
	if err != nil || !ok {
		return models.SyncStateUnknown, false, err
	}
	return models.ParseSyncState(string(v)), true, nil
}

// PutSyncState caches the state of one file.
func (m *Mirror) PutSyncState(ctx context.Context, folder, path string, s models.SyncState) error {
	return m.kv.Put(ctx, StateKey(folder, path), []byte(s.String()))
}

// SyncStates returns the cached states of the named children of dir.
// Names without a cached state are absent from the result.
func (m *Mirror) SyncStates(ctx context.Context, folder, dir string, names []string) (map[string]models.SyncState, error) {
	out := make(map[string]models.SyncState, len(names))
	for _, name := range names {
		s, ok, err := m.SyncState(ctx, folder, models.JoinPath(dir, name))
		if err != nil {
			return out, err
		}
		if ok {
			out[name] = s
		}
	}
	return out, nil
}

// Watermark returns the persisted event resume point for a daemon, or 0.
func (m *Mirror) Watermark(ctx context.Context, baseURL string) (uint64, error) {
	v, ok, err := m.kv.Get(ctx, WatermarkKey(baseURL))
	if err != nil || !ok {
		return 0, err
	}
	id, err := strconv.ParseUint(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt watermark %q: %w", v, err)
	}
	return id, nil
}

// PutWatermark persists the event resume point for a daemon.
func (m *Mirror) PutWatermark(ctx context.Context, baseURL string, id uint64) error {
	return m.kv.Put(ctx, WatermarkKey(baseURL), []byte(strconv.FormatUint(id, 10)))
}

// Folders returns the cached folder list.
func (m *Mirror) Folders(ctx context.Context) ([]models.Folder, bool, error) {
	var fs []models.Folder
	ok, err := m.getJSON(ctx, keyFolders, &fs)
	return fs, ok, err
}

// PutFolders caches the folder list.
func (m *Mirror) PutFolders(ctx context.Context, folders []models.Folder) error {
	return m.putJSON(ctx, keyFolders, folders)
}

// Fingerprint returns the persisted staleness fingerprint of a folder.
func (m *Mirror) Fingerprint(ctx context.Context, folder string) (perf.Fingerprint, bool, error) {
	var fp perf.Fingerprint
	ok, err := m.getJSON(ctx, nsFolder+url.PathEscape(folder), &fp)
	return fp, ok, err
}

// PutFingerprint persists a folder's staleness fingerprint.
func (m *Mirror) PutFingerprint(ctx context.Context, folder string, fp perf.Fingerprint) error {
	return m.putJSON(ctx, nsFolder+url.PathEscape(folder), fp)
}

// EvictFile drops one file's cached state.
func (m *Mirror) EvictFile(ctx context.Context, folder, path string) error {
	return m.kv.Invalidate(ctx, StateKey(folder, path))
}

// EvictListing drops one directory's cached listing, leaving nested ones.
func (m *Mirror) EvictListing(ctx context.Context, folder, dir string) error {
	return m.kv.Invalidate(ctx, BrowseKey(folder, dir))
}

// EvictDir drops the listing and file states of dir and everything nested
// under it. Matching is by whole path segment: evicting "Messages" leaves
// "Message2" alone.
func (m *Mirror) EvictDir(ctx context.Context, folder, dir string) error {
	if clean(dir) != "" {
		if err := m.kv.Invalidate(ctx, BrowseKey(folder, dir)); err != nil {
			return err
		}
		if err := m.kv.Invalidate(ctx, StateKey(folder, dir)); err != nil {
			return err
		}
	}
	if err := m.kv.InvalidatePrefix(ctx, subtreePrefix(nsBrowse, folder, dir)); err != nil {
		return err
	}
	return m.kv.InvalidatePrefix(ctx, subtreePrefix(nsState, folder, dir))
}

// EvictFolder drops everything cached for a folder.
func (m *Mirror) EvictFolder(ctx context.Context, folder string) error {
	if err := m.EvictDir(ctx, folder, ""); err != nil {
		return err
	}
	return m.kv.Invalidate(ctx, nsFolder+url.PathEscape(folder))
}

func (m *Mirror) getJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := m.kv.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		// A value we cannot read is as good as absent; drop it so it is refetched.
		_ = m.kv.Invalidate(ctx, key)
		return false, nil
	}
	return true, nil
}

func (m *Mirror) putJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return m.kv.Put(ctx, key, raw)
}
