// Package apitest provides an in-memory api.Remote for tests.
package apitest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/syncbrowse/syncbrowse/internal/api"
	"github.com/syncbrowse/syncbrowse/internal/models"
)

// Fake is a scripted daemon. Zero values mean "nothing configured": unknown
// folders and paths return api.ErrNotFound wrapped in an *api.HTTPError.
type Fake struct {
	mu sync.Mutex

	FolderList []models.Folder
	Status     map[string]models.FolderStatus
	Listings   map[string]map[string][]models.Entry // folder -> prefix -> entries
	Details    map[string]map[string]*models.FileDetail
	Needed     map[string][]string
	IgnoreList map[string][]string
	VersionMap map[string]map[string][]models.FileVersion

	// Errors forces a method (by name, e.g. "Browse") to fail.
	Errors map[string]error

	calls    []string
	restored map[string]map[string]time.Time
	scans    []string
	reverts  []string
}

var _ api.Remote = (*Fake)(nil)

// NewFake returns an empty fake daemon.
func NewFake() *Fake {
	return &Fake{
		Status:     make(map[string]models.FolderStatus),
		Listings:   make(map[string]map[string][]models.Entry),
		Details:    make(map[string]map[string]*models.FileDetail),
		Needed:     make(map[string][]string),
		IgnoreList: make(map[string][]string),
		VersionMap: make(map[string]map[string][]models.FileVersion),
		Errors:     make(map[string]error),
		restored:   make(map[string]map[string]time.Time),
	}
}

// SetListing scripts the children of prefix.
func (f *Fake) SetListing(folder, prefix string, entries ...models.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Listings[folder] == nil {
		f.Listings[folder] = make(map[string][]models.Entry)
	}
	f.Listings[folder][strings.Trim(prefix, "/")] = entries
}

// SetDetail scripts the file record for a path.
func (f *Fake) SetDetail(folder, path string, d *models.FileDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Details[folder] == nil {
		f.Details[folder] = make(map[string]*models.FileDetail)
	}
	f.Details[folder][path] = d
}

// SetStatus scripts a folder status.
func (f *Fake) SetStatus(folder string, st models.FolderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Status[folder] = st
}

// Calls returns "Method folder path" strings in call order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount counts calls whose record starts with prefix.
func (f *Fake) CallCount(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Restored returns what RestoreVersions was asked to restore.
func (f *Fake) Restored(folder string) map[string]time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restored[folder]
}

// Scans returns the recorded rescans as "folder:sub".
func (f *Fake) Scans() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.scans...)
}

// Reverts returns the folders reverted.
func (f *Fake) Reverts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reverts...)
}

func (f *Fake) record(method string, args ...string) error {
	f.calls = append(f.calls, strings.TrimSpace(method+" "+strings.Join(args, " ")))
	return f.Errors[method]
}

func notFound(path string) error {
	return &api.HTTPError{StatusCode: 404, Method: "GET", Path: path, Body: "no such object"}
}

func (f *Fake) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("Ping")
}

func (f *Fake) Folders(ctx context.Context) ([]models.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Folders"); err != nil {
		return nil, err
	}
	return append([]models.Folder(nil), f.FolderList...), nil
}

func (f *Fake) FolderStatus(ctx context.Context, folder string) (models.FolderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("FolderStatus", folder); err != nil {
		return models.FolderStatus{}, err
	}
	st, ok := f.Status[folder]
	if !ok {
		return st, notFound("/rest/db/status")
	}
	return st, nil
}

func (f *Fake) Browse(ctx context.Context, folder, prefix string) ([]models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix = strings.Trim(prefix, "/")
	if err := f.record("Browse", folder, prefix); err != nil {
		return nil, err
	}
	entries, ok := f.Listings[folder][prefix]
	if !ok {
		return []models.Entry{}, nil
	}
	return append([]models.Entry(nil), entries...), nil
}

func (f *Fake) Need(ctx context.Context, folder string) (models.NeedResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Need", folder); err != nil {
		return models.NeedResponse{}, err
	}
	var resp models.NeedResponse
	for _, p := range f.Needed[folder] {
		resp.Rest = append(resp.Rest, models.NeedItem{Name: p})
	}
	return resp, nil
}

func (f *Fake) File(ctx context.Context, folder, path string) (*models.FileDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("File", folder, path); err != nil {
		return nil, err
	}
	d, ok := f.Details[folder][path]
	if !ok {
		return nil, notFound("/rest/db/file")
	}
	return d, nil
}

func (f *Fake) Ignores(ctx context.Context, folder string) (models.Ignores, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Ignores", folder); err != nil {
		return models.Ignores{}, err
	}
	return models.Ignores{Ignore: append([]string(nil), f.IgnoreList[folder]...)}, nil
}

func (f *Fake) SetIgnores(ctx context.Context, folder string, patterns []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetIgnores", folder); err != nil {
		return err
	}
	f.IgnoreList[folder] = append([]string(nil), patterns...)
	return nil
}

func (f *Fake) Revert(ctx context.Context, folder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Revert", folder); err != nil {
		return err
	}
	f.reverts = append(f.reverts, folder)
	return nil
}

func (f *Fake) Versions(ctx context.Context, folder string) (map[string][]models.FileVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Versions", folder); err != nil {
		return nil, err
	}
	out := make(map[string][]models.FileVersion)
	for p, vs := range f.VersionMap[folder] {
		out[p] = append([]models.FileVersion(nil), vs...)
	}
	return out, nil
}

func (f *Fake) RestoreVersions(ctx context.Context, folder string, versions map[string]time.Time) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RestoreVersions", folder); err != nil {
		return nil, err
	}
	if f.restored[folder] == nil {
		f.restored[folder] = make(map[string]time.Time)
	}
	failed := map[string]string{}
	for p, v := range versions {
		if _, ok := f.VersionMap[folder][p]; !ok {
			failed[p] = fmt.Sprintf("no versions for %s", p)
			continue
		}
		f.restored[folder][p] = v
	}
	return failed, nil
}

func (f *Fake) Scan(ctx context.Context, folder, sub string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Scan", folder, sub); err != nil {
		return err
	}
	f.scans = append(f.scans, folder+":"+strings.Trim(sub, "/"))
	return nil
}

// FolderIDs returns the configured folder IDs, sorted.
func (f *Fake) FolderIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.FolderList))
	for _, fo := range f.FolderList {
		ids = append(ids, fo.ID)
	}
	sort.Strings(ids)
	return ids
}
