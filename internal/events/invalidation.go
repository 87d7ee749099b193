package events

import (
	"strings"

	"github.com/syncbrowse/syncbrowse/internal/models"
)

// CacheInvalidation tells the router which part of the mirror is stale.
// The set of variants is closed: File and Directory.
type CacheInvalidation interface {
	Folder() string
	isInvalidation()
}

// File invalidates one file's cached state and its directory listing.
type File struct {
	FolderID string
	Path     string
}

// Directory invalidates a directory and everything nested under it.
type Directory struct {
	FolderID string
	Path     string
}

func (f File) Folder() string      { return f.FolderID }
func (d Directory) Folder() string { return d.FolderID }
func (File) isInvalidation()       {}
func (Directory) isInvalidation()  {}

// ClassifyItem turns a single changed item into an invalidation: Directory
// when the type says so or the path ends in a separator, File otherwise.
func ClassifyItem(folder, item, itemType string) CacheInvalidation {
	if models.IsDirectoryType(itemType) || strings.HasSuffix(item, "/") {
		return Directory{FolderID: folder, Path: strings.Trim(item, "/")}
	}
	return File{FolderID: folder, Path: item}
}

// Invalidations returns the cache invalidations implied by a payload.
func Invalidations(p Payload) []CacheInvalidation {
	switch p := p.(type) {
	case IndexUpdated:
		out := make([]CacheInvalidation, 0, len(p.Filenames))
		for _, name := range p.Filenames {
			out = append(out, File{FolderID: p.Folder, Path: name})
		}
		return out
	case ItemChanged:
		return []CacheInvalidation{ClassifyItem(p.Folder, p.Item, p.ItemType)}
	}
	return nil
}

// Gap records a break in the event ID sequence.
type Gap struct {
	LastID  uint64
	EventID uint64
}

// Missed returns how many event IDs were skipped. Zero when the feed went
// backwards (daemon restart).
func (g Gap) Missed() uint64 {
	if g.EventID <= g.LastID+1 {
		return 0
	}
	return g.EventID - g.LastID - 1
}

// BatchResult is the outcome of processing one long-poll response.
type BatchResult struct {
	LastID        uint64
	Invalidations []CacheInvalidation
	Payloads      []Payload
	Gaps          []Gap
}

// ProcessBatch walks a batch in arrival order. Every event advances the last
// ID regardless of kind; an ID other than last+1 (with last > 0) is a gap,
// which is reported but not recovered.
func ProcessBatch(lastID uint64, batch []RawEvent) BatchResult {
	res := BatchResult{LastID: lastID}
	for _, ev := range batch {
		if res.LastID > 0 && ev.ID != res.LastID+1 {
			res.Gaps = append(res.Gaps, Gap{LastID: res.LastID, EventID: ev.ID})
		}
		p := Decode(ev)
		if _, ignored := p.(Ignored); !ignored {
			res.Payloads = append(res.Payloads, p)
		}
		res.Invalidations = append(res.Invalidations, Invalidations(p)...)
		res.LastID = ev.ID
	}
	return res
}
