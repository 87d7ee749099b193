// Package state holds the navigation stack: the breadcrumb trail of directory
// levels the operator has drilled through, the focus pointer, per-level
// selection, sort order, and the cross-level filters.
//
// Filters and sort order live on NavigationState, not on the levels. A level
// keeps the entries it was loaded with and a derived visible list, and the
// derived list is recomputed in one step whenever the level is loaded or the
// filter or sort set changes. Nothing in between is observable.
//
// Not safe for concurrent use; the control loop owns it.
package state

import (
	"strings"
	"time"

	"github.com/syncbrowse/syncbrowse/internal/models"
)

// BreadcrumbLevel is one directory listing in the trail.
type BreadcrumbLevel struct {
	FolderID string
	// Prefix is the folder-relative directory ("" for the folder root).
	Prefix string
	// BasePath is the translated on-disk path of Prefix.
	BasePath string

	// Entries is the visible list: source entries after filters and sort.
	Entries []models.Entry
	// States maps entry name to its sync state, when known.
	States map[string]models.SyncState
	// Selected indexes Entries, or -1 when nothing is selected.
	Selected int

	Loading  bool
	Stale    bool
	Err      error
	LoadedAt time.Time

	source []models.Entry
}

func newLevel(folderID, prefix, basePath string) *BreadcrumbLevel {
	return &BreadcrumbLevel{
		FolderID: folderID,
		Prefix:   strings.Trim(prefix, "/"),
		BasePath: basePath,
		States:   make(map[string]models.SyncState),
		Selected: -1,
	}
}

// setSource replaces the unfiltered entries, keeping names unique. A later
// duplicate replaces the earlier one in place.
func (l *BreadcrumbLevel) setSource(entries []models.Entry) {
	src := make([]models.Entry, 0, len(entries))
	at := make(map[string]int, len(entries))
	for _, e := range entries {
		if i, dup := at[e.Name]; dup {
			src[i] = e
			continue
		}
		at[e.Name] = len(src)
		src = append(src, e)
	}
	l.source = src

	for name := range l.States {
		if _, ok := at[name]; !ok {
			delete(l.States, name)
		}
	}
}

// Source returns the unfiltered entries as loaded.
func (l *BreadcrumbLevel) Source() []models.Entry {
	return l.source
}

// Path returns the folder-relative path of a child of this level.
func (l *BreadcrumbLevel) Path(name string) string {
	return models.JoinPath(l.Prefix, name)
}

// SelectedEntry returns the selected visible entry.
func (l *BreadcrumbLevel) SelectedEntry() (models.Entry, bool) {
	if l.Selected < 0 || l.Selected >= len(l.Entries) {
		return models.Entry{}, false
	}
	return l.Entries[l.Selected], true
}

// SelectedName returns the selected entry's name, or "".
func (l *BreadcrumbLevel) SelectedName() string {
	e, ok := l.SelectedEntry()
	if !ok {
		return ""
	}
	return e.Name
}

// State returns the known sync state of a child.
func (l *BreadcrumbLevel) State(name string) models.SyncState {
	return l.States[name]
}

// MissingStates returns the names of visible entries with no known state.
func (l *BreadcrumbLevel) MissingStates() []string {
	var out []string
	for _, e := range l.Entries {
		if _, ok := l.States[e.Name]; !ok {
			out = append(out, e.Name)
		}
	}
	return out
}

// selectName selects the visible entry called name, falling back to the
// first entry, or none when the level is empty.
func (l *BreadcrumbLevel) selectName(name string) {
	if name != "" {
		for i, e := range l.Entries {
			if e.Name == name {
				l.Selected = i
				return
			}
		}
	}
	if len(l.Entries) == 0 {
		l.Selected = -1
		return
	}
	l.Selected = 0
}
