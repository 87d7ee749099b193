package state

import (
	"strings"
	"time"

	"github.com/syncbrowse/syncbrowse/internal/models"
	"github.com/syncbrowse/syncbrowse/internal/sequencer"
)

// NavigationState is the breadcrumb trail plus everything that applies across
// it: the folder list, the focus pointer, sort order, and active filters.
//
// Focus 0 is the folder list; focus n (1..len(trail)) is trail level n.
type NavigationState struct {
	Folders     []models.Folder
	FolderIndex int

	Focus   int
	Sort    sequencer.SortMode
	Reverse bool

	OutOfSync *OutOfSyncFilterState
	Search    *SearchFilterState

	trail []*BreadcrumbLevel
}

// New creates an empty navigation state sorted by name.
func New() *NavigationState {
	return &NavigationState{FolderIndex: -1, Sort: sequencer.SortByName}
}

// SetFolders replaces the folder list, keeping the selected folder by ID.
func (n *NavigationState) SetFolders(folders []models.Folder) {
	var selected string
	if f, ok := n.SelectedFolder(); ok {
		selected = f.ID
	}
	n.Folders = folders
	n.FolderIndex = sequencer.ClampSelection(0, len(folders))
	for i, f := range folders {
		if f.ID == selected {
			n.FolderIndex = i
			break
		}
	}
}

// SelectedFolder returns the folder under the folder-list cursor.
func (n *NavigationState) SelectedFolder() (models.Folder, bool) {
	if n.FolderIndex < 0 || n.FolderIndex >= len(n.Folders) {
		return models.Folder{}, false
	}
	return n.Folders[n.FolderIndex], true
}

// SelectFolder moves the folder cursor to i and drops the trail, which
// belonged to the previous folder.
func (n *NavigationState) SelectFolder(i int) bool {
	if i < 0 || i >= len(n.Folders) {
		return false
	}
	n.FolderIndex = i
	n.trail = nil
	n.Focus = 0
	return true
}

// Trail returns the levels, outermost first. Callers must not mutate it.
func (n *NavigationState) Trail() []*BreadcrumbLevel {
	return n.trail
}

// Len returns the trail length.
func (n *NavigationState) Len() int {
	return len(n.trail)
}

// Level returns trail level i (1-based, matching Focus).
func (n *NavigationState) Level(i int) *BreadcrumbLevel {
	if i < 1 || i > len(n.trail) {
		return nil
	}
	return n.trail[i-1]
}

// FocusedLevel returns the focused level, or nil when the folder list has focus.
func (n *NavigationState) FocusedLevel() *BreadcrumbLevel {
	return n.Level(n.Focus)
}

// LastLevel returns the deepest level, or nil.
func (n *NavigationState) LastLevel() *BreadcrumbLevel {
	return n.Level(len(n.trail))
}

// PushLevel opens a level for prefix directly after the focused one,
// discarding any deeper levels, and focuses it. Active filters and the sort
// order are applied before PushLevel returns.
//
// A nil entries slice that did not come from the cache leaves the level in
// the loading state until SetLevelEntries delivers the listing.
func (n *NavigationState) PushLevel(folderID, prefix, basePath string, entries []models.Entry, cached bool) *BreadcrumbLevel {
	l := newLevel(folderID, prefix, basePath)
	l.setSource(entries)
	l.Loading = entries == nil && !cached
	n.apply(l)

	n.trail = append(n.trail[:n.Focus], l)
	n.Focus = len(n.trail)
	return l
}

// SetLevelEntries delivers a fresh listing to a level.
func (n *NavigationState) SetLevelEntries(l *BreadcrumbLevel, entries []models.Entry, now time.Time) {
	l.setSource(entries)
	l.Loading = false
	l.Stale = false
	l.Err = nil
	l.LoadedAt = now
	n.apply(l)
}

// SetLevelError records a failed load. The previous entries stay visible.
func (n *NavigationState) SetLevelError(l *BreadcrumbLevel, err error) {
	l.Loading = false
	l.Err = err
}

// SetStates merges known sync states into a level. Filters do not look at
// sync states, so only the order of the visible entries can change.
func (n *NavigationState) SetStates(l *BreadcrumbLevel, states map[string]models.SyncState) {
	for name, s := range states {
		l.States[name] = s
	}
	if n.Sort == sequencer.SortBySyncState {
		n.SortLevel(l)
	}
}

// PopLevel drops the deepest level and clamps focus.
func (n *NavigationState) PopLevel() bool {
	if len(n.trail) == 0 {
		return false
	}
	n.trail[len(n.trail)-1] = nil
	n.trail = n.trail[:len(n.trail)-1]
	if n.Focus > len(n.trail) {
		n.Focus = len(n.trail)
	}
	return true
}

// SetFocus moves the focus pointer, clamped to the trail. Levels are untouched.
func (n *NavigationState) SetFocus(i int) {
	switch {
	case i < 0:
		i = 0
	case i > len(n.trail):
		i = len(n.trail)
	}
	n.Focus = i
}

// CycleFocus moves focus to the next pane, wrapping to the folder list.
func (n *NavigationState) CycleFocus() {
	n.Focus = (n.Focus + 1) % (len(n.trail) + 1)
}

// MoveSelection moves the cursor of the focused pane by delta, wrapping.
func (n *NavigationState) MoveSelection(delta int) {
	if n.Focus == 0 {
		n.FolderIndex = sequencer.WrapSelection(n.FolderIndex, delta, len(n.Folders))
		return
	}
	if l := n.FocusedLevel(); l != nil {
		l.Selected = sequencer.WrapSelection(l.Selected, delta, len(l.Entries))
	}
}

// SetSortMode switches every level to mode and resets the reverse flag.
func (n *NavigationState) SetSortMode(mode sequencer.SortMode) {
	n.Sort = mode
	n.Reverse = false
	n.applyAll()
}

// ToggleReverse flips the sort direction of every level.
func (n *NavigationState) ToggleReverse() {
	n.Reverse = !n.Reverse
	n.applyAll()
}

// SortLevel re-sorts one level in place, keeping its selection.
func (n *NavigationState) SortLevel(l *BreadcrumbLevel) {
	name := l.SelectedName()
	n.sortEntries(l, l.Entries)
	l.selectName(name)
}

// EnableOutOfSync turns on the out-of-sync filter with the given folder ->
// paths set. It applies to every level, current and future, until disabled.
func (n *NavigationState) EnableOutOfSync(paths map[string][]string, now time.Time) {
	n.OutOfSync = newOutOfSync(paths, n.Focus, now)
	n.applyAll()
}

// UpdateOutOfSync replaces the path set of an active filter.
func (n *NavigationState) UpdateOutOfSync(paths map[string][]string, now time.Time) {
	if n.OutOfSync == nil {
		return
	}
	n.OutOfSync.replace(paths, now)
	n.applyAll()
}

// DisableOutOfSync clears the out-of-sync filter.
func (n *NavigationState) DisableOutOfSync() {
	if n.OutOfSync == nil {
		return
	}
	n.OutOfSync = nil
	n.applyAll()
}

// SetSearch filters every level by a case-insensitive name substring.
// An empty query clears the search.
func (n *NavigationState) SetSearch(query string) {
	if strings.TrimSpace(query) == "" {
		n.ClearSearch()
		return
	}
	at := n.Focus
	if n.Search != nil {
		at = n.Search.ActivatedAt
	}
	n.Search = newSearch(query, at)
	n.applyAll()
}

// ClearSearch removes the search filter.
func (n *NavigationState) ClearSearch() {
	if n.Search == nil {
		return
	}
	n.Search = nil
	n.applyAll()
}

// ActiveFilters returns labels for the filters in effect.
func (n *NavigationState) ActiveFilters() []string {
	var out []string
	if n.OutOfSync != nil {
		out = append(out, "out-of-sync")
	}
	if n.Search != nil {
		out = append(out, "search:"+n.Search.Query)
	}
	return out
}

// FindLevels returns the levels showing dir of folder.
func (n *NavigationState) FindLevels(folder, dir string) []*BreadcrumbLevel {
	dir = strings.Trim(dir, "/")
	var out []*BreadcrumbLevel
	for _, l := range n.trail {
		if l.FolderID == folder && l.Prefix == dir {
			out = append(out, l)
		}
	}
	return out
}

// MarkStale flags the levels showing dir of folder for reload and returns them.
func (n *NavigationState) MarkStale(folder, dir string) []*BreadcrumbLevel {
	levels := n.FindLevels(folder, dir)
	for _, l := range levels {
		l.Stale = true
	}
	return levels
}

func (n *NavigationState) applyAll() {
	for _, l := range n.trail {
		n.apply(l)
	}
}

// apply recomputes a level's visible entries from its source, keeping the
// selected name when it survives.
func (n *NavigationState) apply(l *BreadcrumbLevel) {
	name := l.SelectedName()

	visible := make([]models.Entry, 0, len(l.source))
	for _, e := range l.source {
		if n.OutOfSync != nil && !n.OutOfSync.Keep(l.FolderID, l.Prefix, e) {
			continue
		}
		if n.Search != nil && !n.Search.Keep(e) {
			continue
		}
		visible = append(visible, e)
	}
	n.sortEntries(l, visible)

	l.Entries = visible
	l.selectName(name)
}

func (n *NavigationState) sortEntries(l *BreadcrumbLevel, entries []models.Entry) {
	items := make([]sequencer.Item, len(entries))
	byName := make(map[string]models.Entry, len(entries))
	for i, e := range entries {
		items[i] = sequencer.Item{
			Name:    e.Name,
			IsDir:   e.IsDir(),
			Size:    e.Size,
			ModTime: e.ModTime,
			State:   l.States[e.Name],
		}
		byName[e.Name] = e
	}
	sequencer.Sort(items, n.Sort, n.Reverse)
	for i, it := range items {
		entries[i] = byName[it.Name]
	}
}
