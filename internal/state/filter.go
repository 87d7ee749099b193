package state

import (
	"strings"
	"time"

	"github.com/syncbrowse/syncbrowse/internal/models"
)

// OutOfSyncFilterState restricts every level to entries that are out of sync,
// or directories containing something that is.
type OutOfSyncFilterState struct {
	// ActivatedAt is the focus index at which the filter was turned on.
	ActivatedAt int
	// RefreshedAt is when the out-of-sync path set was last replaced.
	RefreshedAt time.Time

	files map[string]map[string]struct{} // folder -> out-of-sync paths
	dirs  map[string]map[string]struct{} // folder -> ancestors of those paths
}

func newOutOfSync(paths map[string][]string, activatedAt int, now time.Time) *OutOfSyncFilterState {
	f := &OutOfSyncFilterState{ActivatedAt: activatedAt}
	f.replace(paths, now)
	return f
}

func (f *OutOfSyncFilterState) replace(paths map[string][]string, now time.Time) {
	f.files = make(map[string]map[string]struct{}, len(paths))
	f.dirs = make(map[string]map[string]struct{}, len(paths))
	for folder, list := range paths {
		files := make(map[string]struct{}, len(list))
		dirs := make(map[string]struct{})
		for _, p := range list {
			p = strings.Trim(p, "/")
			if p == "" {
				continue
			}
			files[p] = struct{}{}
			for d := models.ParentDir(p); d != ""; d = models.ParentDir(d) {
				dirs[d] = struct{}{}
			}
		}
		f.files[folder] = files
		f.dirs[folder] = dirs
	}
	f.RefreshedAt = now
}

// Keep reports whether an entry of a level survives the filter. A file is
// kept iff its full path is in the set. A directory is kept iff some path in
// the set lies strictly under it.
func (f *OutOfSyncFilterState) Keep(folder, prefix string, e models.Entry) bool {
	full := models.JoinPath(prefix, e.Name)
	if e.IsDir() {
		_, ok := f.dirs[folder][full]
		return ok
	}
	_, ok := f.files[folder][full]
	return ok
}

// Count returns the number of out-of-sync paths known for a folder.
func (f *OutOfSyncFilterState) Count(folder string) int {
	return len(f.files[folder])
}

// Contains reports whether a path is in the out-of-sync set.
func (f *OutOfSyncFilterState) Contains(folder, path string) bool {
	_, ok := f.files[folder][strings.Trim(path, "/")]
	return ok
}

// SearchFilterState restricts every level to names containing Query,
// ignoring case.
type SearchFilterState struct {
	Query       string
	ActivatedAt int

	folded string
}

func newSearch(query string, activatedAt int) *SearchFilterState {
	return &SearchFilterState{Query: query, ActivatedAt: activatedAt, folded: strings.ToLower(query)}
}

// Keep reports whether an entry matches the query.
func (s *SearchFilterState) Keep(e models.Entry) bool {
	return strings.Contains(strings.ToLower(e.Name), s.folded)
}
