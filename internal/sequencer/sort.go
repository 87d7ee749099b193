package sequencer

import (
	"slices"
	"strings"
	"time"

	"github.com/syncbrowse/syncbrowse/internal/models"
)

// SortMode selects the primary key used to order a directory level.
type SortMode int

const (
	SortByName SortMode = iota
	SortBySyncState
	SortByModified
	SortBySize
)

// String returns the label shown in the status bar.
func (m SortMode) String() string {
	switch m {
	case SortByName:
		return "name"
	case SortBySyncState:
		return "state"
	case SortByModified:
		return "modified"
	case SortBySize:
		return "size"
	default:
		return "unknown"
	}
}

// Next cycles name -> state -> modified -> size -> name.
func (m SortMode) Next() SortMode {
	return (m + 1) % 4
}

// ParseSortMode maps a label back to a mode; unknown labels return SortByName.
func ParseSortMode(s string) SortMode {
	switch strings.ToLower(s) {
	case "state", "sync-state", "syncstate":
		return SortBySyncState
	case "modified", "mtime", "date":
		return SortByModified
	case "size":
		return SortBySize
	default:
		return SortByName
	}
}

// Item is the projection of a directory entry the comparators work on.
type Item struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
	State   models.SyncState
}

// Compare orders a and b under mode, returning <0, 0 or >0.
//
// Directories sort before files, then the mode's key applies (newest first for
// ByModified, largest first for BySize, most severe first for BySyncState),
// then the case-folded name, then the exact name. Names are unique within a
// level, so the order is total and Compare(a, b) == -Compare(b, a).
func Compare(mode SortMode, a, b Item) int {
	if a.IsDir != b.IsDir {
		if a.IsDir {
			return -1
		}
		return 1
	}

	switch mode {
	case SortBySyncState:
		if c := a.State.Severity() - b.State.Severity(); c != 0 {
			return sign(c)
		}
	case SortByModified:
		if c := b.ModTime.Compare(a.ModTime); c != 0 {
			return c
		}
	case SortBySize:
		if a.Size != b.Size {
			if a.Size > b.Size {
				return -1
			}
			return 1
		}
	}

	if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

// Sort orders items in place. Reverse swaps the arguments of Compare, so a
// reversed sort is exactly the mirror image of the forward sort.
func Sort(items []Item, mode SortMode, reverse bool) {
	slices.SortStableFunc(items, func(a, b Item) int {
		if reverse {
			return Compare(mode, b, a)
		}
		return Compare(mode, a, b)
	})
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
