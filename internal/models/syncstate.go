package models

import (
	"fmt"
	"strings"
)

// SyncState classifies how a local copy relates to the global state.
type SyncState int

const (
	SyncStateUnknown SyncState = iota
	SyncStateSynced
	SyncStateSyncing
	SyncStateLocallyChanged
	SyncStateRemoteOnly
	SyncStateIgnored
	SyncStateConflicted
	SyncStateError
)

var syncStateNames = map[SyncState]string{
	SyncStateUnknown:        "unknown",
	SyncStateSynced:         "synced",
	SyncStateSyncing:        "syncing",
	SyncStateLocallyChanged: "locally-changed",
	SyncStateRemoteOnly:     "remote-only",
	SyncStateIgnored:        "ignored",
	SyncStateConflicted:     "conflicted",
	SyncStateError:          "error",
}

// String returns the state's stable name, used as its persisted form.
func (s SyncState) String() string {
	if name, ok := syncStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SyncState(%d)", int(s))
}

// ParseSyncState is the inverse of String. Unrecognized names map to SyncStateUnknown.
func ParseSyncState(name string) SyncState {
	for state, n := range syncStateNames {
		if n == name {
			return state
		}
	}
	return SyncStateUnknown
}

// Severity ranks states for sorting: states needing attention sort first.
func (s SyncState) Severity() int {
	switch s {
	case SyncStateError:
		return 0
	case SyncStateConflicted:
		return 1
	case SyncStateLocallyChanged:
		return 2
	case SyncStateSyncing:
		return 3
	case SyncStateRemoteOnly:
		return 4
	case SyncStateIgnored:
		return 5
	case SyncStateSynced:
		return 6
	default:
		return 7
	}
}

// OutOfSync reports whether the state should survive the out-of-sync filter.
func (s SyncState) OutOfSync() bool {
	switch s {
	case SyncStateSyncing, SyncStateLocallyChanged, SyncStateRemoteOnly, SyncStateConflicted, SyncStateError:
		return true
	}
	return false
}

// conflictMarker is inserted into the name of conflict copies by the daemon.
const conflictMarker = ".sync-conflict-"

// IsConflictName reports whether a file name is a conflict copy.
func IsConflictName(name string) bool {
	return strings.Contains(name, conflictMarker)
}

// DeriveSyncState computes an entry's state from its file detail.
// needed reports whether the path is currently in the folder's need list.
// Checks are ordered so the most specific explanation wins.
func DeriveSyncState(name string, detail *FileDetail, needed bool) SyncState {
	if detail == nil {
		if needed {
			return SyncStateSyncing
		}
		return SyncStateUnknown
	}
	local, global := detail.Local, detail.Global

	if (local != nil && (local.Ignored || local.LocalFlags&FlagLocalIgnored != 0)) ||
		(global != nil && global.Ignored) {
		return SyncStateIgnored
	}
	if IsConflictName(name) {
		return SyncStateConflicted
	}
	if local != nil && local.LocalFlags&FlagLocalReceiveOnly != 0 {
		return SyncStateLocallyChanged
	}
	if (local == nil || local.Deleted) && global != nil && !global.Deleted {
		if needed {
			return SyncStateSyncing
		}
		return SyncStateRemoteOnly
	}
	if needed {
		return SyncStateSyncing
	}
	if local != nil && (local.Invalid || local.NoPermissions || local.LocalFlags&FlagLocalUnsupported != 0) {
		return SyncStateError
	}
	return SyncStateSynced
}
