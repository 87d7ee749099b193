package perf

import (
	"sort"
	"strings"

	"github.com/syncbrowse/syncbrowse/internal/models"
)

// Kind selects one of the in-flight sets.
type Kind int

const (
	// KindFolder guards folder status loads, keyed Key(folder, "")
	KindFolder Kind = iota
	// KindBrowse guards directory listings, keyed Key(folder, prefix)
	KindBrowse
	// KindSyncState guards per-file state and need queries, keyed Key(folder, path)
	KindSyncState

	numKinds
)

// String returns the kind's log label.
func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindBrowse:
		return "browse"
	case KindSyncState:
		return "sync-state"
	default:
		return "unknown"
	}
}

// Key builds the "folder:path" ledger key.
func Key(folder, path string) string {
	return folder + ":" + strings.Trim(path, "/")
}

// Ticket identifies one admitted fetch. It is handed back to Finish when the
// fetch resolves, whatever the outcome.
type Ticket struct {
	Kind Kind
	Key  string
	gen  uint64
}

type inflight struct {
	gen        uint64
	superseded bool
}

// Ledger guarantees at most one outstanding fetch per (kind, key) and tracks
// which directories are already known to exist.
//
// Invalidation does not release an in-flight guard: it marks it superseded.
// The running fetch keeps the slot, so no second fetch for the key can start,
// and Finish reports that the result is already stale so the caller fetches
// again once the slot is free.
//
// A Ledger is owned by the control loop and is not safe for concurrent use.
type Ledger struct {
	sets       [numKinds]map[string]*inflight
	gen        uint64
	discovered map[string]map[string]struct{} // folder -> dir set
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	l := &Ledger{discovered: make(map[string]map[string]struct{})}
	for i := range l.sets {
		l.sets[i] = make(map[string]*inflight)
	}
	return l
}

// Begin admits a fetch for key. It returns false, and no ticket, when a fetch
// for the same key is already outstanding.
func (l *Ledger) Begin(kind Kind, key string) (Ticket, bool) {
	set := l.sets[kind]
	if _, busy := set[key]; busy {
		return Ticket{}, false
	}
	l.gen++
	set[key] = &inflight{gen: l.gen}
	return Ticket{Kind: kind, Key: key, gen: l.gen}, true
}

// Finish releases the guard held by t. It must be called exactly once per
// admitted fetch, on success and on failure. The result reports whether the
// key was invalidated while the fetch was running. Tickets that no longer own
// their slot are ignored.
func (l *Ledger) Finish(t Ticket) (superseded bool) {
	set := l.sets[t.Kind]
	entry, ok := set[t.Key]
	if !ok || entry.gen != t.gen {
		return false
	}
	delete(set, t.Key)
	return entry.superseded
}

// InFlight reports whether a fetch for key is outstanding.
func (l *Ledger) InFlight(kind Kind, key string) bool {
	_, ok := l.sets[kind][key]
	return ok
}

// Len returns the number of outstanding fetches of one kind.
func (l *Ledger) Len(kind Kind) int {
	return len(l.sets[kind])
}

// Supersede marks an outstanding fetch as stale. No-op when nothing is in flight.
func (l *Ledger) Supersede(kind Kind, key string) bool {
	entry, ok := l.sets[kind][key]
	if !ok {
		return false
	}
	entry.superseded = true
	return true
}

// DropDir invalidates the guards covering one directory of a folder: the
// browse of dir itself and the sync-state queries for its direct children.
// Returns the number of in-flight fetches marked superseded.
func (l *Ledger) DropDir(folder, dir string) int {
	dir = strings.Trim(dir, "/")
	n := 0
	if l.Supersede(KindBrowse, Key(folder, dir)) {
		n++
	}
	prefix := folder + ":"
	for key, entry := range l.sets[KindSyncState] {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if models.ParentDir(key[len(prefix):]) == dir {
			entry.superseded = true
			n++
		}
	}
	return n
}

// DropTree invalidates every browse and sync-state guard at or under dir.
func (l *Ledger) DropTree(folder, dir string) int {
	n := 0
	prefix := folder + ":"
	for _, kind := range []Kind{KindBrowse, KindSyncState} {
		for key, entry := range l.sets[kind] {
			if !strings.HasPrefix(key, prefix) || !UnderDir(key[len(prefix):], dir) {
				continue
			}
			entry.superseded = true
			n++
		}
	}
	return n
}

// MarkDiscovered records that dir exists in folder.
func (l *Ledger) MarkDiscovered(folder, dir string) {
	set, ok := l.discovered[folder]
	if !ok {
		set = make(map[string]struct{})
		l.discovered[folder] = set
	}
	set[strings.Trim(dir, "/")] = struct{}{}
}

// Discovered reports whether dir is already known to exist.
func (l *Ledger) Discovered(folder, dir string) bool {
	_, ok := l.discovered[folder][strings.Trim(dir, "/")]
	return ok
}

// ForgetDiscovered removes dir and every directory nested under it, matching
// whole path segments. An empty dir forgets the whole folder.
func (l *Ledger) ForgetDiscovered(folder, dir string) int {
	set, ok := l.discovered[folder]
	if !ok {
		return 0
	}
	n := 0
	for d := range set {
		if UnderDir(d, dir) {
			delete(set, d)
			n++
		}
	}
	if len(set) == 0 {
		delete(l.discovered, folder)
	}
	return n
}

// DiscoveredDirs returns the known directories of a folder, sorted.
func (l *Ledger) DiscoveredDirs(folder string) []string {
	out := make([]string, 0, len(l.discovered[folder]))
	for d := range l.discovered[folder] {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// UnderDir reports whether p equals dir or is nested under it, comparing
// whole segments: "Messages/a" is under "Messages", "Message2/a" is not.
// Every path is under the root "".
func UnderDir(p, dir string) bool {
	p = strings.Trim(p, "/")
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return true
	}
	return p == dir || strings.HasPrefix(p, dir+"/")
}
