package perf

import "sort"

// Folder states the daemon reports while work is pending. Anything else,
// including "idle", "error" and states this client does not know, is stable.
var transientStates = map[string]bool{
	"scanning":       true,
	"syncing":        true,
	"cleaning":       true,
	"scan-waiting":   true,
	"sync-waiting":   true,
	"sync-preparing": true,
	"clean-waiting":  true,
}

// IsTransient reports whether a folder in this state is expected to change soon.
func IsTransient(state string) bool {
	return transientStates[state]
}

// Fingerprint is the part of a folder status that detects change.
type Fingerprint struct {
	State            string
	Sequence         int64
	ReceiveOnlyItems int
}

// Observation is the outcome of feeding one status snapshot to the tracker.
type Observation struct {
	// First is set when the folder had no known fingerprint.
	First bool
	// Changed is set when the sequence or receive-only count moved since the
	// last known value. A first observation after Seed compares against the
	// seeded value; an unseeded first observation is not a change.
	Changed bool
	// Transient mirrors IsTransient(State).
	Transient bool
	// Previous is the fingerprint replaced by this observation.
	Previous Fingerprint
}

// Tracker keeps per-folder fingerprints and the set of folders worth polling.
// Owned by the control loop; not safe for concurrent use.
type Tracker struct {
	last map[string]Fingerprint
	poll map[string]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		last: make(map[string]Fingerprint),
		poll: make(map[string]struct{}),
	}
}

// Seed installs a fingerprint remembered from a previous session without
// touching the poll set.
func (t *Tracker) Seed(folder string, fp Fingerprint) {
	t.last[folder] = fp
}

// Observe records a fresh status snapshot. The last-known fingerprint is
// replaced immediately so the same sequence never triggers twice. Poll-set
// membership follows the reported state: transient folders are added or kept,
// stable folders are removed.
func (t *Tracker) Observe(folder string, fp Fingerprint) Observation {
	prev, known := t.last[folder]
	obs := Observation{
		First:     !known,
		Transient: IsTransient(fp.State),
		Previous:  prev,
	}
	if known {
		obs.Changed = prev.Sequence != fp.Sequence || prev.ReceiveOnlyItems != fp.ReceiveOnlyItems
	}
	t.last[folder] = fp

	if obs.Transient {
		t.poll[folder] = struct{}{}
	} else {
		delete(t.poll, folder)
	}
	return obs
}

// Fingerprint returns the last known fingerprint of a folder.
func (t *Tracker) Fingerprint(folder string) (Fingerprint, bool) {
	fp, ok := t.last[folder]
	return fp, ok
}

// InPollSet reports whether a folder is currently polled.
func (t *Tracker) InPollSet(folder string) bool {
	_, ok := t.poll[folder]
	return ok
}

// PollSet returns the folders to query on the next poll tick, sorted.
func (t *Tracker) PollSet() []string {
	out := make([]string, 0, len(t.poll))
	for f := range t.poll {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Forget drops all knowledge of a folder (it was removed from the daemon).
func (t *Tracker) Forget(folder string) {
	delete(t.last, folder)
	delete(t.poll, folder)
}
