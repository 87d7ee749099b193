// Package perf holds the control loop's operational bookkeeping: which fetches
// are in flight, which directories are known, how stale each folder is, which
// destructive operations are still pending, and when the operator last acted.
// None of it is user-visible data and none of it is safe for concurrent use;
// the single control loop owns it.
package perf

import "time"

// State is the PerformanceState of one browsing session.
type State struct {
	Ledger  *Ledger
	Tracker *Tracker
	Pending *PendingOps

	// LastUserAction is the time of the last key press (idle detection).
	LastUserAction time.Time
	// LastFilterQuery is when the out-of-sync paths were last requested (throttling).
	LastFilterQuery time.Time

	// LastLatency and LastCacheHit describe the most recent directory load,
	// for the status indicator.
	LastLatency  time.Duration
	LastCacheHit bool
	LastLoadAt   time.Time
}

// New creates an empty PerformanceState.
func New(pendingTimeout time.Duration) *State {
	return &State{
		Ledger:  NewLedger(),
		Tracker: NewTracker(),
		Pending: NewPendingOps(pendingTimeout),
	}
}

// TouchUserAction records operator input at now.
func (s *State) TouchUserAction(now time.Time) {
	s.LastUserAction = now
}

// RecordLoad records the latency and source of a directory load.
func (s *State) RecordLoad(latency time.Duration, cacheHit bool, now time.Time) {
	s.LastLatency = latency
	s.LastCacheHit = cacheHit
	s.LastLoadAt = now
}
