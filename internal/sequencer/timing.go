package sequencer

import (
	"time"

	"github.com/syncbrowse/syncbrowse/internal/constants"
)

// IsIdle reports whether no user action has happened for at least threshold.
// A zero lastAction (nothing recorded yet) counts as idle.
func IsIdle(lastAction, now time.Time, threshold time.Duration) bool {
	if lastAction.IsZero() {
		return true
	}
	return now.Sub(lastAction) >= threshold
}

// ShouldThrottle reports whether an operation last run at last must wait
// because fewer than interval has elapsed.
func ShouldThrottle(last, now time.Time, interval time.Duration) bool {
	if last.IsZero() {
		return false
	}
	return now.Sub(last) < interval
}

// ShouldFlush is the batch writer policy: flush once the queue holds
// constants.BatchMaxItems writes, or once the oldest queued write is strictly
// older than constants.BatchMaxAge. An empty queue never flushes.
func ShouldFlush(queueLen int, age time.Duration) bool {
	if queueLen <= 0 {
		return false
	}
	return queueLen >= constants.BatchMaxItems || age > constants.BatchMaxAge
}
