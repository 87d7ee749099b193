package constants

import (
	"time"
)

// Event feed
const (
	// EventLongPollTimeout - server-side timeout passed to the event feed (60 seconds)
	// The daemon holds the request open until events arrive or this elapses.
	EventLongPollTimeout = 60 * time.Second

	// EventRequestSlack - extra client-side time allowed on top of the long-poll timeout
	// so the HTTP client never gives up before the daemon answers with an empty batch.
	EventRequestSlack = 15 * time.Second

	// EventBackoff - fixed sleep after a transport error or bad response (5 seconds)
	EventBackoff = 5 * time.Second

	// EventDrainLimit - max queued messages the control loop handles per wake-up
	// before yielding back to input handling.
	EventDrainLimit = 256
)

// Batch writer policy
const (
	// BatchMaxItems - queued writes at or above this count flush immediately
	BatchMaxItems = 50

	// BatchMaxAge - queued writes older than this flush (strictly greater than)
	BatchMaxAge = 100 * time.Millisecond

	// BatchFlushTick - how often the control loop asks the batch writer whether to flush
	BatchFlushTick = 50 * time.Millisecond
)

// Staleness polling and reconciliation
const (
	// DefaultPollInterval - tick for re-querying folders in a transient state (1 second)
	DefaultPollInterval = 1 * time.Second

	// DefaultReconcileInterval - full folder-status pass bounding divergence after missed events (10 minutes)
	DefaultReconcileInterval = 10 * time.Minute

	// DefaultIdleThreshold - no input for this long counts as idle (1.5 seconds)
	// Background prefetch of sync states only runs while idle.
	DefaultIdleThreshold = 1500 * time.Millisecond

	// DefaultFilterRefresh - min interval between out-of-sync (need) re-queries (2 seconds)
	DefaultFilterRefresh = 2 * time.Second

	// DefaultPendingOpTimeout - ignore+delete operations older than this stop blocking un-ignore (30 seconds)
	DefaultPendingOpTimeout = 30 * time.Second

	// PrefetchBatch - max sync-state queries dispatched per idle tick
	PrefetchBatch = 8

	// NeedPageSize - page size requested from the needed-files endpoint
	NeedPageSize = 10000
)

// API and Context Timeouts
const (
	// APIContextTimeout - default timeout for snapshot API operations (30 seconds)
	APIContextTimeout = 30 * time.Second

	// APIConnectionTestTimeout - timeout for testing API connectivity (10 seconds)
	APIConnectionTestTimeout = 10 * time.Second

	// APIRateLimit - sustained snapshot requests per second against one daemon
	APIRateLimit = 20.0

	// APIRateBurst - burst size for snapshot requests
	APIRateBurst = 40
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (10 seconds)
	HTTPTLSHandshakeTimeout = 10 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (10 seconds)
	HTTPDialTimeout = 10 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second
)

// Cache
const (
	// CacheBusyTimeout - sqlite busy_timeout for the cache database (5 seconds)
	CacheBusyTimeout = 5 * time.Second

	// WarmConcurrency - default parallel browses for `cache warm`
	WarmConcurrency = 4
)

// Navigation
const (
	// MaxVisibleLevels - breadcrumb levels rendered side by side
	MaxVisibleLevels = 3

	// ToastDuration - how long a transient status message stays visible
	ToastDuration = 4 * time.Second
)
