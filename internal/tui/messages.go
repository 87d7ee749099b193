package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/syncbrowse/syncbrowse/internal/api"
	"github.com/syncbrowse/syncbrowse/internal/constants"
	"github.com/syncbrowse/syncbrowse/internal/events"
	"github.com/syncbrowse/syncbrowse/internal/models"
	"github.com/syncbrowse/syncbrowse/internal/perf"
	"github.com/syncbrowse/syncbrowse/internal/services"
)

type foldersMsg struct {
	folders []models.Folder
	ticket  perf.Ticket
	err     error
}

type statusMsg struct {
	folder    string
	status    models.FolderStatus
	reconcile bool
	ticket    perf.Ticket
	err       error
}

type browseMsg struct {
	folder  string
	prefix  string
	entries []models.Entry
	latency time.Duration
	ticket  perf.Ticket
	err     error
}

type statesMsg struct {
	folder  string
	dir     string
	states  map[string]models.SyncState
	tickets map[string]perf.Ticket // entry name -> ticket
	err     error
}

type needMsg struct {
	folder string
	paths  []string
	ticket perf.Ticket
	err    error
}

// feedMsg carries one drain of the event queues. watermark is the highest
// watermark seen in this drain (0 if none). caughtUp is set when the
// invalidation queue was empty after the drain, so every invalidation pushed
// before that watermark has been delivered.
type feedMsg struct {
	invalidations []events.CacheInvalidation
	watermark     uint64
	caughtUp      bool
}

type feedClosedMsg struct{}

type actionMsg struct {
	verb   string
	folder string
	path   string
	detail string
	// touched lists what the action changed, so cached state can be evicted
	// without waiting for the event feed.
	touched []events.CacheInvalidation
	pending bool
	err     error
}

type pollTickMsg time.Time

type flushTickMsg time.Time

type reconcileTickMsg time.Time

func pollTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return pollTickMsg(t) })
}

func flushTick() tea.Cmd {
	return tea.Tick(constants.BatchFlushTick, func(t time.Time) tea.Msg { return flushTickMsg(t) })
}

func reconcileTick(d time.Duration) tea.Cmd {
	if d <= 0 {
		return nil
	}
	return tea.Tick(d, func(t time.Time) tea.Msg { return reconcileTickMsg(t) })
}

// waitFeed blocks until either event queue has something, then drains the
// watermark queue before the invalidation queue. A watermark is only pushed
// after its batch's invalidations, so draining in this order never reports a
// watermark ahead of an invalidation it covers.
func waitFeed(invs *events.Queue[events.CacheInvalidation], wms *events.Queue[uint64]) tea.Cmd {
	if invs == nil || wms == nil {
		return nil
	}
	return func() tea.Msg {
		for {
			var msg feedMsg
			if ids := wms.Drain(0); len(ids) > 0 {
				msg.watermark = ids[len(ids)-1]
			}
			msg.invalidations = invs.Drain(constants.EventDrainLimit)
			msg.caughtUp = invs.Len() == 0
			if msg.watermark != 0 || len(msg.invalidations) > 0 {
				return msg
			}
			if invs.Done() && wms.Done() {
				return feedClosedMsg{}
			}
			select {
			case <-invs.Ready():
			case <-wms.Ready():
			}
		}
	}
}

// bounded derives the context of one remote call. A daemon that accepts a
// request and never answers must still release the call's ledger ticket.
func bounded(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = constants.APIContextTimeout
	}
	return context.WithTimeout(parent, timeout)
}

func fetchFolders(parent context.Context, timeout time.Duration, remote api.Remote, t perf.Ticket) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := bounded(parent, timeout)
		defer cancel()
		folders, err := remote.Folders(ctx)
		return foldersMsg{folders: folders, ticket: t, err: err}
	}
}

func fetchStatus(parent context.Context, timeout time.Duration, remote api.Remote, folder string, reconcile bool, t perf.Ticket) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := bounded(parent, timeout)
		defer cancel()
		st, err := remote.FolderStatus(ctx, folder)
		return statusMsg{folder: folder, status: st, reconcile: reconcile, ticket: t, err: err}
	}
}

func fetchBrowse(parent context.Context, timeout time.Duration, remote api.Remote, folder, prefix string, t perf.Ticket) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := bounded(parent, timeout)
		defer cancel()
		start := time.Now()
		entries, err := remote.Browse(ctx, folder, prefix)
		return browseMsg{folder: folder, prefix: prefix, entries: entries, latency: time.Since(start), ticket: t, err: err}
	}
}

func fetchStates(parent context.Context, timeout time.Duration, remote api.Remote, folder, dir string, tickets map[string]perf.Ticket, needed map[string]struct{}) tea.Cmd {
	names := make([]string, 0, len(tickets))
	for name := range tickets {
		names = append(names, name)
	}
	return func() tea.Msg {
		ctx, cancel := bounded(parent, timeout)
		defer cancel()
		states, err := services.LoadStates(ctx, remote, folder, dir, names, needed)
		return statesMsg{folder: folder, dir: dir, states: states, tickets: tickets, err: err}
	}
}

func fetchNeed(parent context.Context, timeout time.Duration, remote api.Remote, folder string, t perf.Ticket) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := bounded(parent, timeout)
		defer cancel()
		resp, err := remote.Need(ctx, folder)
		return needMsg{folder: folder, paths: resp.Paths(), ticket: t, err: err}
	}
}
