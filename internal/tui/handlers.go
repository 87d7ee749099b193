package tui

import (
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/syncbrowse/syncbrowse/internal/api"
	"github.com/syncbrowse/syncbrowse/internal/constants"
	"github.com/syncbrowse/syncbrowse/internal/events"
	"github.com/syncbrowse/syncbrowse/internal/models"
	"github.com/syncbrowse/syncbrowse/internal/perf"
	"github.com/syncbrowse/syncbrowse/internal/sequencer"
	"github.com/syncbrowse/syncbrowse/internal/services"
	"github.com/syncbrowse/syncbrowse/internal/state"
)

// Loaders. Each one takes a ledger ticket first and returns nil when an
// identical fetch is already running.

func (m *Model) loadFolders() tea.Cmd {
	t, ok := m.perf.Ledger.Begin(perf.KindFolder, perf.Key("", ""))
	if !ok {
		return nil
	}
	return fetchFolders(m.ctx, m.fetchTimeout, m.remote, t)
}

func (m *Model) loadStatus(folder string, reconcile bool) tea.Cmd {
	t, ok := m.perf.Ledger.Begin(perf.KindFolder, perf.Key(folder, ""))
	if !ok {
		return nil
	}
	return fetchStatus(m.ctx, m.fetchTimeout, m.remote, folder, reconcile, t)
}

func (m *Model) loadBrowse(folder, prefix string) tea.Cmd {
	t, ok := m.perf.Ledger.Begin(perf.KindBrowse, perf.Key(folder, prefix))
	if !ok {
		return nil
	}
	return fetchBrowse(m.ctx, m.fetchTimeout, m.remote, folder, prefix, t)
}

func (m *Model) loadNeed(folder string) tea.Cmd {
	t, ok := m.perf.Ledger.Begin(perf.KindFolder, needKey(folder))
	if !ok {
		return nil
	}
	m.perf.LastFilterQuery = m.now()
	return fetchNeed(m.ctx, m.fetchTimeout, m.remote, folder, t)
}

// prefetchStates queries the sync state of up to PrefetchBatch entries of
// the focused level that have none yet. It only runs while the operator is
// idle.
func (m *Model) prefetchStates() tea.Cmd {
	if !sequencer.IsIdle(m.perf.LastUserAction, m.now(), m.cfg.Client.IdleThreshold) {
		return nil
	}
	l := m.nav.FocusedLevel()
	if l == nil || l.Loading {
		return nil
	}
	tickets := make(map[string]perf.Ticket)
	for _, name := range l.MissingStates() {
		if len(tickets) >= constants.PrefetchBatch {
			break
		}
		t, ok := m.perf.Ledger.Begin(perf.KindSyncState, perf.Key(l.FolderID, l.Path(name)))
		if !ok {
			continue
		}
		tickets[name] = t
	}
	if len(tickets) == 0 {
		return nil
	}
	return fetchStates(m.ctx, m.fetchTimeout, m.remote, l.FolderID, l.Prefix, tickets, m.needSets[l.FolderID])
}

// openLevel pushes prefix of f after the focused level. A cached listing is
// shown immediately. It is trusted only if the directory was discovered in
// this session; a listing left over from an earlier session, or from
// `cache warm`, is shown while it is browsed again in the background.
func (m *Model) openLevel(f models.Folder, prefix string) tea.Cmd {
	start := time.Now()
	base := m.localPath(f, prefix)

	listing, ok, err := m.mirror.Listing(m.ctx, f.ID, prefix)
	if err != nil {
		m.logger.Warn().Err(err).Str("folder", f.ID).Str("prefix", prefix).Msg("cache read failed")
	}
	if ok {
		l := m.nav.PushLevel(f.ID, prefix, base, listing.Entries, true)
		l.LoadedAt = listing.FetchedAt
		m.fillStatesFromCache(l)
		m.perf.RecordLoad(time.Since(start), true, m.now())
		if m.perf.Ledger.Discovered(f.ID, prefix) {
			return nil
		}
		return m.loadBrowse(f.ID, prefix)
	}

	m.nav.PushLevel(f.ID, prefix, base, nil, false)
	return m.loadBrowse(f.ID, prefix)
}

func (m *Model) fillStatesFromCache(l *state.BreadcrumbLevel) {
	missing := l.MissingStates()
	if len(missing) == 0 {
		return
	}
	states, err := m.mirror.SyncStates(m.ctx, l.FolderID, l.Prefix, missing)
	if err != nil {
		m.logger.Warn().Err(err).Str("folder", l.FolderID).Str("prefix", l.Prefix).Msg("cache read failed")
	}
	if len(states) > 0 {
		m.nav.SetStates(l, states)
	}
}

// Result handlers. Every one of them releases its ledger ticket first.

func (m *Model) handleFolders(msg foldersMsg) tea.Cmd {
	m.perf.Ledger.Finish(msg.ticket)
	if msg.err != nil {
		m.logger.Error().Err(msg.err).Msg("failed to list folders")
		m.flash("cannot list folders: "+msg.err.Error(), true)
		return nil
	}

	known := make(map[string]bool, len(m.nav.Folders)+len(m.statuses))
	for _, f := range m.nav.Folders {
		known[f.ID] = true
	}
	for id := range m.statuses {
		known[id] = true
	}

	m.nav.SetFolders(msg.folders)
	if err := m.mirror.PutFolders(m.ctx, msg.folders); err != nil {
		m.logger.Warn().Err(err).Msg("failed to cache folder list")
	}

	cmds := make([]tea.Cmd, 0, len(msg.folders))
	for _, f := range msg.folders {
		delete(known, f.ID)
		cmds = append(cmds, m.loadStatus(f.ID, true))
	}
	for id := range known {
		m.forgetFolder(id)
	}
	return tea.Batch(cmds...)
}

// forgetFolder drops a folder the daemon no longer shares from the mirror,
// the ledger and the tracker.
func (m *Model) forgetFolder(id string) {
	delete(m.statuses, id)
	delete(m.needDirty, id)
	m.perf.Tracker.Forget(id)
	m.perf.Ledger.ForgetDiscovered(id, "")
	m.perf.Ledger.DropTree(id, "")
	if err := m.mirror.EvictFolder(m.ctx, id); err != nil {
		m.logger.Warn().Err(err).Str("folder", id).Msg("failed to evict removed folder")
		return
	}
	m.logger.Info().Str("folder", id).Msg("folder removed, cache evicted")
}

func (m *Model) handleStatus(msg statusMsg) tea.Cmd {
	m.perf.Ledger.Finish(msg.ticket)
	if msg.err != nil {
		if errors.Is(msg.err, api.ErrNotFound) {
			m.forgetFolder(msg.folder)
		}
		m.logger.Warn().Err(msg.err).Str("folder", msg.folder).Msg("folder status failed")
		return nil
	}

	m.statuses[msg.folder] = msg.status
	fp := perf.Fingerprint{
		State:            msg.status.State,
		Sequence:         msg.status.Sequence,
		ReceiveOnlyItems: msg.status.ReceiveOnlyTotalItems,
	}
	obs := m.perf.Tracker.Observe(msg.folder, fp)
	if err := m.mirror.PutFingerprint(m.ctx, msg.folder, fp); err != nil {
		m.logger.Warn().Err(err).Str("folder", msg.folder).Msg("failed to cache fingerprint")
	}
	if !obs.Changed {
		return nil
	}

	m.needDirty[msg.folder] = true
	if !msg.reconcile {
		return nil
	}
	// The folder moved while nothing was watching it, so events may have
	// been missed. Drop everything cached for it.
	m.logger.Info().
		Str("folder", msg.folder).
		Int64("sequence", fp.Sequence).
		Int64("previous", obs.Previous.Sequence).
		Msg("folder changed while unobserved, evicting cache")
	return m.applyInvalidations([]events.CacheInvalidation{events.Directory{FolderID: msg.folder}})
}

func (m *Model) handleBrowse(msg browseMsg) tea.Cmd {
	superseded := m.perf.Ledger.Finish(msg.ticket)
	levels := m.nav.FindLevels(msg.folder, msg.prefix)
	log := m.logger.With().Str("folder", msg.folder).Str("prefix", msg.prefix).Logger()
	// Background revalidation of a cached level does not count as a load.
	waited := false
	for _, l := range levels {
		waited = waited || l.Loading || l.Stale
	}

	if msg.err != nil {
		log.Warn().Err(msg.err).Msg("browse failed")
		for _, l := range levels {
			m.nav.SetLevelError(l, msg.err)
		}
		if len(levels) > 0 {
			m.flash("cannot list "+displayPath(msg.folder, msg.prefix)+": "+msg.err.Error(), true)
		}
		if superseded {
			return m.loadBrowse(msg.folder, msg.prefix)
		}
		return nil
	}

	now := m.now()
	if err := m.mirror.PutListing(m.ctx, msg.folder, msg.prefix, msg.entries, now); err != nil {
		log.Warn().Err(err).Msg("failed to cache listing")
	}
	m.perf.Ledger.MarkDiscovered(msg.folder, msg.prefix)
	for _, l := range levels {
		m.nav.SetLevelEntries(l, msg.entries, now)
		m.fillStatesFromCache(l)
	}
	if waited {
		m.perf.RecordLoad(msg.latency, false, now)
	}
	log.Debug().Dur("latency", msg.latency).Int("entries", len(msg.entries)).Bool("superseded", superseded).Msg("browse done")

	if superseded {
		return m.loadBrowse(msg.folder, msg.prefix)
	}
	return nil
}

func (m *Model) handleStates(msg statesMsg) tea.Cmd {
	fresh := make(map[string]models.SyncState, len(msg.states))
	for name, t := range msg.tickets {
		superseded := m.perf.Ledger.Finish(t)
		s, ok := msg.states[name]
		if !ok {
			continue
		}
		if err := m.mirror.PutSyncState(m.ctx, msg.folder, models.JoinPath(msg.dir, name), s); err != nil {
			m.logger.Warn().Err(err).Str("folder", msg.folder).Str("path", models.JoinPath(msg.dir, name)).Msg("failed to cache sync state")
		}
		// A superseded state is cached but not shown, so the entry stays
		// missing and is queried again.
		if !superseded {
			fresh[name] = s
		}
	}
	for _, l := range m.nav.FindLevels(msg.folder, msg.dir) {
		m.nav.SetStates(l, fresh)
	}
	if msg.err != nil {
		m.logger.Warn().Err(msg.err).Str("folder", msg.folder).Str("prefix", msg.dir).Msg("sync state query failed")
		return nil
	}
	return m.prefetchStates()
}

func (m *Model) handleNeed(msg needMsg) tea.Cmd {
	superseded := m.perf.Ledger.Finish(msg.ticket)
	want := m.wantFilter
	m.wantFilter = false
	if msg.err != nil {
		m.logger.Warn().Err(msg.err).Str("folder", msg.folder).Msg("need query failed")
		if want {
			m.flash("cannot load out-of-sync files: "+msg.err.Error(), true)
		}
		return nil
	}

	set := make(map[string]struct{}, len(msg.paths))
	for _, p := range msg.paths {
		set[p] = struct{}{}
	}
	m.needs[msg.folder] = msg.paths
	m.needSets[msg.folder] = set
	if superseded {
		m.needDirty[msg.folder] = true
	} else {
		delete(m.needDirty, msg.folder)
	}

	now := m.now()
	switch {
	case want && m.nav.OutOfSync == nil:
		m.nav.EnableOutOfSync(m.outOfSyncPaths(), now)
		m.flash(fmt.Sprintf("%d out-of-sync paths", len(msg.paths)), false)
	case m.nav.OutOfSync != nil:
		m.nav.UpdateOutOfSync(m.outOfSyncPaths(), now)
	}
	return nil
}

func (m *Model) outOfSyncPaths() map[string][]string {
	out := make(map[string][]string, len(m.needs))
	for folder, paths := range m.needs {
		out[folder] = paths
	}
	return out
}

func (m *Model) handleFeed(msg feedMsg) tea.Cmd {
	cmd := m.applyInvalidations(msg.invalidations)

	if msg.watermark > m.heldWatermark {
		m.heldWatermark = msg.watermark
	}
	if msg.caughtUp && m.heldWatermark > 0 {
		if err := m.mirror.PutWatermark(m.ctx, m.baseURL, m.heldWatermark); err != nil {
			m.logger.Warn().Err(err).Uint64("event_id", m.heldWatermark).Msg("failed to persist watermark")
		} else {
			m.lastWatermark = m.heldWatermark
			m.heldWatermark = 0
		}
	}
	return tea.Batch(cmd, waitFeed(m.invs, m.wms))
}

type dirRef struct {
	folder string
	dir    string
}

// applyInvalidations routes each invalidation through the mirror and the
// ledger, drops the affected sync states from the trail, and reloads every
// visible level whose listing went stale.
func (m *Model) applyInvalidations(invs []events.CacheInvalidation) tea.Cmd {
	if len(invs) == 0 {
		return nil
	}
	var order []dirRef
	seen := make(map[dirRef]bool)
	add := func(r dirRef) {
		if !seen[r] {
			seen[r] = true
			order = append(order, r)
		}
	}
	touched := make(map[string]bool)

	for _, inv := range invs {
		rf, err := m.router.Apply(m.ctx, inv)
		if err != nil {
			m.logger.Warn().Err(err).Str("folder", inv.Folder()).Msg("invalidation failed")
			continue
		}
		touched[inv.Folder()] = true
		for _, d := range rf.Dirs {
			add(dirRef{rf.Folder, d})
		}

		switch inv := inv.(type) {
		case events.File:
			parent := models.ParentDir(inv.Path)
			for _, l := range m.nav.FindLevels(inv.FolderID, parent) {
				delete(l.States, path.Base(inv.Path))
			}
		case events.Directory:
			for _, l := range m.nav.Trail() {
				if l.FolderID == inv.FolderID && perf.UnderDir(l.Prefix, inv.Path) {
					clear(l.States)
					add(dirRef{l.FolderID, l.Prefix})
				}
			}
			if inv.Path != "" {
				for _, l := range m.nav.FindLevels(inv.FolderID, models.ParentDir(inv.Path)) {
					delete(l.States, path.Base(inv.Path))
				}
			}
		}
	}

	var cmds []tea.Cmd
	for folder := range touched {
		m.needDirty[folder] = true
		cmds = append(cmds, m.loadStatus(folder, false))
	}
	for _, r := range order {
		if len(m.nav.MarkStale(r.folder, r.dir)) == 0 {
			continue
		}
		cmds = append(cmds, m.loadBrowse(r.folder, r.dir))
	}
	return tea.Batch(cmds...)
}

func (m *Model) handleAction(msg actionMsg) tea.Cmd {
	if msg.pending {
		m.perf.Pending.Resolve(msg.folder, msg.path)
	}
	target := displayPath(msg.folder, msg.path)
	if msg.err != nil {
		m.logger.Error().Err(msg.err).Str("folder", msg.folder).Str("path", msg.path).Msg(msg.verb + " failed")
		m.flash(msg.verb+" failed: "+msg.err.Error(), true)
		return nil
	}
	m.logger.Info().Str("folder", msg.folder).Str("path", msg.path).Msg(msg.verb)
	text := msg.verb + " " + target
	if msg.detail != "" {
		text += " (" + msg.detail + ")"
	}
	m.flash(text, false)
	return m.applyInvalidations(msg.touched)
}

func (m *Model) handlePollTick() tea.Cmd {
	now := m.now()
	cmds := []tea.Cmd{pollTick(m.cfg.Client.PollInterval)}

	for _, folder := range m.perf.Tracker.PollSet() {
		cmds = append(cmds, m.loadStatus(folder, false))
	}
	for _, op := range m.perf.Pending.Expire(now) {
		m.logger.Warn().Str("folder", op.Folder).Str("path", op.Path).Msg("pending delete timed out")
	}
	if !m.toast.until.IsZero() && now.After(m.toast.until) {
		m.toast = toast{}
	}
	cmds = append(cmds, m.refreshNeeds(now), m.prefetchStates())
	return tea.Batch(cmds...)
}

// refreshNeeds re-queries the open folder's out-of-sync paths when they may
// have changed, at most once per filter refresh interval. Need sets of other
// folders are dropped and loaded again when the folder is opened.
func (m *Model) refreshNeeds(now time.Time) tea.Cmd {
	if len(m.needDirty) == 0 {
		return nil
	}
	cur, ok := m.currentFolder()
	for folder := range m.needDirty {
		if ok && folder == cur.ID && m.nav.Len() > 0 {
			continue
		}
		delete(m.needs, folder)
		delete(m.needSets, folder)
		delete(m.needDirty, folder)
	}
	if !m.needDirty[cur.ID] || sequencer.ShouldThrottle(m.perf.LastFilterQuery, now, m.cfg.Client.FilterRefresh) {
		return nil
	}
	cmd := m.loadNeed(cur.ID)
	if cmd != nil {
		delete(m.needDirty, cur.ID)
	}
	return cmd
}

// Key handling.

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	now := m.now()
	m.perf.TouchUserAction(now)

	if m.confirm != nil {
		return m.handleConfirm(msg)
	}
	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m.quit()
	case key.Matches(msg, m.keys.up):
		m.nav.MoveSelection(-1)
	case key.Matches(msg, m.keys.down):
		m.nav.MoveSelection(1)
	case key.Matches(msg, m.keys.enter):
		return m.drillIn()
	case key.Matches(msg, m.keys.back):
		m.back()
	case key.Matches(msg, m.keys.nextFocus):
		m.nav.CycleFocus()
	case key.Matches(msg, m.keys.sort):
		m.nav.SetSortMode(m.nav.Sort.Next())
	case key.Matches(msg, m.keys.reverse):
		m.nav.ToggleReverse()
	case key.Matches(msg, m.keys.outOfSync):
		return m.toggleOutOfSync()
	case key.Matches(msg, m.keys.search):
		m.searching = true
		if m.nav.Search != nil {
			m.search.SetValue(m.nav.Search.Query)
		}
		return m.search.Focus()
	case key.Matches(msg, m.keys.clear):
		m.search.SetValue("")
		m.nav.ClearSearch()
	case key.Matches(msg, m.keys.ignore):
		return m.ignoreSelected()
	case key.Matches(msg, m.keys.unignore):
		return m.unignoreSelected(now)
	case key.Matches(msg, m.keys.delete):
		m.askDelete()
	case key.Matches(msg, m.keys.revert):
		return m.revertFolder()
	case key.Matches(msg, m.keys.restore):
		return m.restoreSelected()
	case key.Matches(msg, m.keys.rescan):
		return m.rescan()
	case key.Matches(msg, m.keys.refresh):
		return m.refreshFocused()
	}
	return nil
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m.quit()
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		return nil
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.nav.ClearSearch()
		return nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.nav.SetSearch(m.search.Value())
	return cmd
}

func (m *Model) drillIn() tea.Cmd {
	if m.nav.Focus == 0 {
		f, ok := m.nav.SelectedFolder()
		if !ok {
			return nil
		}
		m.nav.SelectFolder(m.nav.FolderIndex)
		var needCmd tea.Cmd
		if _, known := m.needs[f.ID]; !known {
			needCmd = m.loadNeed(f.ID)
		}
		return tea.Batch(m.openLevel(f, ""), needCmd)
	}

	l := m.nav.FocusedLevel()
	e, ok := l.SelectedEntry()
	if !ok || !e.IsDir() {
		return nil
	}
	f, ok := m.folder(l.FolderID)
	if !ok {
		return nil
	}
	return m.openLevel(f, l.Path(e.Name))
}

func (m *Model) back() {
	switch {
	case m.nav.Focus == 0:
	case m.nav.Focus == m.nav.Len():
		m.nav.PopLevel()
	default:
		m.nav.SetFocus(m.nav.Focus - 1)
	}
}

func (m *Model) toggleOutOfSync() tea.Cmd {
	if m.nav.OutOfSync != nil {
		m.nav.DisableOutOfSync()
		m.flash("out-of-sync filter off", false)
		return nil
	}
	f, ok := m.currentFolder()
	if !ok {
		return nil
	}
	if _, known := m.needs[f.ID]; known && !m.needDirty[f.ID] {
		m.nav.EnableOutOfSync(m.outOfSyncPaths(), m.now())
		return nil
	}
	cmd := m.loadNeed(f.ID)
	m.wantFilter = true
	return cmd
}

// target is the selected entry of the focused level.
func (m *Model) target() (models.Folder, string, models.Entry, bool) {
	l := m.nav.FocusedLevel()
	if l == nil {
		return models.Folder{}, "", models.Entry{}, false
	}
	e, ok := l.SelectedEntry()
	if !ok {
		return models.Folder{}, "", models.Entry{}, false
	}
	f, ok := m.folder(l.FolderID)
	if !ok {
		return models.Folder{}, "", models.Entry{}, false
	}
	return f, l.Path(e.Name), e, true
}

func invalidationFor(folder, p string, isDir bool) events.CacheInvalidation {
	if isDir {
		return events.Directory{FolderID: folder, Path: p}
	}
	return events.File{FolderID: folder, Path: p}
}

func (m *Model) ignoreSelected() tea.Cmd {
	f, p, e, ok := m.target()
	if !ok {
		m.flash("nothing selected", true)
		return nil
	}
	parent, timeout, acts := m.ctx, m.fetchTimeout, m.actions
	inv := invalidationFor(f.ID, p, e.IsDir())
	return func() tea.Msg {
		ctx, cancel := bounded(parent, timeout)
		defer cancel()
		err := acts.Ignore(ctx, f.ID, p)
		return actionMsg{verb: "ignored", folder: f.ID, path: p, touched: []events.CacheInvalidation{inv}, err: err}
	}
}

func (m *Model) unignoreSelected(now time.Time) tea.Cmd {
	f, p, e, ok := m.target()
	if !ok {
		m.flash("nothing selected", true)
		return nil
	}
	if err := services.CheckUnignore(m.perf.Pending, f.ID, p, now); err != nil {
		m.flash(err.Error(), true)
		return nil
	}
	parent, timeout, acts := m.ctx, m.fetchTimeout, m.actions
	inv := invalidationFor(f.ID, p, e.IsDir())
	return func() tea.Msg {
		ctx, cancel := bounded(parent, timeout)
		defer cancel()
		removed, err := acts.Unignore(ctx, f.ID, p)
		msg := actionMsg{verb: "un-ignored", folder: f.ID, path: p, touched: []events.CacheInvalidation{inv}, err: err}
		if err == nil && !removed {
			msg.detail = "was not ignored"
		}
		return msg
	}
}

func (m *Model) askDelete() {
	f, p, e, ok := m.target()
	if !ok {
		m.flash("nothing selected", true)
		return
	}
	m.confirm = &confirmDelete{folder: f, path: p, isDir: e.IsDir()}
}

func (m *Model) handleConfirm(msg tea.KeyMsg) tea.Cmd {
	c := m.confirm
	m.confirm = nil
	if !key.Matches(msg, m.keys.confirm) {
		m.flash("delete cancelled", false)
		return nil
	}

	m.perf.Pending.Add(c.folder.ID, c.path, m.now())
	parent, timeout, acts := m.ctx, m.fetchTimeout, m.actions
	root := m.localRoot(c.folder)
	inv := invalidationFor(c.folder.ID, c.path, c.isDir)
	return func() tea.Msg {
		ctx, cancel := bounded(parent, timeout)
		defer cancel()
		err := acts.IgnoreAndDelete(ctx, c.folder.ID, root, c.path)
		return actionMsg{verb: "deleted", folder: c.folder.ID, path: c.path, touched: []events.CacheInvalidation{inv}, pending: true, err: err}
	}
}

func (m *Model) revertFolder() tea.Cmd {
	f, ok := m.currentFolder()
	if !ok {
		return nil
	}
	parent, timeout, acts := m.ctx, m.fetchTimeout, m.actions
	return func() tea.Msg {
		ctx, cancel := bounded(parent, timeout)
		defer cancel()
		err := acts.Revert(ctx, f)
		return actionMsg{verb: "reverted", folder: f.ID, touched: []events.CacheInvalidation{events.Directory{FolderID: f.ID}}, err: err}
	}
}

func (m *Model) restoreSelected() tea.Cmd {
	f, p, e, ok := m.target()
	if !ok || e.IsDir() {
		m.flash("select a file to restore", true)
		return nil
	}
	parent, timeout, acts := m.ctx, m.fetchTimeout, m.actions
	return func() tea.Msg {
		ctx, cancel := bounded(parent, timeout)
		defer cancel()
		at, err := acts.RestoreLatest(ctx, f.ID, p)
		msg := actionMsg{verb: "restored", folder: f.ID, path: p, touched: []events.CacheInvalidation{events.File{FolderID: f.ID, Path: p}}, err: err}
		if err == nil {
			msg.detail = "version of " + at.Local().Format(time.DateTime)
		}
		return msg
	}
}

func (m *Model) rescan() tea.Cmd {
	f, ok := m.currentFolder()
	if !ok {
		return nil
	}
	sub := ""
	if l := m.nav.FocusedLevel(); l != nil {
		sub = l.Prefix
	}
	parent, timeout, acts := m.ctx, m.fetchTimeout, m.actions
	return func() tea.Msg {
		ctx, cancel := bounded(parent, timeout)
		defer cancel()
		err := acts.Rescan(ctx, f.ID, sub)
		return actionMsg{verb: "rescan requested", folder: f.ID, path: sub, err: err}
	}
}

func (m *Model) refreshFocused() tea.Cmd {
	l := m.nav.FocusedLevel()
	if l == nil {
		return m.loadFolders()
	}
	return m.applyInvalidations([]events.CacheInvalidation{events.Directory{FolderID: l.FolderID, Path: l.Prefix}})
}

func displayPath(folder, p string) string {
	if p == "" {
		return folder
	}
	return folder + "/" + p
}
