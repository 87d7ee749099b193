// Package tui is the browser's control loop. One bubbletea Model owns the
// navigation stack, the performance state, the cached mirror and the batch
// writer; every mutation of them happens inside Update. Remote calls run as
// commands and report back as messages, and the event feed arrives through
// two queues filled by a separate goroutine.
package tui

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/syncbrowse/syncbrowse/internal/api"
	"github.com/syncbrowse/syncbrowse/internal/config"
	"github.com/syncbrowse/syncbrowse/internal/constants"
	"github.com/syncbrowse/syncbrowse/internal/events"
	"github.com/syncbrowse/syncbrowse/internal/logging"
	"github.com/syncbrowse/syncbrowse/internal/mirror"
	"github.com/syncbrowse/syncbrowse/internal/models"
	"github.com/syncbrowse/syncbrowse/internal/perf"
	"github.com/syncbrowse/syncbrowse/internal/services"
	"github.com/syncbrowse/syncbrowse/internal/state"
	"github.com/syncbrowse/syncbrowse/internal/store"
)

// Options wires a Model to the daemon, the cache and the event feed.
type Options struct {
	// Context bounds every remote call the model dispatches.
	Context context.Context

	Remote  api.Remote
	Mirror  *mirror.Mirror
	Batcher *store.Batcher
	Config  *config.Config

	// BaseURL keys the persisted event watermark.
	BaseURL string

	// Invalidations and Watermarks are filled by the event client. Both may
	// be nil, in which case the model runs on snapshots and timers only.
	Invalidations *events.Queue[events.CacheInvalidation]
	Watermarks    *events.Queue[uint64]

	Logger *logging.Logger

	// FetchTimeout bounds each remote call. Zero means
	// constants.APIContextTimeout.
	FetchTimeout time.Duration

	// Now replaces time.Now.
	Now func() time.Time
}

type confirmDelete struct {
	folder models.Folder
	path   string
	isDir  bool
}

type toast struct {
	text  string
	err   bool
	until time.Time
}

// Model is the bubbletea model of the browser.
type Model struct {
	ctx     context.Context
	remote  api.Remote
	mirror  *mirror.Mirror
	batcher *store.Batcher
	cfg     *config.Config
	baseURL string
	invs    *events.Queue[events.CacheInvalidation]
	wms     *events.Queue[uint64]
	logger  *logging.Logger
	now     func() time.Time

	fetchTimeout time.Duration

	nav     *state.NavigationState
	perf    *perf.State
	router  *mirror.Router
	actions *services.Actions

	statuses map[string]models.FolderStatus
	// needs holds each folder's out-of-sync paths; needSets the same as a set.
	needs     map[string][]string
	needSets  map[string]map[string]struct{}
	needDirty map[string]bool
	// wantFilter is set while the need query that enables the filter runs.
	wantFilter bool

	// heldWatermark waits for the invalidation queue to be drained.
	heldWatermark uint64
	lastWatermark uint64

	keys      keyMap
	help      help.Model
	search    textinput.Model
	searching bool
	spinner   spinner.Model
	confirm   *confirmDelete
	toast     toast

	width  int
	height int
}

var _ tea.Model = (*Model)(nil)

// New creates a model. Remote, Mirror and Batcher are required.
func New(opts Options) *Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Config == nil {
		opts.Config = config.NewConfig()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	search := textinput.New()
	search.Prompt = "/"
	search.Placeholder = "filter by name"
	search.CharLimit = 128

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	p := perf.New(opts.Config.Client.PendingOpTimeout)
	logger := opts.Logger.Named("tui")

	return &Model{
		ctx:       opts.Context,
		remote:    opts.Remote,
		mirror:    opts.Mirror,
		batcher:   opts.Batcher,
		cfg:       opts.Config,
		baseURL:   opts.BaseURL,
		invs:      opts.Invalidations,
		wms:       opts.Watermarks,
		logger:    logger,
		now:       opts.Now,
		nav:       state.New(),
		perf:      p,
		router:    mirror.NewRouter(opts.Mirror, p.Ledger),
		actions:   services.NewActions(opts.Remote, logger),
		statuses:  make(map[string]models.FolderStatus),
		needs:     make(map[string][]string),
		needSets:  make(map[string]map[string]struct{}),
		needDirty: make(map[string]bool),
		keys:      defaultKeyMap(),
		help:      help.New(),
		search:    search,
		spinner:   sp,

		fetchTimeout: opts.FetchTimeout,
	}
}

// Init restores what the cache remembers and starts the loaders and timers.
func (m *Model) Init() tea.Cmd {
	m.restoreFromCache()
	return tea.Batch(
		m.loadFolders(),
		waitFeed(m.invs, m.wms),
		m.spinner.Tick,
		pollTick(m.cfg.Client.PollInterval),
		flushTick(),
		reconcileTick(m.cfg.Client.ReconcileInterval),
	)
}

// restoreFromCache shows the cached folder list right away and seeds the
// staleness tracker with the fingerprints of the previous session, so the
// first status pass detects changes made while the browser was closed.
func (m *Model) restoreFromCache() {
	folders, ok, err := m.mirror.Folders(m.ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to read cached folder list")
		return
	}
	if !ok {
		return
	}
	m.nav.SetFolders(folders)
	for _, f := range folders {
		fp, ok, err := m.mirror.Fingerprint(m.ctx, f.ID)
		if err != nil {
			m.logger.Warn().Err(err).Str("folder", f.ID).Msg("failed to read cached fingerprint")
			continue
		}
		if ok {
			m.perf.Tracker.Seed(f.ID, fp)
		}
	}
	if id, err := m.mirror.Watermark(m.ctx, m.baseURL); err == nil {
		m.lastWatermark = id
	}
}

// Navigation exposes the navigation stack for inspection.
func (m *Model) Navigation() *state.NavigationState {
	return m.nav
}

// Perf exposes the performance state for inspection.
func (m *Model) Perf() *perf.State {
	return m.perf
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case foldersMsg:
		return m, m.handleFolders(msg)
	case statusMsg:
		return m, m.handleStatus(msg)
	case browseMsg:
		return m, m.handleBrowse(msg)
	case statesMsg:
		return m, m.handleStates(msg)
	case needMsg:
		return m, m.handleNeed(msg)
	case actionMsg:
		return m, m.handleAction(msg)

	case feedMsg:
		return m, m.handleFeed(msg)
	case feedClosedMsg:
		m.logger.Debug().Msg("event queues closed")
		return m, nil

	case pollTickMsg:
		return m, m.handlePollTick()
	case flushTickMsg:
		if _, err := m.batcher.MaybeFlush(m.ctx, m.now()); err != nil {
			m.logger.Warn().Err(err).Int("pending", m.batcher.Pending()).Msg("cache flush failed")
		}
		return m, flushTick()
	case reconcileTickMsg:
		m.logger.Debug().Msg("reconcile pass")
		return m, tea.Batch(m.loadFolders(), reconcileTick(m.cfg.Client.ReconcileInterval))
	}
	return m, nil
}

func (m *Model) quit() tea.Cmd {
	if err := m.batcher.Flush(m.ctx); err != nil {
		m.logger.Error().Err(err).Msg("failed to flush cache on exit")
	}
	return tea.Quit
}

func (m *Model) flash(text string, isErr bool) {
	m.toast = toast{text: text, err: isErr, until: m.now().Add(constants.ToastDuration)}
}

func (m *Model) folder(id string) (models.Folder, bool) {
	for _, f := range m.nav.Folders {
		if f.ID == id {
			return f, true
		}
	}
	return models.Folder{}, false
}

// currentFolder is the folder the trail belongs to, or the selected folder
// when no folder is open.
func (m *Model) currentFolder() (models.Folder, bool) {
	if l := m.nav.Level(1); l != nil {
		return m.folder(l.FolderID)
	}
	return m.nav.SelectedFolder()
}

// localRoot is the translated on-disk path of a folder.
func (m *Model) localRoot(f models.Folder) string {
	return m.cfg.TranslatePath(f.Path)
}

func (m *Model) localPath(f models.Folder, prefix string) string {
	root := m.localRoot(f)
	if prefix == "" {
		return root
	}
	return filepath.Join(root, filepath.FromSlash(prefix))
}

func needKey(folder string) string {
	return perf.Key(folder, "") + "?need"
}
