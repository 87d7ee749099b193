package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/syncbrowse/syncbrowse/internal/constants"
	"github.com/syncbrowse/syncbrowse/internal/models"
	"github.com/syncbrowse/syncbrowse/internal/perf"
	"github.com/syncbrowse/syncbrowse/internal/state"
)

const (
	folderPaneWidth = 26
	defaultWidth    = 120
	defaultHeight   = 30
	// rows taken by borders, pane title, status bar, toast and help
	chromeHeight = 7
)

var (
	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
	focusedPaneStyle = paneStyle.BorderForeground(lipgloss.Color("62"))

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	staleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	dirStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("111")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236")).Padding(0, 1)

	stateStyles = map[models.SyncState]lipgloss.Style{
		models.SyncStateSynced:         lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.SyncStateSyncing:        lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		models.SyncStateLocallyChanged: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.SyncStateRemoteOnly:     lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		models.SyncStateIgnored:        lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		models.SyncStateConflicted:     lipgloss.NewStyle().Foreground(lipgloss.Color("202")),
		models.SyncStateError:          lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

func stateGlyph(s models.SyncState) string {
	switch s {
	case models.SyncStateSynced:
		return "✓"
	case models.SyncStateSyncing:
		return "↻"
	case models.SyncStateLocallyChanged:
		return "●"
	case models.SyncStateRemoteOnly:
		return "↓"
	case models.SyncStateIgnored:
		return "⊘"
	case models.SyncStateConflicted:
		return "!"
	case models.SyncStateError:
		return "✗"
	default:
		return "·"
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	width, height := m.width, m.height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	rows := height - chromeHeight
	if rows < 3 {
		rows = 3
	}

	first, last := m.visibleLevels()
	n := last - first
	levelWidth := width - folderPaneWidth - 4
	if n > 0 {
		levelWidth = levelWidth/n - 4
	}
	if levelWidth < 12 {
		levelWidth = 12
	}

	panes := []string{m.folderPane(folderPaneWidth, rows)}
	for i := first; i < last; i++ {
		panes = append(panes, m.levelPane(i+1, levelWidth, rows))
	}

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, panes...))
	b.WriteString("\n")
	b.WriteString(statusStyle.Width(width).Render(m.statusLine()))
	b.WriteString("\n")
	b.WriteString(m.promptLine())
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.keys.shortHelp()))
	return b.String()
}

// visibleLevels returns the half-open range of trail indexes to render: the
// deepest MaxVisibleLevels levels, shifted left when focus is further up.
func (m *Model) visibleLevels() (int, int) {
	total := m.nav.Len()
	first := total - constants.MaxVisibleLevels
	if first < 0 {
		first = 0
	}
	if m.nav.Focus > 0 && m.nav.Focus-1 < first {
		first = m.nav.Focus - 1
	}
	last := first + constants.MaxVisibleLevels
	if last > total {
		last = total
	}
	return first, last
}

func (m *Model) folderPane(width, rows int) string {
	style := paneStyle
	if m.nav.Focus == 0 {
		style = focusedPaneStyle
	}

	lines := []string{titleStyle.Render("Folders")}
	if len(m.nav.Folders) == 0 {
		lines = append(lines, dimStyle.Render(m.spinner.View()+" loading"))
	}
	start := scrollStart(m.nav.FolderIndex, len(m.nav.Folders), rows)
	for i := start; i < len(m.nav.Folders) && i < start+rows; i++ {
		f := m.nav.Folders[i]
		label := truncate(f.DisplayName(), width-10)
		if st, ok := m.statuses[f.ID]; ok {
			label = fmt.Sprintf("%-*s %s", width-10, label, dimStyle.Render(shortState(st)))
		}
		if i == m.nav.FolderIndex {
			label = selectedStyle.Render(label)
		}
		lines = append(lines, label)
	}
	return style.Width(width).Height(rows + 1).Render(strings.Join(lines, "\n"))
}

func (m *Model) levelPane(index, width, rows int) string {
	l := m.nav.Level(index)
	style := paneStyle
	if m.nav.Focus == index {
		style = focusedPaneStyle
	}

	title := "/"
	if l.Prefix != "" {
		title = l.Prefix
	}
	title = titleStyle.Render(truncate(title, width))
	if l.Stale {
		title += staleStyle.Render(" ~")
	}
	lines := []string{title}

	switch {
	case l.Loading:
		lines = append(lines, dimStyle.Render(m.spinner.View()+" loading"))
	case l.Err != nil && len(l.Entries) == 0:
		lines = append(lines, errorStyle.Render(truncate(l.Err.Error(), width)))
	case len(l.Entries) == 0:
		lines = append(lines, dimStyle.Render("(empty)"))
	}

	start := scrollStart(l.Selected, len(l.Entries), rows)
	for i := start; i < len(l.Entries) && i < start+rows; i++ {
		lines = append(lines, m.entryLine(l, l.Entries[i], i == l.Selected, width))
	}
	return style.Width(width).Height(rows + 1).Render(strings.Join(lines, "\n"))
}

func (m *Model) entryLine(l *state.BreadcrumbLevel, e models.Entry, selected bool, width int) string {
	s, known := l.States[e.Name]
	glyph := stateGlyph(s)
	if known {
		if st, ok := stateStyles[s]; ok {
			glyph = st.Render(glyph)
		}
	}

	name := e.Name
	if e.IsDir() {
		name += "/"
	}
	name = truncate(name, width-2)
	if selected {
		name = selectedStyle.Render(name)
	} else if e.IsDir() {
		name = dirStyle.Render(name)
	}
	return glyph + " " + name
}

func (m *Model) statusLine() string {
	var parts []string

	if !m.perf.LastLoadAt.IsZero() {
		source := "remote"
		if m.perf.LastCacheHit {
			source = "cache"
		}
		parts = append(parts, fmt.Sprintf("%s %s", m.perf.LastLatency.Round(10*time.Microsecond), source))
	}

	order := "↑"
	if m.nav.Reverse {
		order = "↓"
	}
	parts = append(parts, "sort: "+m.nav.Sort.String()+" "+order)

	if filters := m.nav.ActiveFilters(); len(filters) > 0 {
		parts = append(parts, "filter: "+strings.Join(filters, ","))
	}
	if n := len(m.perf.Tracker.PollSet()); n > 0 {
		parts = append(parts, fmt.Sprintf("polling %d", n))
	}
	if n := m.batcher.Pending(); n > 0 {
		parts = append(parts, fmt.Sprintf("writes %d", n))
	}
	if n := m.perf.Pending.Len(); n > 0 {
		parts = append(parts, fmt.Sprintf("deletes %d", n))
	}
	if inflight := m.perf.Ledger.Len(perf.KindBrowse) + m.perf.Ledger.Len(perf.KindSyncState); inflight > 0 {
		parts = append(parts, m.spinner.View()+fmt.Sprintf(" %d", inflight))
	}
	if m.lastWatermark > 0 {
		parts = append(parts, fmt.Sprintf("event %d", m.lastWatermark))
	}
	return strings.Join(parts, " │ ")
}

func (m *Model) promptLine() string {
	switch {
	case m.confirm != nil:
		what := "file"
		if m.confirm.isDir {
			what = "directory"
		}
		return errorStyle.Render(fmt.Sprintf("ignore and delete %s %s locally? [y/N]", what, displayPath(m.confirm.folder.ID, m.confirm.path)))
	case m.searching:
		return m.search.View()
	case m.toast.text != "":
		if m.toast.err {
			return errorStyle.Render(m.toast.text)
		}
		return infoStyle.Render(m.toast.text)
	}
	return ""
}

func shortState(st models.FolderStatus) string {
	if st.State == "" {
		return "?"
	}
	if n := st.NeedTotal(); n > 0 && st.State == "idle" {
		return fmt.Sprintf("need %d", n)
	}
	return st.State
}

// scrollStart keeps selected inside a window of rows lines.
func scrollStart(selected, total, rows int) int {
	if total <= rows || selected < rows/2 {
		return 0
	}
	start := selected - rows/2
	if start > total-rows {
		start = total - rows
	}
	return start
}

func truncate(s string, n int) string {
	if n <= 1 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
