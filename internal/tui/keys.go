package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	up        key.Binding
	down      key.Binding
	enter     key.Binding
	back      key.Binding
	nextFocus key.Binding
	sort      key.Binding
	reverse   key.Binding
	outOfSync key.Binding
	search    key.Binding
	clear     key.Binding
	ignore    key.Binding
	unignore  key.Binding
	delete    key.Binding
	confirm   key.Binding
	revert    key.Binding
	restore   key.Binding
	rescan    key.Binding
	refresh   key.Binding
	quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		enter: key.NewBinding(
			key.WithKeys("right", "l", "enter"),
			key.WithHelp("→/enter", "open"),
		),
		back: key.NewBinding(
			key.WithKeys("left", "h", "backspace"),
			key.WithHelp("←", "back"),
		),
		nextFocus: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next pane"),
		),
		sort: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sort"),
		),
		reverse: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "reverse"),
		),
		outOfSync: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "out of sync"),
		),
		search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		clear: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear search"),
		),
		ignore: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "ignore"),
		),
		unignore: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "un-ignore"),
		),
		delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "ignore+delete"),
		),
		confirm: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "confirm"),
		),
		revert: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "revert folder"),
		),
		restore: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "restore version"),
		),
		rescan: key.NewBinding(
			key.WithKeys("F"),
			key.WithHelp("F", "rescan"),
		),
		refresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "refresh"),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// shortHelp is the key hint line under the panes.
func (k keyMap) shortHelp() []key.Binding {
	return []key.Binding{k.enter, k.back, k.sort, k.reverse, k.outOfSync, k.search, k.ignore, k.delete, k.refresh, k.quit}
}
