package state

import (
	"errors"
	"testing"
	"time"

	"github.com/syncbrowse/syncbrowse/internal/models"
	"github.com/syncbrowse/syncbrowse/internal/sequencer"
)

func dir(name string) models.Entry {
	return models.Entry{Name: name, Type: models.EntryTypeDirectory}
}

func file(name string, size int64) models.Entry {
	return models.Entry{Name: name, Type: models.EntryTypeFile, Size: size}
}

func names(l *BreadcrumbLevel) []string {
	out := make([]string, len(l.Entries))
	for i, e := range l.Entries {
		out[i] = e.Name
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func newNav() *NavigationState {
	n := New()
	n.SetFolders([]models.Folder{{ID: "docs"}, {ID: "photos"}})
	return n
}

func TestOutOfSyncFilter_Algorithm(t *testing.T) {
	n := newNav()
	n.SelectFolder(0)
	root := n.PushLevel("docs", "", "/sync/docs", []models.Entry{dir("SyncedDir"), dir("Messages")}, true)
	msgs := n.PushLevel("docs", "Messages", "/sync/docs/Messages", []models.Entry{file("foo", 1), file("bar", 2), file("baz.txt", 3)}, true)

	n.EnableOutOfSync(map[string][]string{"docs": {"Messages/foo"}}, time.Now())

	if got := names(root); !equal(got, []string{"Messages"}) {
		t.Errorf("root filtered to %v, want [Messages]", got)
	}
	if got := names(msgs); !equal(got, []string{"foo"}) {
		t.Errorf("Messages filtered to %v, want [foo]", got)
	}

	n.DisableOutOfSync()
	if len(root.Entries) != 2 || len(msgs.Entries) != 3 {
		t.Errorf("disabling should restore all entries, got %v / %v", names(root), names(msgs))
	}
}

func TestOutOfSyncFilter_DirectoryNeedsDescendant(t *testing.T) {
	n := newNav()
	n.SelectFolder(0)
	n.EnableOutOfSync(map[string][]string{"docs": {"a/b/c.txt", "Messages"}}, time.Now())
	root := n.PushLevel("docs", "", "", []models.Entry{dir("a"), dir("Messages"), file("Messages2", 0)}, true)

	// "Messages" is itself in the set but nothing lies under it; a directory
	// needs a descendant, and the file Messages2 is not in the set.
	if got := names(root); !equal(got, []string{"a"}) {
		t.Errorf("filtered root = %v, want [a]", got)
	}

	other := n.PushLevel("photos", "", "", []models.Entry{file("x", 0)}, true)
	if len(other.Entries) != 0 {
		t.Errorf("folder without out-of-sync paths should show nothing, got %v", names(other))
	}
}

func TestPushLevel_FilteredBeforeReturn(t *testing.T) {
	n := newNav()
	n.SelectFolder(0)
	n.PushLevel("docs", "", "", []models.Entry{dir("Messages"), dir("SyncedDir")}, true)
	n.EnableOutOfSync(map[string][]string{"docs": {"Messages/foo"}}, time.Now())

	l := n.PushLevel("docs", "Messages", "", []models.Entry{file("foo", 0), file("bar", 0), file("baz.txt", 0)}, true)
	if got := names(l); !equal(got, []string{"foo"}) {
		t.Fatalf("pushed level visible = %v, want [foo]", got)
	}
	if l.SelectedName() != "foo" {
		t.Errorf("selection = %q, want foo", l.SelectedName())
	}

	// a level that arrives later through SetLevelEntries is filtered the same way
	loading := n.PushLevel("docs", "SyncedDir", "", nil, false)
	if !loading.Loading || len(loading.Entries) != 0 {
		t.Fatalf("uncached push should be loading and empty")
	}
	n.SetLevelEntries(loading, []models.Entry{file("ok.txt", 0)}, time.Now())
	if len(loading.Entries) != 0 {
		t.Errorf("late entries escaped the filter: %v", names(loading))
	}
	if loading.Loading || loading.Selected != -1 {
		t.Errorf("loaded empty level: loading=%v selected=%d", loading.Loading, loading.Selected)
	}
}

func TestSelectionPreservedAcrossMutations(t *testing.T) {
	n := newNav()
	n.SelectFolder(0)
	l := n.PushLevel("docs", "", "", []models.Entry{
		file("alpha", 30), file("beta", 10), file("gamma", 20), dir("zeta"),
	}, true)

	// name order: zeta (dir first), alpha, beta, gamma
	l.Selected = 2
	if l.SelectedName() != "beta" {
		t.Fatalf("setup: selected %q", l.SelectedName())
	}

	n.SetSortMode(sequencer.SortBySize)
	if l.SelectedName() != "beta" {
		t.Errorf("after size sort selected %q, want beta", l.SelectedName())
	}
	n.ToggleReverse()
	if l.SelectedName() != "beta" {
		t.Errorf("after reverse selected %q, want beta", l.SelectedName())
	}

	// reversed size order is beta, gamma, alpha, zeta
	n.SetSearch("ET")
	if got := names(l); !equal(got, []string{"beta", "zeta"}) {
		t.Errorf("search ET = %v", got)
	}
	if l.SelectedName() != "beta" {
		t.Errorf("after search selected %q, want beta", l.SelectedName())
	}

	n.SetSearch("gam")
	if l.Selected != 0 || l.SelectedName() != "gamma" {
		t.Errorf("selection should fall back to index 0, got %d (%q)", l.Selected, l.SelectedName())
	}

	n.SetSearch("nothing-matches")
	if l.Selected != -1 {
		t.Errorf("empty level should select none, got %d", l.Selected)
	}

	n.ClearSearch()
	if l.Selected != 0 || len(l.Entries) != 4 {
		t.Errorf("cleared search: selected=%d entries=%v", l.Selected, names(l))
	}
}

func TestSetSortMode_ResetsReverse(t *testing.T) {
	n := newNav()
	n.ToggleReverse()
	if !n.Reverse {
		t.Fatal("ToggleReverse did not flip")
	}
	n.SetSortMode(sequencer.SortByModified)
	if n.Reverse {
		t.Error("changing sort mode must reset reverse")
	}
}

func TestSetStates_ResortsBySyncState(t *testing.T) {
	n := newNav()
	n.SelectFolder(0)
	n.SetSortMode(sequencer.SortBySyncState)
	l := n.PushLevel("docs", "", "", []models.Entry{file("a", 0), file("b", 0), file("c", 0)}, true)
	l.Selected = 0

	n.SetStates(l, map[string]models.SyncState{
		"a": models.SyncStateSynced,
		"b": models.SyncStateError,
		"c": models.SyncStateConflicted,
	})
	if got := names(l); !equal(got, []string{"b", "c", "a"}) {
		t.Errorf("state order = %v, want [b c a]", got)
	}
	if l.SelectedName() != "a" {
		t.Errorf("selection should follow a, got %q", l.SelectedName())
	}
}

func TestSetStates_ResortKeepsFilters(t *testing.T) {
	tests := []struct {
		name   string
		search string
		sort   sequencer.SortMode
		want   []string
	}{
		{"state sort under search", "a", sequencer.SortBySyncState, []string{"ay", "ax"}},
		{"state sort unfiltered", "", sequencer.SortBySyncState, []string{"ay", "b", "ax"}},
		{"name sort ignores states", "a", sequencer.SortByName, []string{"ax", "ay"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newNav()
			n.SelectFolder(0)
			n.SetSortMode(tt.sort)
			l := n.PushLevel("docs", "", "", []models.Entry{file("ax", 0), file("ay", 0), file("b", 0)}, true)
			n.SetSearch(tt.search)

			n.SetStates(l, map[string]models.SyncState{
				"ax": models.SyncStateSynced,
				"ay": models.SyncStateError,
				"b":  models.SyncStateError,
			})
			if got := names(l); !equal(got, tt.want) {
				t.Errorf("entries = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPopLevel_ClampsFocus(t *testing.T) {
	n := newNav()
	n.SelectFolder(0)
	n.PushLevel("docs", "", "", nil, true)
	n.PushLevel("docs", "a", "", nil, true)
	n.PushLevel("docs", "a/b", "", nil, true)

	if n.Focus != 3 || n.Len() != 3 {
		t.Fatalf("focus=%d len=%d", n.Focus, n.Len())
	}
	n.PopLevel()
	if n.Focus != 2 {
		t.Errorf("focus = %d, want 2", n.Focus)
	}

	n.SetFocus(1)
	n.PopLevel()
	if n.Focus != 1 || n.Len() != 1 {
		t.Errorf("popping below focus must not move it: focus=%d len=%d", n.Focus, n.Len())
	}
	n.PopLevel()
	if n.Focus != 0 || n.PopLevel() {
		t.Errorf("focus=%d after emptying trail", n.Focus)
	}
}

func TestPushLevel_FromMiddleDropsDeeperLevels(t *testing.T) {
	n := newNav()
	n.SelectFolder(0)
	n.PushLevel("docs", "", "", nil, true)
	n.PushLevel("docs", "a", "", nil, true)
	n.PushLevel("docs", "a/b", "", nil, true)

	n.SetFocus(1)
	n.PushLevel("docs", "c", "", nil, true)
	if n.Len() != 2 || n.LastLevel().Prefix != "c" || n.Focus != 2 {
		t.Errorf("trail len=%d last=%q focus=%d", n.Len(), n.LastLevel().Prefix, n.Focus)
	}
}

func TestSetFocus_PureAndClamped(t *testing.T) {
	n := newNav()
	n.SelectFolder(0)
	l := n.PushLevel("docs", "", "", []models.Entry{file("x", 0)}, true)

	n.SetFocus(9)
	if n.Focus != 1 {
		t.Errorf("focus = %d, want clamp to 1", n.Focus)
	}
	n.SetFocus(-3)
	if n.Focus != 0 {
		t.Errorf("focus = %d, want 0", n.Focus)
	}
	if n.Len() != 1 || n.Level(1) != l || l.Selected != 0 {
		t.Error("SetFocus must not change levels")
	}
}

func TestMoveSelection_Wraps(t *testing.T) {
	n := newNav()
	n.MoveSelection(-1)
	if n.FolderIndex != 1 {
		t.Errorf("folder index = %d, want wrap to 1", n.FolderIndex)
	}

	n.SelectFolder(0)
	l := n.PushLevel("docs", "", "", []models.Entry{file("a", 0), file("b", 0)}, true)
	n.MoveSelection(1)
	n.MoveSelection(1)
	if l.Selected != 0 {
		t.Errorf("selected = %d, want wrap to 0", l.Selected)
	}
}

func TestSetFolders_KeepsSelectionByID(t *testing.T) {
	n := newNav()
	n.FolderIndex = 1
	n.SetFolders([]models.Folder{{ID: "archive"}, {ID: "docs"}, {ID: "photos"}})
	if n.FolderIndex != 2 {
		t.Errorf("folder index = %d, want 2 (photos)", n.FolderIndex)
	}
	n.SetFolders(nil)
	if n.FolderIndex != -1 {
		t.Errorf("empty folder list index = %d", n.FolderIndex)
	}
}

func TestEntriesUniqueByName(t *testing.T) {
	n := newNav()
	n.SelectFolder(0)
	l := n.PushLevel("docs", "", "", []models.Entry{file("a", 1), file("b", 1), file("a", 9)}, true)
	if len(l.Entries) != 2 {
		t.Fatalf("entries = %v", names(l))
	}
	for _, e := range l.Entries {
		if e.Name == "a" && e.Size != 9 {
			t.Errorf("later duplicate should win, size=%d", e.Size)
		}
	}
}

func TestMarkStaleAndErrors(t *testing.T) {
	n := newNav()
	n.SelectFolder(0)
	root := n.PushLevel("docs", "", "", []models.Entry{file("a", 0)}, true)
	n.PushLevel("docs", "Messages", "", nil, true)

	got := n.MarkStale("docs", "/")
	if len(got) != 1 || got[0] != root || !root.Stale {
		t.Errorf("MarkStale(root) = %v", got)
	}
	if len(n.FindLevels("docs", "Message")) != 0 {
		t.Error("FindLevels must match whole prefixes")
	}

	n.SetLevelError(root, errors.New("boom"))
	if root.Err == nil || len(root.Entries) != 1 {
		t.Error("error keeps previous entries visible")
	}
	n.SetLevelEntries(root, []models.Entry{file("b", 0)}, time.Now())
	if root.Err != nil || root.Stale {
		t.Error("fresh entries clear error and stale flag")
	}
}
