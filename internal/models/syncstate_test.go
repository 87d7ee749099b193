package models

import "testing"

func TestDeriveSyncState(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		detail *FileDetail
		needed bool
		want   SyncState
	}{
		{"no detail", "a.txt", nil, false, SyncStateUnknown},
		{"no detail but needed", "a.txt", nil, true, SyncStateSyncing},
		{"synced", "a.txt", &FileDetail{Local: &FileInfo{}, Global: &FileInfo{}}, false, SyncStateSynced},
		{"ignored local", "a.txt", &FileDetail{Local: &FileInfo{Ignored: true}, Global: &FileInfo{}}, true, SyncStateIgnored},
		{"ignored flag", "a.txt", &FileDetail{Local: &FileInfo{LocalFlags: FlagLocalIgnored}}, false, SyncStateIgnored},
		{"conflict copy", "a.sync-conflict-20240101-120000-ABCDEFG.txt", &FileDetail{Local: &FileInfo{}, Global: &FileInfo{}}, false, SyncStateConflicted},
		{"receive only change", "a.txt", &FileDetail{Local: &FileInfo{LocalFlags: FlagLocalReceiveOnly}, Global: &FileInfo{}}, false, SyncStateLocallyChanged},
		{"remote only", "a.txt", &FileDetail{Local: nil, Global: &FileInfo{}}, false, SyncStateRemoteOnly},
		{"remote only being pulled", "a.txt", &FileDetail{Local: &FileInfo{Deleted: true}, Global: &FileInfo{}}, true, SyncStateSyncing},
		{"needed update", "a.txt", &FileDetail{Local: &FileInfo{}, Global: &FileInfo{}}, true, SyncStateSyncing},
		{"invalid", "a.txt", &FileDetail{Local: &FileInfo{Invalid: true}, Global: &FileInfo{}}, false, SyncStateError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveSyncState(tt.file, tt.detail, tt.needed); got != tt.want {
				t.Errorf("DeriveSyncState() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSyncStateNamesRoundTrip(t *testing.T) {
	for state := SyncStateUnknown; state <= SyncStateError; state++ {
		if got := ParseSyncState(state.String()); got != state {
			t.Errorf("ParseSyncState(%q) = %v, want %v", state.String(), got, state)
		}
	}
	if got := ParseSyncState("bogus"); got != SyncStateUnknown {
		t.Errorf("ParseSyncState(bogus) = %v, want unknown", got)
	}
}

func TestPathHelpers(t *testing.T) {
	if got := JoinPath("", "a"); got != "a" {
		t.Errorf("JoinPath root = %q", got)
	}
	if got := JoinPath("Messages/", "foo"); got != "Messages/foo" {
		t.Errorf("JoinPath = %q", got)
	}
	if got := ParentDir("Messages/foo"); got != "Messages" {
		t.Errorf("ParentDir = %q", got)
	}
	if got := ParentDir("foo"); got != "" {
		t.Errorf("ParentDir of top-level = %q, want root", got)
	}
	if !IsDirectoryType("FILE_INFO_TYPE_DIRECTORY") || !IsDirectoryType("dir") || IsDirectoryType("file") {
		t.Error("IsDirectoryType misclassified")
	}
}

func TestNeedResponsePaths(t *testing.T) {
	n := NeedResponse{
		Progress: []NeedItem{{Name: "a"}},
		Queued:   []NeedItem{{Name: "b"}},
		Rest:     []NeedItem{{Name: "c/d"}, {Name: ""}},
	}
	paths := n.Paths()
	if len(paths) != 3 || paths[2] != "c/d" {
		t.Errorf("Paths() = %v", paths)
	}
}
