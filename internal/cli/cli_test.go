package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/syncbrowse/syncbrowse/internal/api/apitest"
	"github.com/syncbrowse/syncbrowse/internal/config"
	"github.com/syncbrowse/syncbrowse/internal/events"
	"github.com/syncbrowse/syncbrowse/internal/logging"
	"github.com/syncbrowse/syncbrowse/internal/mirror"
	"github.com/syncbrowse/syncbrowse/internal/models"
	"github.com/syncbrowse/syncbrowse/internal/perf"
	"github.com/syncbrowse/syncbrowse/internal/progress"
	"github.com/syncbrowse/syncbrowse/internal/store"
)

func setGlobals(t *testing.T, file, key, url string) {
	t.Helper()
	oldFile, oldKey, oldURL := cfgFile, apiKey, apiBaseURL
	cfgFile, apiKey, apiBaseURL = file, key, url
	t.Cleanup(func() { cfgFile, apiKey, apiBaseURL = oldFile, oldKey, oldURL })
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCmd()
	AddCommands(root)

	want := []string{"browse", "events", "status", "cache stats", "cache clear", "cache warm", "config init", "config show", "config test", "config path", "completion"}
	for _, path := range want {
		cmd, _, err := root.Find(strings.Fields(path))
		if err != nil || cmd == root {
			t.Errorf("command %q not found", path)
			continue
		}
		if cmd.Short == "" {
			t.Errorf("command %q has no short description", path)
		}
	}

	for _, flag := range []string{"config", "api-key", "api-url", "verbose", "debug"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("--%s flag not found", flag)
		}
	}
	if root.RunE == nil {
		t.Error("root command should start the browser")
	}
}

func TestEventsFlags(t *testing.T) {
	cmd := newEventsCmd()
	for _, flag := range []string{"since", "no-resume", "ephemeral"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("--%s flag not found", flag)
		}
	}

	warm, _, err := newCacheCmd().Find([]string{"warm"})
	if err != nil {
		t.Fatal(err)
	}
	if warm.Flags().Lookup("concurrency") == nil {
		t.Error("--concurrency flag not found")
	}
	if err := warm.Args(warm, nil); err == nil {
		t.Error("cache warm should require a folder argument")
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	cfg := config.NewConfig()
	cfg.BaseURL = "http://file:8384"
	cfg.APIKey = "file-key"
	if err := config.Save(cfg, path); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		env     map[string]string
		flagKey string
		flagURL string
		wantKey string
		wantURL string
	}{
		{"file only", nil, "", "", "file-key", "http://file:8384"},
		{"env over file", map[string]string{config.EnvAPIKey: "env-key", config.EnvBaseURL: "http://env:8384/"}, "", "", "env-key", "http://env:8384"},
		{"flags over env", map[string]string{config.EnvAPIKey: "env-key"}, "flag-key", "http://flag:8384/", "flag-key", "http://flag:8384"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(config.EnvAPIKey, "")
			t.Setenv(config.EnvBaseURL, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			setGlobals(t, path, tt.flagKey, tt.flagURL)

			got, err := loadConfig()
			if err != nil {
				t.Fatalf("loadConfig() error = %v", err)
			}
			if got.APIKey != tt.wantKey {
				t.Errorf("APIKey = %q, want %q", got.APIKey, tt.wantKey)
			}
			if got.BaseURL != tt.wantURL {
				t.Errorf("BaseURL = %q, want %q", got.BaseURL, tt.wantURL)
			}
		})
	}
}

func TestPromptConfig(t *testing.T) {
	input := strings.Join([]string{
		"http://nas:8384/", // daemon URL
		"",                 // empty key is asked again
		"secret",           // API key
		"",                 // proxy mode default
		"/var/syncthing",   // path prefix
		"/home/me/Sync",    // local prefix
		"",                 // done
	}, "\n") + "\n"

	var out bytes.Buffer
	cfg, err := promptConfig(strings.NewReader(input), &out)
	if err != nil {
		t.Fatalf("promptConfig() error = %v", err)
	}
	if cfg.BaseURL != "http://nas:8384" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.APIKey != "secret" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.ProxyMode != "no-proxy" {
		t.Errorf("ProxyMode = %q", cfg.ProxyMode)
	}
	if got := cfg.TranslatePath("/var/syncthing/docs"); got != "/home/me/Sync/docs" {
		t.Errorf("TranslatePath = %q", got)
	}
	if strings.Count(out.String(), "API key (required)") != 2 {
		t.Errorf("expected the API key prompt twice, output:\n%s", out.String())
	}
}

func TestPromptConfig_EOFWithoutKey(t *testing.T) {
	_, err := promptConfig(strings.NewReader("\n"), &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected an error when input ends before the API key")
	}
}

func TestShowConfigMasksKey(t *testing.T) {
	cfg := config.NewConfig()
	cfg.APIKey = "abcdefgh1234"
	cfg.PathMap["/srv"] = "/mnt"

	var out bytes.Buffer
	showConfig(&out, cfg, filepath.Join(t.TempDir(), "missing.ini"))
	s := out.String()

	if strings.Contains(s, "abcdefgh") {
		t.Error("API key should be masked")
	}
	for _, want := range []string{"1234", "/srv => /mnt", "file does not exist"} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q:\n%s", want, s)
		}
	}
}

func TestTestConnection(t *testing.T) {
	fake := apitest.NewFake()
	fake.FolderList = []models.Folder{{ID: "a"}, {ID: "b"}}

	n, err := testConnection(context.Background(), fake)
	if err != nil || n != 2 {
		t.Fatalf("testConnection() = %d, %v; want 2, nil", n, err)
	}

	fake.Errors["Ping"] = errors.New("refused")
	if _, err := testConnection(context.Background(), fake); err == nil {
		t.Error("expected ping failure")
	}
}

func TestPrintStatus(t *testing.T) {
	fake := apitest.NewFake()
	fake.FolderList = []models.Folder{
		{ID: "docs", Label: "Documents"},
		{ID: "music", Label: "Music"},
		{ID: "gone"},
	}
	fake.SetStatus("docs", models.FolderStatus{State: "idle", Sequence: 42})
	fake.SetStatus("music", models.FolderStatus{State: "syncing", Sequence: 7, NeedFiles: 3, NeedDeletes: 1})

	var out bytes.Buffer
	if err := printStatus(context.Background(), fake, &out); err != nil {
		t.Fatalf("printStatus() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got:\n%s", out.String())
	}
	if f := strings.Fields(lines[1]); len(f) != 6 || f[2] != "idle" || f[3] != "42" || f[5] != "no" {
		t.Errorf("docs row = %q", lines[1])
	}
	if f := strings.Fields(lines[2]); len(f) != 6 || f[2] != "syncing" || f[4] != "4" || f[5] != "yes" {
		t.Errorf("music row = %q", lines[2])
	}
	if !strings.Contains(lines[3], "error:") {
		t.Errorf("gone row should report the error: %q", lines[3])
	}
}

func openTestCache(t *testing.T) (*store.KV, *store.Batcher) {
	t.Helper()
	kv, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv, store.NewBatcher(kv, logging.NewNopLogger())
}

func TestWarmFolderAndStats(t *testing.T) {
	fake := apitest.NewFake()
	fake.SetListing("docs", "",
		models.Entry{Name: "a", Type: models.EntryTypeDirectory},
		models.Entry{Name: "b", Type: models.EntryTypeDirectory},
		models.Entry{Name: "top.txt", Type: models.EntryTypeFile})
	fake.SetListing("docs", "a", models.Entry{Name: "x.txt", Type: models.EntryTypeFile})
	fake.SetListing("docs", "b", models.Entry{Name: "c", Type: models.EntryTypeDirectory})
	fake.SetListing("docs", "b/c")

	kv, batcher := openTestCache(t)
	stats, err := warmFolder(context.Background(), fake, batcher, "docs", 2, progress.NewNoOpProgress())
	if err != nil {
		t.Fatalf("warmFolder() error = %v", err)
	}
	if stats.Dirs != 4 || stats.Entries != 5 {
		t.Errorf("stats = %+v, want 4 dirs and 5 entries", stats)
	}
	if err := batcher.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := printCacheStats(context.Background(), kv, &out); err != nil {
		t.Fatalf("printCacheStats() error = %v", err)
	}
	var listings string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.HasPrefix(line, "listings") {
			listings = strings.Fields(line)[1]
		}
	}
	if listings != "4" {
		t.Errorf("listings = %q, want 4:\n%s", listings, out.String())
	}
}

// scriptedFeed pushes fixed batches, then waits for cancellation like the
// real client.
type scriptedFeed struct {
	batches [][]events.CacheInvalidation
	ids     []uint64
}

func (f *scriptedFeed) Run(ctx context.Context, lastID uint64, invs events.Sink[events.CacheInvalidation], wms events.Sink[uint64]) error {
	for i, batch := range f.batches {
		for _, inv := range batch {
			invs.Push(inv)
		}
		wms.Push(f.ids[i])
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestFollowEventsPrintsAndPersists(t *testing.T) {
	_, batcher := openTestCache(t)
	m := mirror.New(batcher)
	feed := &scriptedFeed{
		batches: [][]events.CacheInvalidation{
			{events.File{FolderID: "docs", Path: "a/x.txt"}},
			{events.Directory{FolderID: "docs", Path: ""}, events.Directory{FolderID: "music", Path: "live"}},
		},
		ids: []uint64{11, 14},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- followEvents(ctx, feed, 10, &out, m, batcher, "http://daemon", logging.NewNopLogger())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		id, err := m.Watermark(context.Background(), "http://daemon")
		if err == nil && id == 14 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("watermark not persisted, last = %d, err = %v", id, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("followEvents() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("followEvents did not stop after cancel")
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := []string{
		"file      docs  a/x.txt",
		"directory docs  /",
		"directory music  live",
	}
	if len(lines) != len(want) {
		t.Fatalf("output:\n%s", out.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestFolderReportFollowsPollSet(t *testing.T) {
	tracker := perf.NewTracker()
	lines := folderReport(tracker, []events.Payload{
		events.FolderSummary{Folder: "docs", State: "scanning", Sequence: 100},
		events.FolderSummary{Folder: "docs", State: "scanning", Sequence: 100},
		events.StateChanged{Folder: "docs", From: "scanning", To: "idle"},
		events.IndexUpdated{Folder: "docs", Filenames: []string{"a"}},
	})
	want := []string{
		"folder    docs  scanning seq 100 polled",
		"state     docs  scanning -> idle",
	}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Errorf("first batch:\n%s", strings.Join(lines, "\n"))
	}
	if !tracker.InPollSet("docs") {
		t.Fatal("scanning folder should be polled")
	}

	lines = folderReport(tracker, []events.Payload{
		events.FolderSummary{Folder: "docs", State: "idle", Sequence: 101},
	})
	if len(lines) != 1 || lines[0] != "folder    docs  idle seq 101" {
		t.Errorf("second batch = %q", lines)
	}
	if tracker.InPollSet("docs") {
		t.Error("idle folder still polled")
	}
}

func TestCompletionRequiresShell(t *testing.T) {
	root := NewRootCmd()
	completion, _, err := root.Find([]string{"completion"})
	if err != nil {
		t.Fatal(err)
	}
	if err := completion.Args(completion, []string{"tcsh"}); err == nil {
		t.Error("unknown shell should be rejected")
	}
	if err := completion.Args(completion, []string{"bash"}); err != nil {
		t.Errorf("bash should be accepted: %v", err)
	}
}
