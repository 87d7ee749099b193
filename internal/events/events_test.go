package events

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func raw(id uint64, kind string, data string) RawEvent {
	return RawEvent{ID: id, Type: kind, Data: json.RawMessage(data)}
}

func TestProcessBatch_GapDetection(t *testing.T) {
	batch := []RawEvent{
		raw(100, "Ping", `{}`),
		raw(101, "Ping", `{}`),
		raw(103, "Ping", `{}`),
	}

	res := ProcessBatch(0, batch)
	if len(res.Gaps) != 1 {
		t.Fatalf("expected exactly one gap, got %d: %+v", len(res.Gaps), res.Gaps)
	}
	if res.Gaps[0].LastID != 101 || res.Gaps[0].EventID != 103 {
		t.Errorf("gap = %+v, want 101 -> 103", res.Gaps[0])
	}
	if res.Gaps[0].Missed() != 1 {
		t.Errorf("missed = %d, want 1", res.Gaps[0].Missed())
	}
	if res.LastID != 103 {
		t.Errorf("LastID = %d, want 103", res.LastID)
	}
}

func TestProcessBatch_GapAgainstPreviousBatch(t *testing.T) {
	res := ProcessBatch(50, []RawEvent{raw(51, "Ping", `{}`), raw(52, "Ping", `{}`)})
	if len(res.Gaps) != 0 {
		t.Errorf("contiguous batch reported gaps: %+v", res.Gaps)
	}

	res = ProcessBatch(50, []RawEvent{raw(60, "Ping", `{}`)})
	if len(res.Gaps) != 1 || res.Gaps[0].Missed() != 9 {
		t.Errorf("expected one gap of 9, got %+v", res.Gaps)
	}

	// daemon restarted: ids go backwards
	res = ProcessBatch(500, []RawEvent{raw(1, "Ping", `{}`)})
	if len(res.Gaps) != 1 || res.Gaps[0].Missed() != 0 || res.LastID != 1 {
		t.Errorf("restart: gaps=%+v last=%d", res.Gaps, res.LastID)
	}
}

func TestProcessBatch_Classification(t *testing.T) {
	batch := []RawEvent{
		raw(1, KindLocalIndexUpdated, `{"folder":"docs","filenames":["a.txt","sub/b.txt"]}`),
		raw(2, KindItemFinished, `{"folder":"docs","item":"photos","type":"dir","error":null}`),
		raw(3, KindRemoteChangeDetected, `{"folderID":"docs","path":"notes/x.md","type":"file"}`),
		raw(4, KindLocalChangeDetected, `{"folder":"docs","path":"new/","type":"file"}`),
		raw(5, KindItemFinished, `{"folder":"docs","item":"deep","type":"FILE_INFO_TYPE_DIRECTORY"}`),
		raw(6, KindFolderSummary, `{"folder":"docs","summary":{"state":"idle","sequence":9}}`),
		raw(7, KindItemFinished, `not json`),
		raw(8, "DeviceConnected", `{"id":"X"}`),
	}

	res := ProcessBatch(0, batch)
	want := []CacheInvalidation{
		File{FolderID: "docs", Path: "a.txt"},
		File{FolderID: "docs", Path: "sub/b.txt"},
		Directory{FolderID: "docs", Path: "photos"},
		File{FolderID: "docs", Path: "notes/x.md"},
		Directory{FolderID: "docs", Path: "new"},
		Directory{FolderID: "docs", Path: "deep"},
	}
	if len(res.Invalidations) != len(want) {
		t.Fatalf("got %d invalidations, want %d: %+v", len(res.Invalidations), len(want), res.Invalidations)
	}
	for i := range want {
		if res.Invalidations[i] != want[i] {
			t.Errorf("invalidation %d = %#v, want %#v", i, res.Invalidations[i], want[i])
		}
	}
	if res.LastID != 8 {
		t.Errorf("LastID = %d, want 8 (ignored events still advance)", res.LastID)
	}

	var summaries int
	for _, p := range res.Payloads {
		if s, ok := p.(FolderSummary); ok {
			summaries++
			if s.State != "idle" || s.Sequence != 9 {
				t.Errorf("summary decoded as %+v", s)
			}
		}
	}
	if summaries != 1 {
		t.Errorf("expected one folder summary payload, got %d", summaries)
	}
}

func TestDecode_UnknownAndMalformed(t *testing.T) {
	tests := []struct {
		name string
		ev   RawEvent
	}{
		{"unknown kind", raw(1, "ConfigSaved", `{}`)},
		{"bad index data", raw(1, KindLocalIndexUpdated, `[1,2]`)},
		{"missing folder", raw(1, KindItemFinished, `{"item":"x"}`)},
		{"missing item", raw(1, KindItemFinished, `{"folder":"x"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Decode(tt.ev)
			ig, ok := p.(Ignored)
			if !ok {
				t.Fatalf("expected Ignored, got %#v", p)
			}
			if ig.Type != tt.ev.Type {
				t.Errorf("Ignored.Type = %q, want %q", ig.Type, tt.ev.Type)
			}
		})
	}
}

func TestQueue_FIFOAndUnbounded(t *testing.T) {
	q := NewQueue[int]()

	// No consumer yet: pushes must not block.
	for i := 0; i < 1000; i++ {
		if !q.Push(i) {
			t.Fatalf("push %d rejected", i)
		}
	}
	if q.Len() != 1000 {
		t.Fatalf("Len = %d, want 1000", q.Len())
	}

	select {
	case <-q.Ready():
	default:
		t.Fatal("Ready not signalled after push")
	}

	first := q.Drain(256)
	if len(first) != 256 || first[0] != 0 || first[255] != 255 {
		t.Fatalf("first drain = %d values starting %v", len(first), first[:1])
	}
	rest := q.Drain(0)
	if len(rest) != 744 {
		t.Fatalf("second drain = %d values, want 744", len(rest))
	}
	for i, v := range rest {
		if v != i+256 {
			t.Fatalf("out of order: got %d, want %d", v, i+256)
		}
	}
	if q.Drain(0) != nil {
		t.Error("drain of empty queue should return nil")
	}

	q.Push(7)
	q.Close()
	if q.Push(8) {
		t.Error("push after close accepted")
	}
	if q.Done() {
		t.Error("Done before the last value was drained")
	}
	if got := q.Drain(0); len(got) != 1 || got[0] != 7 {
		t.Errorf("drain after close = %v, want [7]", got)
	}
	if !q.Done() {
		t.Error("Done should be true once closed and empty")
	}
	q.Close()
}

func TestQueue_CrossQueueVisibility(t *testing.T) {
	inv := NewQueue[int]()
	wm := NewQueue[int]()

	go func() {
		for batch := 1; batch <= 200; batch++ {
			inv.Push(batch)
			wm.Push(batch)
		}
	}()

	// Draining the watermark first, then the invalidations, must always
	// find every invalidation pushed before that watermark.
	applied := 0
	for applied < 200 {
		var last int
		if w := wm.Drain(0); len(w) > 0 {
			last = w[len(w)-1]
		}
		for _, v := range inv.Drain(0) {
			applied = v
		}
		if last > applied {
			t.Fatalf("watermark %d seen with only %d invalidations applied", last, applied)
		}
	}
}

type message struct {
	inv CacheInvalidation
	wm  uint64
}

// recorder keeps the interleaving of both sinks in one slice.
type recorder struct {
	mu   sync.Mutex
	msgs []message
}

type invSink struct{ r *recorder }

func (s invSink) Push(v CacheInvalidation) bool {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.msgs = append(s.r.msgs, message{inv: v})
	return true
}

type wmSink struct{ r *recorder }

func (s wmSink) Push(v uint64) bool {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.msgs = append(s.r.msgs, message{wm: v})
	return true
}

func (r *recorder) waitFor(t *testing.T, n int) []message {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		if len(r.msgs) >= n {
			out := append([]message(nil), r.msgs...)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t.Fatalf("timed out waiting for %d messages, got %+v", n, r.msgs)
	return nil
}

type feed struct {
	mu       sync.Mutex
	batches  [][]byte
	statuses []int
	sinces   []string
	keys     []string
}

func (f *feed) handler(w nethttp.ResponseWriter, r *nethttp.Request) {
	f.mu.Lock()
	f.sinces = append(f.sinces, r.URL.Query().Get("since"))
	f.keys = append(f.keys, r.Header.Get("X-API-Key"))
	var body []byte
	status := nethttp.StatusOK
	if len(f.batches) > 0 {
		body = f.batches[0]
		f.batches = f.batches[1:]
		status = f.statuses[0]
		f.statuses = f.statuses[1:]
	}
	f.mu.Unlock()

	if body == nil {
		// behave like a long poll that never returns anything new
		select {
		case <-r.Context().Done():
		case <-time.After(200 * time.Millisecond):
		}
		w.Write([]byte("[]"))
		return
	}
	w.WriteHeader(status)
	w.Write(body)
}

func (f *feed) push(status int, body string) {
	f.batches = append(f.batches, []byte(body))
	f.statuses = append(f.statuses, status)
}

func (f *feed) since() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sinces...)
}

func TestClient_RunOrdersInvalidationsBeforeWatermark(t *testing.T) {
	f := &feed{}
	f.push(200, `[
		{"id":11,"type":"LocalIndexUpdated","data":{"folder":"docs","filenames":["a","b"]}},
		{"id":12,"type":"ItemFinished","data":{"folder":"docs","item":"dir","type":"dir"}}
	]`)
	f.push(200, `[]`)
	f.push(200, `[{"id":13,"type":"Starting","data":{}}]`)
	srv := httptest.NewServer(nethttp.HandlerFunc(f.handler))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", srv.Client(), nil)
	c.Backoff = 10 * time.Millisecond

	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx, 10, invSink{rec}, wmSink{rec}) }()

	got := rec.waitFor(t, 5)
	cancel()
	if err := <-errCh; err != context.Canceled {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}

	wantInv := []CacheInvalidation{
		File{FolderID: "docs", Path: "a"},
		File{FolderID: "docs", Path: "b"},
		Directory{FolderID: "docs", Path: "dir"},
	}
	for i, w := range wantInv {
		if got[i].inv != w {
			t.Errorf("message %d = %+v, want invalidation %+v", i, got[i], w)
		}
	}
	if got[3].inv != nil || got[3].wm != 12 {
		t.Errorf("message 3 = %+v, want watermark 12", got[3])
	}
	if got[4].inv != nil || got[4].wm != 13 {
		t.Errorf("message 4 = %+v, want watermark 13 (one per batch)", got[4])
	}

	sinces := f.since()
	if len(sinces) < 3 || sinces[0] != "10" || sinces[1] != "12" || sinces[2] != "12" {
		t.Errorf("since sequence = %v, want 10, 12, 12 ...", sinces)
	}
	f.mu.Lock()
	key := f.keys[0]
	f.mu.Unlock()
	if key != "secret" {
		t.Errorf("X-API-Key = %q", key)
	}
}

func TestClient_RunRetriesSameIDAfterErrors(t *testing.T) {
	f := &feed{}
	f.push(500, `boom`)
	f.push(200, `{not json`)
	f.push(200, `[{"id":6,"type":"Ping","data":{}}]`)
	srv := httptest.NewServer(nethttp.HandlerFunc(f.handler))
	defer srv.Close()

	c := NewClient(srv.URL, "k", srv.Client(), nil)
	c.Backoff = 5 * time.Millisecond

	inv := NewQueue[CacheInvalidation]()
	wm := NewQueue[uint64]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx, 5, inv, wm)

	select {
	case <-wm.Ready():
		if got := wm.Drain(0); len(got) != 1 || got[0] != 6 {
			t.Errorf("watermarks = %v, want [6]", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no watermark after recovering from errors")
	}
	if inv.Len() != 0 {
		t.Errorf("ping produced %d invalidations", inv.Len())
	}

	sinces := f.since()
	for i := 0; i < 3; i++ {
		if sinces[i] != "5" {
			t.Errorf("poll %d used since=%s, want 5", i, sinces[i])
		}
	}
}

func TestClient_RunBacksOffOnConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(nethttp.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, "k", nil, nil)
	c.Backoff = 20 * time.Millisecond

	var polls atomic.Int32
	c.HTTP = &nethttp.Client{Transport: roundTripFunc(func(r *nethttp.Request) (*nethttp.Response, error) {
		polls.Add(1)
		return nil, fmt.Errorf("dial tcp: connection refused")
	})}

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()
	err := c.Run(ctx, 0, NewQueue[CacheInvalidation](), NewQueue[uint64]())
	if err != context.DeadlineExceeded {
		t.Errorf("Run returned %v, want deadline exceeded", err)
	}
	if n := polls.Load(); n < 2 || n > 7 {
		t.Errorf("polls = %d, expected backoff to pace retries", n)
	}
}

type roundTripFunc func(*nethttp.Request) (*nethttp.Response, error)

func (f roundTripFunc) RoundTrip(r *nethttp.Request) (*nethttp.Response, error) { return f(r) }
