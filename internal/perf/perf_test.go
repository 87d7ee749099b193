package perf

import (
	"testing"
	"time"
)

func TestLedger_AtMostOneFetchPerKey(t *testing.T) {
	l := NewLedger()
	key := Key("docs", "Messages")

	ticket, ok := l.Begin(KindBrowse, key)
	if !ok {
		t.Fatal("first Begin should be admitted")
	}
	if _, ok := l.Begin(KindBrowse, key); ok {
		t.Fatal("second Begin for the same key must be refused while the first is outstanding")
	}

	// Same key in a different set is independent.
	if _, ok := l.Begin(KindSyncState, key); !ok {
		t.Error("sync-state set should be independent of browse set")
	}

	l.Finish(ticket)
	if l.InFlight(KindBrowse, key) {
		t.Error("key should be released after Finish")
	}
	if _, ok := l.Begin(KindBrowse, key); !ok {
		t.Error("a new fetch should be admitted after release")
	}
}

func TestLedger_FinishReleasesOnFailureToo(t *testing.T) {
	l := NewLedger()
	key := Key("docs", "a.txt")

	for i := 0; i < 3; i++ {
		ticket, ok := l.Begin(KindSyncState, key)
		if !ok {
			t.Fatalf("attempt %d refused: previous fetch was not released", i)
		}
		// Simulated failure path: the caller still finishes.
		l.Finish(ticket)
	}
	if l.Len(KindSyncState) != 0 {
		t.Errorf("expected empty set, got %d", l.Len(KindSyncState))
	}
}

func TestLedger_StaleTicketIgnored(t *testing.T) {
	l := NewLedger()
	key := Key("docs", "")

	first, _ := l.Begin(KindFolder, key)
	l.Finish(first)
	second, _ := l.Begin(KindFolder, key)

	// Finishing the first ticket again must not release the second fetch.
	l.Finish(first)
	if !l.InFlight(KindFolder, key) {
		t.Fatal("stale ticket released a newer fetch")
	}
	l.Finish(second)
	if l.InFlight(KindFolder, key) {
		t.Error("second ticket should release")
	}
}

func TestLedger_DropDirSupersedes(t *testing.T) {
	l := NewLedger()
	browse, _ := l.Begin(KindBrowse, Key("docs", "Messages"))
	child, _ := l.Begin(KindSyncState, Key("docs", "Messages/foo"))
	nested, _ := l.Begin(KindSyncState, Key("docs", "Messages/deep/bar"))
	other, _ := l.Begin(KindSyncState, Key("docs", "Message2/foo"))

	if n := l.DropDir("docs", "Messages"); n != 2 {
		t.Errorf("DropDir superseded %d fetches, want 2", n)
	}

	// Still guarded: no second fetch while the first runs.
	if _, ok := l.Begin(KindBrowse, Key("docs", "Messages")); ok {
		t.Error("superseded fetch must keep its slot")
	}

	if !l.Finish(browse) {
		t.Error("browse should report superseded")
	}
	if !l.Finish(child) {
		t.Error("direct child should report superseded")
	}
	if l.Finish(nested) {
		t.Error("nested path is not a direct child of Messages")
	}
	if l.Finish(other) {
		t.Error("Message2 must not be touched by Messages invalidation")
	}
}

func TestLedger_DropTreeSegmentExact(t *testing.T) {
	l := NewLedger()
	a, _ := l.Begin(KindBrowse, Key("docs", "Messages/deep"))
	b, _ := l.Begin(KindBrowse, Key("docs", "Message2"))
	c, _ := l.Begin(KindBrowse, Key("music", "Messages"))

	if n := l.DropTree("docs", "Messages"); n != 1 {
		t.Errorf("DropTree superseded %d, want 1", n)
	}
	if !l.Finish(a) || l.Finish(b) || l.Finish(c) {
		t.Error("DropTree touched the wrong keys")
	}
}

func TestLedger_DiscoveredSet(t *testing.T) {
	l := NewLedger()
	for _, d := range []string{"Messages", "Messages/a", "Messages/a/b", "Message2", ""} {
		l.MarkDiscovered("docs", d)
	}
	l.MarkDiscovered("music", "Messages")

	if n := l.ForgetDiscovered("docs", "Messages"); n != 3 {
		t.Errorf("ForgetDiscovered removed %d, want 3", n)
	}
	if l.Discovered("docs", "Messages/a") {
		t.Error("nested dir should be forgotten")
	}
	if !l.Discovered("docs", "Message2") {
		t.Error("sibling with shared name prefix must survive")
	}
	if !l.Discovered("music", "Messages") {
		t.Error("other folder must survive")
	}

	l.ForgetDiscovered("docs", "")
	if got := l.DiscoveredDirs("docs"); len(got) != 0 {
		t.Errorf("root forget should clear the folder, left %v", got)
	}
}

func TestTracker_PollSetTiming(t *testing.T) {
	tr := NewTracker()

	obs := tr.Observe("docs", Fingerprint{State: "scanning", Sequence: 100})
	if !obs.First || !obs.Transient {
		t.Errorf("unexpected first observation %+v", obs)
	}
	if !tr.InPollSet("docs") {
		t.Fatal("scanning folder must be in the poll set after the first observation")
	}

	obs = tr.Observe("docs", Fingerprint{State: "idle", Sequence: 101})
	if !obs.Changed {
		t.Error("sequence change should be reported")
	}
	if tr.InPollSet("docs") {
		t.Error("idle folder must leave the poll set on the second observation")
	}

	// Same value again: nothing changed.
	obs = tr.Observe("docs", Fingerprint{State: "idle", Sequence: 101})
	if obs.Changed {
		t.Error("repeated sequence must not re-trigger")
	}
}

func TestTracker_ReceiveOnlyCountIsPartOfFingerprint(t *testing.T) {
	tr := NewTracker()
	tr.Observe("ro", Fingerprint{State: "idle", Sequence: 5})
	obs := tr.Observe("ro", Fingerprint{State: "idle", Sequence: 5, ReceiveOnlyItems: 2})
	if !obs.Changed {
		t.Error("receive-only count change should be reported")
	}
}

func TestTracker_SeedComparesOnFirstObservation(t *testing.T) {
	tr := NewTracker()
	tr.Seed("docs", Fingerprint{State: "idle", Sequence: 10})
	if tr.InPollSet("docs") {
		t.Error("Seed must not touch the poll set")
	}
	obs := tr.Observe("docs", Fingerprint{State: "idle", Sequence: 12})
	if obs.First || !obs.Changed {
		t.Errorf("seeded folder should report a change, got %+v", obs)
	}
	if obs.Previous.Sequence != 10 {
		t.Errorf("Previous = %d, want 10", obs.Previous.Sequence)
	}
}

func TestTracker_StatesAndForget(t *testing.T) {
	for _, s := range []string{"scanning", "syncing", "cleaning", "scan-waiting", "sync-waiting"} {
		if !IsTransient(s) {
			t.Errorf("%s should be transient", s)
		}
	}
	for _, s := range []string{"idle", "error", "", "weird"} {
		if IsTransient(s) {
			t.Errorf("%s should be stable", s)
		}
	}

	tr := NewTracker()
	tr.Observe("b", Fingerprint{State: "syncing"})
	tr.Observe("a", Fingerprint{State: "scanning"})
	if got := tr.PollSet(); len(got) != 2 || got[0] != "a" {
		t.Errorf("PollSet() = %v", got)
	}
	tr.Forget("a")
	if _, ok := tr.Fingerprint("a"); ok || tr.InPollSet("a") {
		t.Error("Forget should drop fingerprint and poll membership")
	}
}

func TestPendingOps(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewPendingOps(30 * time.Second)

	p.Add("docs", "tmp/big.iso", now)
	if !p.Blocks("docs", "tmp/big.iso", now.Add(time.Second)) {
		t.Error("pending op should block un-ignore")
	}
	if p.Blocks("docs", "tmp/other", now) {
		t.Error("unrelated path must not be blocked")
	}
	if p.Blocks("docs", "tmp/big.iso", now.Add(31*time.Second)) {
		t.Error("timed-out op must not block")
	}

	expired := p.Expire(now.Add(31 * time.Second))
	if len(expired) != 1 || expired[0].Path != "tmp/big.iso" {
		t.Errorf("Expire() = %+v", expired)
	}
	if p.Len() != 0 {
		t.Error("expired op should be removed")
	}

	p.Add("docs", "x", now)
	if !p.Resolve("docs", "x") || p.Resolve("docs", "x") {
		t.Error("Resolve should succeed once")
	}
}

func TestState_Bookkeeping(t *testing.T) {
	s := New(time.Second)
	now := time.Now()
	s.TouchUserAction(now)
	s.RecordLoad(42*time.Millisecond, true, now)
	if s.LastUserAction != now || s.LastLatency != 42*time.Millisecond || !s.LastCacheHit {
		t.Errorf("unexpected state %+v", s)
	}
}
