package store

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/syncbrowse/syncbrowse/internal/logging"
	"github.com/syncbrowse/syncbrowse/internal/sequencer"
)

// BatchTarget is the store a Batcher flushes into.
type BatchTarget interface {
	Store
	PutMany(ctx context.Context, writes []Write) error
}

// Batcher queues puts in memory and flushes them in one transaction when the
// sequencer's flush policy says so (queue length or age of the oldest write).
//
// Reads see queued writes before they are flushed, and invalidations remove
// matching queued writes as well as persisted ones, so a Batcher can stand in
// for the Store it wraps.
type Batcher struct {
	mu     sync.Mutex
	target BatchTarget
	logger *logging.Logger

	values map[string][]byte
	order  []string
	oldest time.Time

	now func() time.Time
}

var _ Store = (*Batcher)(nil)

// NewBatcher wraps target. logger may be nil.
func NewBatcher(target BatchTarget, logger *logging.Logger) *Batcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Batcher{
		target: target,
		logger: logger,
		values: make(map[string][]byte),
		now:    time.Now,
	}
}

// Get serves a queued write if one exists, else reads through to the target.
func (b *Batcher) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	if v, ok := b.values[key]; ok {
		b.mu.Unlock()
		return v, true, nil
	}
	b.mu.Unlock()
	return b.target.Get(ctx, key)
}

// Put queues a write. A later put for the same key replaces the queued value.
func (b *Batcher) Put(ctx context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, queued := b.values[key]; !queued {
		if len(b.order) == 0 {
			b.oldest = b.now()
		}
		b.order = append(b.order, key)
	}
	b.values[key] = value
	return nil
}

// Invalidate drops a queued write for key and removes the persisted value.
func (b *Batcher) Invalidate(ctx context.Context, key string) error {
	b.mu.Lock()
	if _, ok := b.values[key]; ok {
		delete(b.values, key)
		b.compactLocked()
	}
	b.mu.Unlock()
	return b.target.Invalidate(ctx, key)
}

// InvalidatePrefix drops queued writes under prefix and removes persisted ones.
func (b *Batcher) InvalidatePrefix(ctx context.Context, prefix string) error {
	b.mu.Lock()
	dropped := 0
	for key := range b.values {
		if strings.HasPrefix(key, prefix) {
			delete(b.values, key)
			dropped++
		}
	}
	if dropped > 0 {
		b.compactLocked()
	}
	b.mu.Unlock()
	return b.target.InvalidatePrefix(ctx, prefix)
}

// compactLocked removes order entries whose value was dropped.
func (b *Batcher) compactLocked() {
	kept := b.order[:0]
	for _, key := range b.order {
		if _, ok := b.values[key]; ok {
			kept = append(kept, key)
		}
	}
	b.order = kept
	if len(b.order) == 0 {
		b.oldest = time.Time{}
	}
}

// Pending returns the number of queued writes.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// Age returns how long the oldest queued write has waited.
func (b *Batcher) Age(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.order) == 0 {
		return 0
	}
	return now.Sub(b.oldest)
}

// MaybeFlush flushes if the policy calls for it. Returns whether a flush ran.
func (b *Batcher) MaybeFlush(ctx context.Context, now time.Time) (bool, error) {
	if !sequencer.ShouldFlush(b.Pending(), b.Age(now)) {
		return false, nil
	}
	return true, b.Flush(ctx)
}

// Flush writes every queued value in one transaction. On failure the queue
// is kept intact so the next flush retries the same writes.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	if len(b.order) == 0 {
		b.mu.Unlock()
		return nil
	}
	writes := make([]Write, 0, len(b.order))
	for _, key := range b.order {
		writes = append(writes, Write{Key: key, Value: b.values[key]})
	}
	b.mu.Unlock()

	start := time.Now()
	if err := b.target.PutMany(ctx, writes); err != nil {
		b.logger.Warn().Err(err).Int("writes", len(writes)).Msg("cache flush failed, keeping queue")
		return err
	}

	b.mu.Lock()
	// Only drop entries that still hold the flushed value; a put or
	// invalidate that raced the flush stays queued.
	for _, w := range writes {
		if v, ok := b.values[w.Key]; ok && bytes.Equal(v, w.Value) {
			delete(b.values, w.Key)
		}
	}
	b.compactLocked()
	if len(b.order) > 0 {
		b.oldest = b.now()
	}
	b.mu.Unlock()

	b.logger.Debug().Int("writes", len(writes)).Dur("took", time.Since(start)).Msg("cache flushed")
	return nil
}

// Close flushes remaining writes.
func (b *Batcher) Close(ctx context.Context) error {
	return b.Flush(ctx)
}
