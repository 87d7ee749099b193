// Package store provides the durable key-value cache behind the directory
// mirror, and the batch writer that coalesces writes into it.
//
// The cache is an embedded SQLite database (ncruces/go-sqlite3, WAL mode)
// holding one table of opaque values keyed by string. Keys are namespaced by
// the caller; the store only understands exact keys and key prefixes.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/syncbrowse/syncbrowse/internal/constants"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Store is the key-value contract the mirror is written against.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// Invalidate removes key. Removing an absent key is not an error.
	Invalidate(ctx context.Context, key string) error
	// InvalidatePrefix removes every key starting with prefix.
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// Write is one queued or batched put.
type Write struct {
	Key   string
	Value []byte
}

// KV is the SQLite-backed Store.
type KV struct {
	conn *sql.DB
	path string
}

var _ Store = (*KV)(nil)

// Open creates or opens the cache database at path.
//
// The database runs in WAL mode with a single connection: the control loop
// is the only writer and reads are cheap, so one connection avoids lock
// contention between pooled connections entirely.
//
// The caller MUST call Close() when done.
func Open(path string) (*KV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return open(fmt.Sprintf("file:%s", path), path)
}

// OpenMemory opens a throwaway in-memory cache (used by --ephemeral and tests).
func OpenMemory() (*KV, error) {
	return open("file::memory:", ":memory:")
}

func open(dsn, path string) (*KV, error) {
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cache: %w", err)
	}

	kv := &KV{conn: conn, path: path}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", constants.CacheBusyTimeout/time.Millisecond),
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := kv.initSchema(context.Background()); err != nil {
		_ = kv.Close()
		return nil, err
	}

	return kv, nil
}

func (kv *KV) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	) WITHOUT ROWID;
	`
	if _, err := kv.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create cache schema: %w", err)
	}
	return nil
}

// Path returns the database path (":memory:" for in-memory stores).
func (kv *KV) Path() string {
	return kv.path
}

// Get returns the value stored under key.
func (kv *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if kv.conn == nil {
		return nil, false, ErrClosed
	}
	var value []byte
	err := kv.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %q: %w", key, err)
	}
	return value, true, nil
}

// Put stores a single value.
func (kv *KV) Put(ctx context.Context, key string, value []byte) error {
	return kv.PutMany(ctx, []Write{{Key: key, Value: value}})
}

// PutMany stores all writes in one transaction: either every write lands or none does.
func (kv *KV) PutMany(ctx context.Context, writes []Write) error {
	if kv.conn == nil {
		return ErrClosed
	}
	if len(writes) == 0 {
		return nil
	}

	tx, err := kv.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("cache prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, w := range writes {
		value := w.Value
		if value == nil {
			value = []byte{}
		}
		if _, err := stmt.ExecContext(ctx, w.Key, value, now); err != nil {
			return fmt.Errorf("cache put %q: %w", w.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache commit: %w", err)
	}
	return nil
}

// Invalidate removes a single key.
func (kv *KV) Invalidate(ctx context.Context, key string) error {
	if kv.conn == nil {
		return ErrClosed
	}
	if _, err := kv.conn.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("cache invalidate %q: %w", key, err)
	}
	return nil
}

// InvalidatePrefix removes every key that starts with prefix. The comparison
// is a plain byte prefix: callers that mean "this directory and below" must
// pass a prefix ending in the path separator.
func (kv *KV) InvalidatePrefix(ctx context.Context, prefix string) error {
	if kv.conn == nil {
		return ErrClosed
	}
	if prefix == "" {
		_, err := kv.conn.ExecContext(ctx, `DELETE FROM kv`)
		if err != nil {
			return fmt.Errorf("cache clear: %w", err)
		}
		return nil
	}
	_, err := kv.conn.ExecContext(ctx,
		`DELETE FROM kv WHERE substr(CAST(key AS BLOB), 1, ?) = CAST(? AS BLOB)`, len(prefix), prefix)
	if err != nil {
		return fmt.Errorf("cache invalidate prefix %q: %w", prefix, err)
	}
	return nil
}

// Count returns the number of keys starting with prefix ("" counts everything).
func (kv *KV) Count(ctx context.Context, prefix string) (int, error) {
	if kv.conn == nil {
		return 0, ErrClosed
	}
	var n int
	var err error
	if prefix == "" {
		err = kv.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv`).Scan(&n)
	} else {
		err = kv.conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM kv WHERE substr(CAST(key AS BLOB), 1, ?) = CAST(? AS BLOB)`, len(prefix), prefix).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("cache count: %w", err)
	}
	return n, nil
}

// Close checkpoints the WAL and closes the database.
func (kv *KV) Close() error {
	if kv.conn == nil {
		return nil
	}

	// Best effort: an in-memory database has no WAL to checkpoint.
	_, _ = kv.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")

	if err := kv.conn.Close(); err != nil {
		return fmt.Errorf("failed to close cache: %w", err)
	}
	kv.conn = nil
	return nil
}
