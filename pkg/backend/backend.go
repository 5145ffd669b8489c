// Package backend provides the SQLite-backed blob store underneath
// pkg/mst and pkg/store: three flat namespaces (node, ref, secret), each
// with get/set/list/delete and a vacuum hook. See SPEC_FULL.md §4.1.
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"

	_ "modernc.org/sqlite"

	"github.com/basalt-run/almanac/pkg/errs"
)

const schema = `
CREATE TABLE IF NOT EXISTS node (
	hash TEXT PRIMARY KEY,
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS ref (
	name TEXT PRIMARY KEY,
	hash BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS secret (
	name TEXT PRIMARY KEY,
	data BLOB NOT NULL
);
`

// Backend is a single SQLite-backed store, opened either Local (a lone
// writer connection) or Pooled (a bounded pool for concurrent readers).
// Both share this type; only the pool configuration differs.
type Backend struct {
	db *sql.DB
}

// Option configures a Backend at Open time.
type Option func(*sql.DB)

// WithPoolSize bounds the number of open connections. Local callers
// should not set this (the default is a single writer connection);
// Pooled callers (the sync server) set it to allow concurrent readers.
func WithPoolSize(n int) Option {
	return func(db *sql.DB) {
		db.SetMaxOpenConns(n)
	}
}

// Local opens path with a single writer connection, matching the
// single-writer non-goal: almanac never needs more than one in-process
// writer against a given file.
func Local(path string) (*Backend, error) {
	return Open(path)
}

// Pooled opens path with a connection pool sized for concurrent readers,
// defaulting to twice GOMAXPROCS. Intended for the sync server, which
// serves many concurrent streams read-only against the committed ref.
func Pooled(path string, opts ...Option) (*Backend, error) {
	if len(opts) == 0 {
		opts = []Option{WithPoolSize(runtime.GOMAXPROCS(0) * 2)}
	}
	return Open(path, opts...)
}

// Open opens or creates the SQLite database at path and ensures its
// schema exists. With no options the connection pool is limited to one
// connection, matching Local's contract.
func Open(path string, opts ...Option) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", errs.ErrIO, path, err)
	}

	if len(opts) == 0 {
		db.SetMaxOpenConns(1)
	}
	for _, opt := range opts {
		opt(db)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create schema: %v", errs.ErrIO, err)
	}

	return &Backend{db: db}, nil
}

// Close closes the underlying database handle.
func (b *Backend) Close() error {
	return b.db.Close()
}

// NodeSizeHistogram buckets the byte length of every stored node blob.
// Bucket boundaries are power-of-two byte sizes: [0,64) [64,256)
// [256,1024) [1024,4096) [4096,16384) [16384,+inf).
type NodeSizeHistogram struct {
	Count   int
	Buckets map[string]int
}

var histogramBounds = []struct {
	label string
	upper int // exclusive upper bound; -1 means unbounded
}{
	{"<64", 64},
	{"64-256", 256},
	{"256-1024", 1024},
	{"1024-4096", 4096},
	{"4096-16384", 16384},
	{">=16384", -1},
}

func bucketFor(size int) string {
	for _, b := range histogramBounds {
		if b.upper == -1 || size < b.upper {
			return b.label
		}
	}
	return histogramBounds[len(histogramBounds)-1].label
}

// NodeStats returns the node count and a size histogram over the whole
// node namespace, used by the store's stats operation.
func (b *Backend) NodeStats(ctx context.Context) (NodeSizeHistogram, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT length(data) FROM node`)
	if err != nil {
		return NodeSizeHistogram{}, fmt.Errorf("%w: node stats: %v", errs.ErrIO, err)
	}
	defer rows.Close()

	hist := NodeSizeHistogram{Buckets: make(map[string]int)}
	for rows.Next() {
		var size int
		if err := rows.Scan(&size); err != nil {
			return NodeSizeHistogram{}, fmt.Errorf("%w: node stats scan: %v", errs.ErrIO, err)
		}
		hist.Count++
		hist.Buckets[bucketFor(size)]++
	}
	if err := rows.Err(); err != nil {
		return NodeSizeHistogram{}, fmt.Errorf("%w: node stats rows: %v", errs.ErrIO, err)
	}
	return hist, nil
}

// Vacuum hints SQLite to reclaim space freed by prior deletes. It never
// changes logical state.
func (b *Backend) Vacuum(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("%w: vacuum: %v", errs.ErrIO, err)
	}
	return nil
}
