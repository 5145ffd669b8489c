// Package store wraps pkg/mst with two named refs — working and
// committed — and a commit/abandon workflow, the versioned layer
// pkg/record and pkg/syncproto build on. Grounded directly on
// original_source's repo/mod.rs Repo/RepoRef pair.
package store

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/basalt-run/almanac/pkg/backend"
	"github.com/basalt-run/almanac/pkg/errs"
	"github.com/basalt-run/almanac/pkg/events"
	"github.com/basalt-run/almanac/pkg/metrics"
	"github.com/basalt-run/almanac/pkg/mst"
)

const (
	workingRef   = "working"
	committedRef = "committed"
)

// Backend is the node/ref persistence contract Store needs: mst.Store
// for node blobs plus ref get/set. *backend.Backend satisfies it.
type Backend interface {
	mst.Store
	GetRef(ctx context.Context, name string) (mst.Hash, error)
	SetRef(ctx context.Context, name string, hash mst.Hash) error
	ListRefs(ctx context.Context) ([]string, error)
	ListNodes(ctx context.Context) ([]mst.Hash, error)
	DeleteNodes(ctx context.Context, hashes []mst.Hash) (int, error)
	NodeStats(ctx context.Context) (backend.NodeSizeHistogram, error)
	Vacuum(ctx context.Context) error
}

// Store is the versioned layer over an MST: two refs, a commit/abandon
// workflow, diff, GC, and stats. Store is byte-level only — it knows
// nothing about record shapes or the secondary index; pkg/record layers
// that on top, diffing around Abandon/pull itself to replay typed
// changes into the index (see SPEC_FULL.md §4.5.1).
type Store struct {
	backend Backend
	broker  *events.Broker
}

// Option configures a Store at Open time.
type Option func(*Store)

// WithBroker attaches an event broker events are published to after each
// successful operation. Publication never blocks a write: see
// pkg/events's doc comment.
func WithBroker(b *events.Broker) Option {
	return func(s *Store) { s.broker = b }
}

// Open wraps be in a Store. Callers must call Init on a fresh backend
// before using working/committed.
func Open(be Backend, opts ...Option) *Store {
	s := &Store{backend: be}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init creates the empty root and points both working and committed at
// it. Safe to call only once per backend; calling it again resets both
// refs to a fresh empty tree, discarding any existing data.
func (s *Store) Init(ctx context.Context) error {
	hash, err := s.backend.WriteNode(ctx, mst.Empty())
	if err != nil {
		return err
	}
	if err := s.backend.SetRef(ctx, workingRef, hash); err != nil {
		return err
	}
	return s.backend.SetRef(ctx, committedRef, hash)
}

// Working returns the current working root hash.
func (s *Store) Working(ctx context.Context) (mst.Hash, error) {
	return s.backend.GetRef(ctx, workingRef)
}

// Committed returns the current committed root hash.
func (s *Store) Committed(ctx context.Context) (mst.Hash, error) {
	return s.backend.GetRef(ctx, committedRef)
}

// Get reads key out of the working tree.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	root, err := s.Working(ctx)
	if err != nil {
		return nil, false, err
	}
	return mst.Lookup(ctx, s.backend, root, key)
}

// IterPrefix scans the working tree for keys with the given prefix.
func (s *Store) IterPrefix(ctx context.Context, prefix []byte) iter.Seq2[mst.KV, error] {
	root, err := s.Working(ctx)
	if err != nil {
		return func(yield func(mst.KV, error) bool) { yield(mst.KV{}, err) }
	}
	return mst.IterPrefix(ctx, s.backend, root, prefix)
}

// Write upserts (key, value) into the working tree and advances the
// working ref.
func (s *Store) Write(ctx context.Context, key, value []byte) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.WriteDuration)

	root, err := s.Working(ctx)
	if err != nil {
		return err
	}
	newRoot, err := mst.Upsert(ctx, s.backend, root, key, value)
	if err != nil {
		return err
	}
	if err := s.backend.SetRef(ctx, workingRef, newRoot); err != nil {
		return err
	}

	metrics.WritesTotal.Inc()
	s.publish(events.EventRecordWritten, string(key))
	return nil
}

// Remove deletes key from the working tree and advances the working ref.
// Removing an absent key is a no-op.
func (s *Store) Remove(ctx context.Context, key []byte) error {
	root, err := s.Working(ctx)
	if err != nil {
		return err
	}
	newRoot, err := mst.Remove(ctx, s.backend, root, key)
	if err != nil {
		return err
	}
	if err := s.backend.SetRef(ctx, workingRef, newRoot); err != nil {
		return err
	}

	metrics.RemovesTotal.Inc()
	s.publish(events.EventRecordRemoved, string(key))
	return nil
}

// Commit advances committed to working's current root. The secondary
// index needs no update here: it already tracks the working set live
// through each Write/Remove, and a commit changes no key's value, only
// which ref label points at it.
func (s *Store) Commit(ctx context.Context) error {
	working, err := s.Working(ctx)
	if err != nil {
		return err
	}
	if err := s.backend.SetRef(ctx, committedRef, working); err != nil {
		return err
	}

	metrics.CommitsTotal.Inc()
	s.publish(events.EventCommitted, working.String())
	return nil
}

// Abandon resets working back to committed. It returns the working root
// as it stood before the reset, so a caller (pkg/record) can diff it
// against the restored root and replay the inverse into the secondary
// index, which Store itself does not know how to do.
func (s *Store) Abandon(ctx context.Context) (oldWorking mst.Hash, err error) {
	committed, err := s.Committed(ctx)
	if err != nil {
		return mst.Hash{}, err
	}
	oldWorking, err = s.Working(ctx)
	if err != nil {
		return mst.Hash{}, err
	}
	if err := s.backend.SetRef(ctx, workingRef, committed); err != nil {
		return mst.Hash{}, err
	}

	metrics.AbandonsTotal.Inc()
	s.publish(events.EventAbandoned, committed.String())
	return oldWorking, nil
}

// Diff returns the changes between two arbitrary root hashes, e.g. from
// Committed() to Working() to preview what a commit would replay.
func (s *Store) Diff(ctx context.Context, from, to mst.Hash) iter.Seq2[mst.DiffEntry, error] {
	return mst.Diff(ctx, s.backend, from, to)
}

// HasNode reports whether hash is already present locally, used by the
// sync client to decide which nodes a pull still needs to fetch.
func (s *Store) HasNode(ctx context.Context, hash mst.Hash) (bool, error) {
	_, err := s.backend.ReadNode(ctx, hash)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, errs.ErrNodeNotFound) {
		return false, nil
	}
	return false, err
}

// ReadNodeBytes returns the exact compressed frame stored under hash, for
// the sync server to ship over the wire byte-for-byte.
func (s *Store) ReadNodeBytes(ctx context.Context, hash mst.Hash) ([]byte, error) {
	node, err := s.backend.ReadNode(ctx, hash)
	if err != nil {
		return nil, err
	}
	compressed, _ := mst.EncodeNode(node)
	return compressed, nil
}

// WriteNodeBytes decodes a compressed frame received from a remote peer
// and stores it, used by the sync client while fetching missing nodes
// during a pull.
func (s *Store) WriteNodeBytes(ctx context.Context, compressed []byte) (mst.Hash, error) {
	node, err := mst.DecodeNode(compressed)
	if err != nil {
		return mst.Hash{}, err
	}
	return s.backend.WriteNode(ctx, node)
}

// NodeChildren returns the child hashes of the node read from a raw
// compressed frame, used by the sync client's BFS fetch.
func NodeChildren(compressed []byte) ([]mst.Hash, error) {
	node, err := mst.DecodeNode(compressed)
	if err != nil {
		return nil, err
	}
	var children []mst.Hash
	if node.Left != nil {
		children = append(children, *node.Left)
	}
	for _, item := range node.Items {
		if item.Right != nil {
			children = append(children, *item.Right)
		}
	}
	return children, nil
}

// AdvanceWorkingTo sets the working ref directly to hash, bypassing the
// normal Upsert/Remove path. Used only by the sync client once a pull has
// fetched every node reachable from the remote's committed root.
func (s *Store) AdvanceWorkingTo(ctx context.Context, hash mst.Hash) error {
	return s.backend.SetRef(ctx, workingRef, hash)
}

// GC deletes every node blob not reachable from any current ref and
// vacuums the backend. Returns the number of node blobs deleted.
func (s *Store) GC(ctx context.Context) (int, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.GCDuration)

	refNames, err := s.backend.ListRefs(ctx)
	if err != nil {
		return 0, err
	}

	reachable := make(map[mst.Hash]struct{})
	for _, name := range refNames {
		hash, err := s.backend.GetRef(ctx, name)
		if err != nil {
			return 0, err
		}
		if err := s.markReachable(ctx, hash, reachable); err != nil {
			return 0, err
		}
	}

	all, err := s.backend.ListNodes(ctx)
	if err != nil {
		return 0, err
	}

	var toDelete []mst.Hash
	for _, h := range all {
		if _, ok := reachable[h]; !ok {
			toDelete = append(toDelete, h)
		}
	}

	deleted, err := s.backend.DeleteNodes(ctx, toDelete)
	if err != nil {
		return 0, err
	}
	if err := s.backend.Vacuum(ctx); err != nil {
		return 0, err
	}

	metrics.GCRunsTotal.Inc()
	metrics.GCNodesDeletedTotal.Add(float64(deleted))
	s.publish(events.EventGCCompleted, fmt.Sprintf("%d nodes deleted", deleted))
	return deleted, nil
}

func (s *Store) markReachable(ctx context.Context, hash mst.Hash, reachable map[mst.Hash]struct{}) error {
	if _, seen := reachable[hash]; seen {
		return nil
	}
	reachable[hash] = struct{}{}

	node, err := s.backend.ReadNode(ctx, hash)
	if err != nil {
		return err
	}
	if node.Left != nil {
		if err := s.markReachable(ctx, *node.Left, reachable); err != nil {
			return err
		}
	}
	for _, item := range node.Items {
		if item.Right != nil {
			if err := s.markReachable(ctx, *item.Right, reachable); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stats reports a snapshot of tree and backend statistics, used by the
// `stats` CLI command and polled by metrics.Collector.
type Stats struct {
	KeyCount        int
	TotalValueSize  int
	ValueSizeBucket map[string]int
	NodeCount       int
	NodeSizeBucket  map[string]int
	WorkingHash     mst.Hash
	CommittedHash   mst.Hash
}

func bucketForSize(size int) string {
	switch {
	case size < 64:
		return "<64"
	case size < 256:
		return "64-256"
	case size < 1024:
		return "256-1024"
	case size < 4096:
		return "1024-4096"
	default:
		return ">=4096"
	}
}

// Snapshot walks the working tree to count keys and value sizes, and
// reads node-level stats from the backend. Used by the `stats` CLI
// command, which wants the full breakdown rather than the condensed
// metrics.StoreStats shape.
func (s *Store) Snapshot(ctx context.Context) (Stats, error) {
	working, err := s.Working(ctx)
	if err != nil {
		return Stats{}, err
	}
	committed, err := s.Committed(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		ValueSizeBucket: make(map[string]int),
		WorkingHash:     working,
		CommittedHash:   committed,
	}
	for kv, err := range mst.IterPrefix(ctx, s.backend, working, nil) {
		if err != nil {
			return Stats{}, err
		}
		stats.KeyCount++
		stats.TotalValueSize += len(kv.Value)
		stats.ValueSizeBucket[bucketForSize(len(kv.Value))]++
	}

	nodeStats, err := s.backend.NodeStats(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.NodeCount = nodeStats.Count
	stats.NodeSizeBucket = nodeStats.Buckets

	return stats, nil
}

// Stats satisfies metrics.StatsSource, condensing Snapshot's full
// breakdown into the gauges Collector republishes.
func (s *Store) Stats(ctx context.Context) (metrics.StoreStats, error) {
	stats, err := s.Snapshot(ctx)
	if err != nil {
		return metrics.StoreStats{}, err
	}
	var nodeBytes int64
	for bucket, count := range stats.NodeSizeBucket {
		nodeBytes += int64(count) * bucketMidpoint(bucket)
	}
	return metrics.StoreStats{
		NodeCount:     stats.NodeCount,
		NodeBytes:     nodeBytes,
		KeyCount:      stats.KeyCount,
		WorkingHash:   stats.WorkingHash.String(),
		CommittedHash: stats.CommittedHash.String(),
	}, nil
}

func bucketMidpoint(bucket string) int64 {
	switch bucket {
	case "<64":
		return 32
	case "64-256":
		return 160
	case "256-1024":
		return 640
	case "1024-4096":
		return 2560
	case "4096-16384":
		return 10240
	default:
		return 16384
	}
}

func (s *Store) publish(typ events.EventType, message string) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(&events.Event{Type: typ, Message: message})
}
