package mst

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func collectDiff(t *testing.T, ctx context.Context, store Store, old, new Hash) []DiffEntry {
	t.Helper()
	var out []DiffEntry
	for entry, err := range Diff(ctx, store, old, new) {
		require.NoError(t, err)
		out = append(out, entry)
	}
	return out
}

func TestDiffBasics(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	root := emptyRoot(t, store)

	var err error
	root, err = Upsert(ctx, store, root, []byte("person/p1/name"), []byte("Alice"))
	require.NoError(t, err)
	committed := root

	root, err = Upsert(ctx, store, root, []byte("person/p1/name"), []byte("Alice Two"))
	require.NoError(t, err)
	root, err = Upsert(ctx, store, root, []byte("person/p2/name"), []byte("Bob"))
	require.NoError(t, err)

	entries := collectDiff(t, ctx, store, committed, root)
	require.Len(t, entries, 2)

	require.Equal(t, DiffChanged, entries[0].Op)
	require.Equal(t, "person/p1/name", string(entries[0].Key))
	require.Equal(t, "Alice", string(entries[0].OldValue))
	require.Equal(t, "Alice Two", string(entries[0].NewValue))

	require.Equal(t, DiffAdded, entries[1].Op)
	require.Equal(t, "person/p2/name", string(entries[1].Key))
	require.Equal(t, "Bob", string(entries[1].NewValue))
}

func TestDiffEqualRootsEmitsNothing(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	root := emptyRoot(t, store)

	entries := collectDiff(t, ctx, store, root, root)
	require.Empty(t, entries)
}

func TestDiffRemoved(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	root := emptyRoot(t, store)

	root, err := Upsert(ctx, store, root, []byte("a"), []byte("1"))
	require.NoError(t, err)
	root, err = Upsert(ctx, store, root, []byte("b"), []byte("2"))
	require.NoError(t, err)
	before := root

	root, err = Remove(ctx, store, root, []byte("a"))
	require.NoError(t, err)

	entries := collectDiff(t, ctx, store, before, root)
	require.Len(t, entries, 1)
	require.Equal(t, DiffRemoved, entries[0].Op)
	require.Equal(t, "a", string(entries[0].Key))
}

func TestDiffNeverReadsEqualSubtrees(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	root := emptyRoot(t, store)

	for _, k := range []string{"a", "b", "c", "d", "e", "f"} {
		var err error
		root, err = Upsert(ctx, store, root, []byte(k), []byte(k))
		require.NoError(t, err)
	}
	before := root
	after, err := Upsert(ctx, store, root, []byte("z"), []byte("new"))
	require.NoError(t, err)

	tracking := &trackingStore{Store: store, reads: make(map[Hash]int)}
	var entries []DiffEntry
	for entry, derr := range Diff(ctx, tracking, before, after) {
		require.NoError(t, derr)
		entries = append(entries, entry)
	}
	require.Len(t, entries, 1)
	require.Equal(t, DiffAdded, entries[0].Op)

	inBefore := reachable(t, ctx, store, before)
	inAfter := reachable(t, ctx, store, after)
	for h, count := range tracking.reads {
		require.LessOrEqual(t, count, 1, "node %s read more than once", h)
		require.False(t, inBefore[h] && inAfter[h], "node %s is shared by both trees but was read", h)
	}
}

// reachable returns every node hash reachable from root, read through
// store directly so the walk is not counted by a trackingStore.
func reachable(t *testing.T, ctx context.Context, store Store, root Hash) map[Hash]bool {
	t.Helper()
	seen := make(map[Hash]bool)
	queue := []Hash{root}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if seen[h] {
			continue
		}
		seen[h] = true
		node, err := store.ReadNode(ctx, h)
		require.NoError(t, err)
		if node.Left != nil {
			queue = append(queue, *node.Left)
		}
		for _, item := range node.Items {
			if item.Right != nil {
				queue = append(queue, *item.Right)
			}
		}
	}
	return seen
}

type trackingStore struct {
	Store
	reads map[Hash]int
}

func (s *trackingStore) ReadNode(ctx context.Context, hash Hash) (*Node, error) {
	s.reads[hash]++
	return s.Store.ReadNode(ctx, hash)
}
