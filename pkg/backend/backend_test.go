package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/basalt-run/almanac/pkg/errs"
	"github.com/basalt-run/almanac/pkg/mst"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestNodeWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	n := &mst.Node{Items: []mst.Item{{Key: []byte("k"), Value: []byte("v")}}}
	hash, err := b.WriteNode(ctx, n)
	require.NoError(t, err)

	got, err := b.ReadNode(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, n.Items[0].Key, got.Items[0].Key)
	require.Equal(t, n.Items[0].Value, got.Items[0].Value)
}

func TestNodeWriteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	n := &mst.Node{Items: []mst.Item{{Key: []byte("k"), Value: []byte("v")}}}
	h1, err := b.WriteNode(ctx, n)
	require.NoError(t, err)
	h2, err := b.WriteNode(ctx, n)
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	hashes, err := b.ListNodes(ctx)
	require.NoError(t, err)
	require.Len(t, hashes, 1)
}

func TestReadMissingNodeIsErrNodeNotFound(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	_, err := b.ReadNode(ctx, mst.HashBytes([]byte("nothing written")))
	require.True(t, errors.Is(err, errs.ErrNodeNotFound))
}

func TestDeleteNodesCountsOnlyRemoved(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	n := &mst.Node{Items: []mst.Item{{Key: []byte("k"), Value: []byte("v")}}}
	hash, err := b.WriteNode(ctx, n)
	require.NoError(t, err)

	missing := mst.HashBytes([]byte("never written"))
	count, err := b.DeleteNodes(ctx, []mst.Hash{hash, missing})
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestRefGetSetLastWriterWins(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	_, err := b.GetRef(ctx, "working")
	require.True(t, errors.Is(err, errs.ErrRefNotFound))

	h1 := mst.HashBytes([]byte("root one"))
	h2 := mst.HashBytes([]byte("root two"))
	require.NoError(t, b.SetRef(ctx, "working", h1))
	require.NoError(t, b.SetRef(ctx, "working", h2))

	got, err := b.GetRef(ctx, "working")
	require.NoError(t, err)
	require.Equal(t, h2, got)
}

func TestRefListAndDelete(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	h := mst.HashBytes([]byte("root"))
	require.NoError(t, b.SetRef(ctx, "working", h))
	require.NoError(t, b.SetRef(ctx, "committed", h))

	names, err := b.ListRefs(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"working", "committed"}, names)

	count, err := b.DeleteRefs(ctx, []string{"working", "nonexistent"})
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestSecretGetSetRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	_, err := b.GetSecret(ctx, "sync")
	require.True(t, errors.Is(err, errs.ErrSecretNotFound))

	require.NoError(t, b.SetSecret(ctx, "sync", []byte("thirty-two-byte-secret-material!")))
	data, err := b.GetSecret(ctx, "sync")
	require.NoError(t, err)
	require.Equal(t, []byte("thirty-two-byte-secret-material!"), data)
}

func TestNodeStatsHistogram(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	_, err := b.WriteNode(ctx, &mst.Node{Items: []mst.Item{{Key: []byte("a"), Value: []byte("b")}}})
	require.NoError(t, err)

	stats, err := b.NodeStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Count)
	require.Equal(t, 1, stats.Buckets["<64"])
}

func TestVacuumDoesNotAffectLogicalState(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	n := &mst.Node{Items: []mst.Item{{Key: []byte("k"), Value: []byte("v")}}}
	hash, err := b.WriteNode(ctx, n)
	require.NoError(t, err)

	require.NoError(t, b.Vacuum(ctx))

	got, err := b.ReadNode(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, n.Items[0].Key, got.Items[0].Key)
}
