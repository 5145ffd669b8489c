package syncproto

import (
	"context"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"github.com/basalt-run/almanac/pkg/backend"
	"github.com/basalt-run/almanac/pkg/store"
)

func newTestStoreAndBackend(t *testing.T, name string) (*store.Store, *backend.Backend) {
	t.Helper()
	be := newTestBackend(t, name)
	s := store.Open(be)
	require.NoError(t, s.Init(context.Background()))
	return s, be
}

// TestPullFetchesRemoteCommittedState spins up a server over a remote
// store with one committed key and pulls it into a fresh local store,
// verifying working advances to the remote's committed root and every
// node it reaches becomes locally readable.
func TestPullFetchesRemoteCommittedState(t *testing.T) {
	ctx := context.Background()

	remoteStore, remoteBackend := newTestStoreAndBackend(t, "sync-remote")
	require.NoError(t, remoteStore.Write(ctx, []byte("person/p1/name"), []byte("Ada Lovelace")))
	require.NoError(t, remoteStore.Commit(ctx))

	server, err := NewServer(ctx, remoteStore, remoteBackend, nil, "/ip4/127.0.0.1/tcp/0")
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })

	localStore, localBackend := newTestStoreAndBackend(t, "sync-local")
	client, err := NewClient(ctx, localStore, localBackend)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Connect(ctx, peer.AddrInfo{ID: server.PeerID(), Addrs: server.host.Addrs()}))

	oldWorking, newWorking, err := client.Pull(ctx, server.PeerID())
	require.NoError(t, err)

	remoteCommitted, err := remoteStore.Committed(ctx)
	require.NoError(t, err)
	require.Equal(t, remoteCommitted, newWorking)
	require.NotEqual(t, oldWorking, newWorking)

	localWorking, err := localStore.Working(ctx)
	require.NoError(t, err)
	require.Equal(t, remoteCommitted, localWorking)

	value, ok, err := localStore.Get(ctx, []byte("person/p1/name"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Ada Lovelace", string(value))
}

func TestPullRefusesWithUncommittedLocalChanges(t *testing.T) {
	ctx := context.Background()

	remoteStore, remoteBackend := newTestStoreAndBackend(t, "sync-remote-refuse")
	require.NoError(t, remoteStore.Write(ctx, []byte("person/p1/name"), []byte("Ada Lovelace")))
	require.NoError(t, remoteStore.Commit(ctx))

	server, err := NewServer(ctx, remoteStore, remoteBackend, nil, "/ip4/127.0.0.1/tcp/0")
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })

	localStore, localBackend := newTestStoreAndBackend(t, "sync-local-refuse")
	require.NoError(t, localStore.Write(ctx, []byte("office/o1/name"), []byte("Prime Minister")))

	client, err := NewClient(ctx, localStore, localBackend)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Connect(ctx, peer.AddrInfo{ID: server.PeerID(), Addrs: server.host.Addrs()}))

	_, _, err = client.Pull(ctx, server.PeerID())
	require.Error(t, err)
}
