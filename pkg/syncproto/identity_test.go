package syncproto

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/basalt-run/almanac/pkg/backend"
)

func newTestBackend(t *testing.T, name string) *backend.Backend {
	t.Helper()
	be, err := backend.Open("file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { be.Close() })
	return be
}

func TestIdentityIsDeterministicAcrossCalls(t *testing.T) {
	ctx := context.Background()
	be := newTestBackend(t, "identity-determinism")

	priv1, err := Identity(ctx, be)
	require.NoError(t, err)
	priv2, err := Identity(ctx, be)
	require.NoError(t, err)

	bytes1, err := priv1.Raw()
	require.NoError(t, err)
	bytes2, err := priv2.Raw()
	require.NoError(t, err)
	require.Equal(t, bytes1, bytes2)
}

func TestIdentityDiffersAcrossBackends(t *testing.T) {
	ctx := context.Background()
	be1 := newTestBackend(t, "identity-backend-1")
	be2 := newTestBackend(t, "identity-backend-2")

	priv1, err := Identity(ctx, be1)
	require.NoError(t, err)
	priv2, err := Identity(ctx, be2)
	require.NoError(t, err)

	bytes1, err := priv1.Raw()
	require.NoError(t, err)
	bytes2, err := priv2.Raw()
	require.NoError(t, err)
	require.NotEqual(t, bytes1, bytes2)
}
