package mst

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIterPrefix(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	root := emptyRoot(t, store)

	entries := []string{
		"person/p1/name",
		"person/p1/photo",
		"office/o1/name",
		"person/p2/name",
	}
	for _, k := range entries {
		var err error
		root, err = Upsert(ctx, store, root, []byte(k), []byte(k))
		require.NoError(t, err)
	}

	var got []string
	for kv, err := range IterPrefix(ctx, store, root, []byte("person/p1/")) {
		require.NoError(t, err)
		got = append(got, string(kv.Key))
	}
	require.Equal(t, []string{"person/p1/name", "person/p1/photo"}, got)

	got = nil
	for kv, err := range IterPrefix(ctx, store, root, []byte("person/")) {
		require.NoError(t, err)
		got = append(got, string(kv.Key))
	}
	require.Equal(t, []string{"person/p1/name", "person/p1/photo", "person/p2/name"}, got)
}

func TestIterPrefixEmptyTree(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	root := emptyRoot(t, store)

	var count int
	for range IterPrefix(ctx, store, root, []byte("anything")) {
		count++
	}
	require.Zero(t, count)
}

func TestIterPrefixAllKeysOnEmptyPrefix(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	root := emptyRoot(t, store)

	keys := []string{"a", "m", "z"}
	for _, k := range keys {
		var err error
		root, err = Upsert(ctx, store, root, []byte(k), []byte(k))
		require.NoError(t, err)
	}

	var got []string
	for kv, err := range IterPrefix(ctx, store, root, nil) {
		require.NoError(t, err)
		got = append(got, string(kv.Key))
	}
	require.Equal(t, keys, got)
}

func TestIterPrefixEarlyStop(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	root := emptyRoot(t, store)

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		var err error
		root, err = Upsert(ctx, store, root, []byte(k), []byte(k))
		require.NoError(t, err)
	}

	var got []string
	for kv, err := range IterPrefix(ctx, store, root, nil) {
		require.NoError(t, err)
		got = append(got, string(kv.Key))
		if len(got) == 2 {
			break
		}
	}
	require.Len(t, got, 2)
}
