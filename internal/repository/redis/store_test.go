package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/relay-switch/internal/stream"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	store := New(Options{Address: server.Addr()})

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store, server
}

// TestStore_GetSet covers missing keys and a write followed by a read.
func TestStore_GetSet(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	_, err := store.Get(ctx, "rm8_start")
	require.ErrorIs(t, err, stream.ErrNotFound)

	require.NoError(t, store.Set(ctx, "rm8_start", []byte("5-1")))

	value, err := store.Get(ctx, "rm8_start")
	require.NoError(t, err)
	require.Equal(t, "5-1", string(value))
}

// TestStore_ReadIsInclusive verifies Read returns the entry at from, not only later ones.
func TestStore_ReadIsInclusive(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	ctx := context.Background()

	first, err := store.Append(ctx, "rm8", map[string]string{"relay": "1", "state": "On"})
	require.NoError(t, err)

	second, err := store.Append(ctx, "rm8", map[string]string{"relay": "2", "state": "Off"})
	require.NoError(t, err)
	require.True(t, first.Less(second))

	entries, err := store.Read(ctx, "rm8", stream.Beginning, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, first, entries[0].ID)
	require.Equal(t, map[string]string{"relay": "1", "state": "On"}, entries[0].Fields)

	entries, err = store.Read(ctx, "rm8", second, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, second, entries[0].ID)

	entries, err = store.Read(ctx, "rm8", second.Next(), 0)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestStore_ReadMissingStream returns nothing for a stream that was never written.
func TestStore_ReadMissingStream(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)

	entries, err := store.Read(context.Background(), "nothing", stream.Beginning, 0)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestStore_ConnectionError wraps failures with stream.ErrStore.
func TestStore_ConnectionError(t *testing.T) {
	t.Parallel()

	store, server := newStore(t)
	server.Close()

	ctx := context.Background()

	_, err := store.Get(ctx, "key")
	require.ErrorIs(t, err, stream.ErrStore)

	err = store.Set(ctx, "key", []byte("v"))
	require.ErrorIs(t, err, stream.ErrStore)

	_, err = store.Read(ctx, "rm8", stream.Beginning, 0)
	require.ErrorIs(t, err, stream.ErrStore)

	require.ErrorIs(t, store.Ping(ctx), stream.ErrStore)
}

// TestExclusiveID checks the predecessor computation used for XREAD.
func TestExclusiveID(t *testing.T) {
	t.Parallel()

	require.Equal(t, "0-0", exclusiveID(stream.Beginning))
	require.Equal(t, "5-2", exclusiveID(stream.EntryID{Time: 5, Sequence: 3}))
	require.Equal(t, "4-18446744073709551615", exclusiveID(stream.EntryID{Time: 5}))
}
