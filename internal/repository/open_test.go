package repository

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/relay-switch/internal/config"
	"github.com/oshokin/relay-switch/internal/stream"
)

// TestOpen_Redis connects to a running server.
func TestOpen_Redis(t *testing.T) {
	t.Parallel()

	server := miniredis.RunT(t)

	backend, err := Open(context.Background(), config.Store{Driver: config.DriverRedis, Address: server.Addr()})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = backend.Close()
	})

	id, err := backend.Append(context.Background(), "rm8", map[string]string{"relay": "1", "state": "On"})
	require.NoError(t, err)
	require.False(t, id.Less(stream.EntryID{Time: 1}))
}

// TestOpen_RedisUnavailable fails fast with a store error.
func TestOpen_RedisUnavailable(t *testing.T) {
	t.Parallel()

	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	_, err := Open(context.Background(), config.Store{Driver: config.DriverRedis, Address: addr})
	require.ErrorIs(t, err, stream.ErrStore)
}

// TestOpen_Badger opens an in-memory database.
func TestOpen_Badger(t *testing.T) {
	t.Parallel()

	backend, err := Open(context.Background(), config.Store{Driver: config.DriverBadger})
	require.NoError(t, err)
	require.NoError(t, backend.Close())
}

// TestOpen_UnknownDriver rejects drivers Validate would reject.
func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), config.Store{Driver: "etcd"})
	require.ErrorIs(t, err, config.ErrUnknownDriver)
}
