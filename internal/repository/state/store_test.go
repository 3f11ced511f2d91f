package state

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/relay-switch/internal/domain/relay"
	"github.com/oshokin/relay-switch/internal/stream/streamtest"
)

// TestStoreRepository_NotFound verifies Load returns ErrNotFound before the first Save.
func TestStoreRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewStoreRepository(streamtest.NewMemoryStore(), "rm8", relay.SchemeFixed)
	s, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, s)
}

// TestStoreRepository_SaveLoad_Roundtrip ensures order and values survive a roundtrip.
func TestStoreRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	store := streamtest.NewMemoryStore()
	repo := NewStoreRepository(store, "rm8", relay.SchemeFixed)
	require.Equal(t, "rm8_state", repo.Key())

	want := relay.NewStates(
		relay.Entry{Address: relay.MustFixed(3), State: relay.On},
		relay.Entry{Address: relay.MustFixed(1), State: relay.Off},
	)

	require.NoError(t, repo.Save(context.Background(), want))

	raw, ok := store.Value("rm8_state")
	require.True(t, ok)
	require.JSONEq(t, `{"states":[["Relay3","On"],["Relay1","Off"]]}`, string(raw))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.True(t, want.Equal(got))
	require.Equal(t, want.Entries(), got.Entries())
}

// TestStoreRepository_TriState checks Tri-State addresses are parsed back with the configured scheme.
func TestStoreRepository_TriState(t *testing.T) {
	t.Parallel()

	store := streamtest.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "rf_state", []byte(`{"states":[["10000-B","On"]]}`)))

	repo := NewStoreRepository(store, "rf", relay.SchemeTriState)
	got, err := repo.Load(context.Background())
	require.NoError(t, err)

	state, ok := got.Get(relay.TriState(relay.SystemCode{true}, relay.ChannelB))
	require.True(t, ok)
	require.Equal(t, relay.On, state)
}

// TestStoreRepository_Invalid rejects snapshots that do not decode.
func TestStoreRepository_Invalid(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`not json`, `{"states":[["Relay9","On"]]}`, `{"states":[["Relay1","on"]]}`} {
		store := streamtest.NewMemoryStore()
		require.NoError(t, store.Set(context.Background(), "rm8_state", []byte(raw)))

		_, err := NewStoreRepository(store, "rm8", relay.SchemeFixed).Load(context.Background())
		require.ErrorIs(t, err, ErrInvalidSnapshot, raw)
	}
}

// TestStoreRepository_WriteError propagates store failures from Save.
func TestStoreRepository_WriteError(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	store := streamtest.NewMemoryStore()
	store.SetErr["rm8_state"] = errBoom

	err := NewStoreRepository(store, "rm8", relay.SchemeFixed).Save(context.Background(), relay.NewStates())
	require.ErrorIs(t, err, errBoom)
}
