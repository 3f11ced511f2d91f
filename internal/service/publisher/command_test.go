package publisher

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	httpapi "github.com/oshokin/relay-switch/internal/api/http"
	"github.com/oshokin/relay-switch/internal/config"
	"github.com/oshokin/relay-switch/internal/domain/relay"
	"github.com/oshokin/relay-switch/internal/repository/badger"
	"github.com/oshokin/relay-switch/internal/stream"
	"github.com/oshokin/relay-switch/internal/stream/streamtest"
)

func TestBuildCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		scheme  relay.Scheme
		address string
		state   string
		want    relay.Command
		wantErr error
	}{
		{
			name:    "fixed number",
			scheme:  relay.SchemeFixed,
			address: "3",
			state:   "on",
			want:    relay.Command{Address: relay.MustFixed(3), State: relay.On},
		},
		{
			name:    "fixed name",
			scheme:  relay.SchemeFixed,
			address: "Relay8",
			state:   "Off",
			want:    relay.Command{Address: relay.MustFixed(8), State: relay.Off},
		},
		{
			name:    "tri-state",
			scheme:  relay.SchemeTriState,
			address: "10000-B",
			state:   "ON",
			want: relay.Command{
				Address: relay.TriState(relay.SystemCode{true, false, false, false, false}, relay.ChannelB),
				State:   relay.On,
			},
		},
		{
			name:    "relay out of range",
			scheme:  relay.SchemeFixed,
			address: "9",
			state:   "On",
			wantErr: relay.ErrInvalidRelay,
		},
		{
			name:    "unknown state",
			scheme:  relay.SchemeFixed,
			address: "1",
			state:   "toggle",
			wantErr: relay.ErrUnknownState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := BuildCommand(tt.scheme, tt.address, tt.state)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

// flakyAppender fails with a store error a fixed number of times.
type flakyAppender struct {
	mu       sync.Mutex
	failures int
	calls    int
	err      error
}

func (f *flakyAppender) Append(context.Context, string, map[string]string) (stream.EntryID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	if f.err != nil {
		return stream.EntryID{}, f.err
	}

	if f.calls <= f.failures {
		return stream.EntryID{}, stream.ErrStore
	}

	return stream.EntryID{Time: 7}, nil
}

func TestPublish_RetriesStoreErrors(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		appender := &flakyAppender{failures: 2}

		id, err := Publish(context.Background(), appender, "rm8", map[string]string{"relay": "1", "state": "On"})
		require.NoError(t, err)
		require.Equal(t, stream.EntryID{Time: 7}, id)
		require.Equal(t, 3, appender.calls)
	})
}

func TestPublish_GivesUpAtDeadline(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 3500*time.Millisecond)
		defer cancel()

		appender := &flakyAppender{failures: 100}

		_, err := Publish(ctx, appender, "rm8", map[string]string{"relay": "1", "state": "On"})
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Equal(t, 4, appender.calls)
	})
}

func TestPublish_OtherErrorsAreFinal(t *testing.T) {
	t.Parallel()

	errRejected := errors.New("rejected")
	appender := &flakyAppender{err: errRejected}

	_, err := Publish(context.Background(), appender, "rm8", nil)
	require.ErrorIs(t, err, errRejected)
	require.Equal(t, 1, appender.calls)
}

func TestHTTPAppender(t *testing.T) {
	t.Parallel()

	store := streamtest.NewMemoryStore()
	server := httptest.NewServer(httpapi.NewHandler(httpapi.Options{
		Stream:   "rm8",
		Appender: store,
		Validate: func(fields map[string]string) error {
			_, err := relay.ParseCommand(relay.SchemeFixed, fields)
			return err
		},
	}))
	t.Cleanup(server.Close)

	appender := NewHTTPAppender(server.URL+"/", time.Second)

	id, err := appender.Append(context.Background(), "ignored", map[string]string{"relay": "2", "state": "Off"})
	require.NoError(t, err)
	require.Equal(t, stream.EntryID{Time: 1}, id)

	entries, err := store.Read(context.Background(), "rm8", stream.Beginning, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, map[string]string{"relay": "2", "state": "Off"}, entries[0].Fields)

	_, err = appender.Append(context.Background(), "ignored", map[string]string{"relay": "12", "state": "Off"})
	require.ErrorIs(t, err, ErrRejected)
}

func TestHTTPAppender_Unreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(nil)
	url := server.URL
	server.Close()

	_, err := NewHTTPAppender(url, time.Second).Append(context.Background(), "rm8", map[string]string{"relay": "1"})
	require.ErrorIs(t, err, stream.ErrStore)
}

func TestRun_EmbeddedStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "relay-switch.yaml")
	storePath := filepath.Join(dir, "store")

	cfg := config.Default()
	cfg.Name = "garden"
	cfg.Store.Driver = config.DriverBadger
	cfg.Store.Path = storePath
	require.NoError(t, config.Save(configPath, cfg))

	require.NoError(t, Run(context.Background(), &Options{
		ConfigPath: configPath,
		Address:    "5",
		State:      "on",
	}))

	store, err := badger.Open(context.Background(), storePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	entries, err := store.Read(context.Background(), "garden", stream.Beginning, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "5", entries[0].Fields[relay.FieldRelay])
	require.Equal(t, "On", entries[0].Fields[relay.FieldState])
}

func TestRun_InvalidCommand(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
		Address:    "0",
		State:      "On",
	})
	require.ErrorIs(t, err, relay.ErrInvalidRelay)
}
