package integration

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/oshokin/relay-switch/internal/api/grpc/health"
	"github.com/oshokin/relay-switch/internal/domain/relay"
	"github.com/oshokin/relay-switch/internal/repository/badger"
	"github.com/oshokin/relay-switch/internal/service/common"
	"github.com/oshokin/relay-switch/internal/service/controller"
	"github.com/oshokin/relay-switch/internal/stream"
)

// TestBadger_ConsumesAndResumes drives the relays from an on-disk store,
// reports health over gRPC and restores the state after a restart.
func TestBadger_ConsumesAndResumes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store")
	cfg := testConfig(t)

	store, err := badger.Open(ctx, path)
	require.NoError(t, err)

	healthServer := health.NewServer()
	client := healthClient(t, healthServer)

	hw := newBoard(t)

	ctrl, err := controller.New(ctx, cfg, store, hw.tx, controller.WithHealth(healthServer))
	require.NoError(t, err)

	stop := runController(t, ctrl)

	appendCommand(t, store, cfg.Name, "1", "On")
	appendCommand(t, store, cfg.Name, "4", "On")
	appendCommand(t, store, cfg.Name, "4", "Off")
	appendCommand(t, store, cfg.Name, "6", "On")
	_, err = store.Append(ctx, cfg.Name, map[string]string{"relay": "nine", "state": "On"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return equalInts(hw.energized(), []int{1, 6})
	}, waitFor, tick)

	require.Eventually(t, func() bool {
		resp, err := client.Check(ctx)
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, waitFor, tick)

	require.NoError(t, stop())
	require.NoError(t, store.Close())

	// Restart on the same store: the snapshot is re-sent to fresh hardware.
	store, err = badger.Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	restarted := newBoard(t)

	ctrl, err = controller.New(ctx, cfg, store, restarted.tx)
	require.NoError(t, err)

	states := ctrl.States()
	state, ok := states.Get(relay.MustFixed(4))
	require.True(t, ok)
	require.Equal(t, relay.Off, state)

	runController(t, ctrl)

	require.Eventually(t, func() bool {
		return equalInts(restarted.energized(), []int{1, 6})
	}, waitFor, tick)

	_, writes := restarted.pins[3].level()
	require.Equal(t, 1, writes)
}

// TestBadger_FailSafeOnStoreLoss switches everything off when the store goes away.
func TestBadger_FailSafeOnStoreLoss(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := testConfig(t)

	backend, err := badger.Open(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	store := &breakableStore{Store: backend}
	hw := newBoard(t)

	ctrl, err := controller.New(ctx, cfg, store, hw.tx)
	require.NoError(t, err)

	stop := runController(t, ctrl)

	appendCommand(t, store, cfg.Name, "2", "On")

	require.Eventually(t, func() bool {
		return equalInts(hw.energized(), []int{2})
	}, waitFor, tick)

	store.breakDown()

	require.Eventually(t, func() bool {
		return len(hw.energized()) == 0
	}, waitFor, tick)
	require.ErrorIs(t, stop(), errStoreDown)
	require.Empty(t, hw.energized())

	for i, p := range hw.pins {
		_, writes := p.level()
		require.Positive(t, writes, "relay %d", i+1)
	}
}

var errStoreDown = errors.New("store down")

// breakableStore fails every read once broken.
type breakableStore struct {
	*badger.Store

	broken atomic.Bool
}

func (s *breakableStore) breakDown() {
	s.broken.Store(true)
}

func (s *breakableStore) Read(
	ctx context.Context,
	name string,
	from stream.EntryID,
	block time.Duration,
) ([]stream.Entry, error) {
	if s.broken.Load() {
		return nil, errStoreDown
	}

	return s.Store.Read(ctx, name, from, block)
}

func healthClient(t *testing.T, server *health.Server) *common.Client {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	grpcServer := grpc.NewServer()
	server.Register(grpcServer)

	go func() {
		_ = grpcServer.Serve(listener)
	}()

	t.Cleanup(grpcServer.Stop)

	client, err := common.Dial(context.Background(), "passthrough:///bufnet",
		common.WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		})),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
