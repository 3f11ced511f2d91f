package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/relay-switch/internal/config"
	"github.com/oshokin/relay-switch/internal/domain/relay"
	"github.com/oshokin/relay-switch/internal/repository/redis"
	"github.com/oshokin/relay-switch/internal/service/controller"
	"github.com/oshokin/relay-switch/internal/stream"
	"github.com/oshokin/relay-switch/internal/transmitter/rf"
)

// edgePin records the pulse train as a string of levels.
type edgePin struct {
	mu    sync.Mutex
	edges []bool
}

func (p *edgePin) High() { p.record(true) }
func (p *edgePin) Low()  { p.record(false) }

func (p *edgePin) record(high bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.edges = append(p.edges, high)
}

func (p *edgePin) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.edges)
}

// TestRedis_TriStateOverRF consumes a Redis stream in the Tri-State scheme
// and emits one RF frame per changed relay.
func TestRedis_TriStateOverRF(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	ctx := context.Background()

	cfg := testConfig(t)
	cfg.Scheme = relay.SchemeTriState.String()
	cfg.Switches = []string{"10000-A", "10000-B"}
	cfg.Transmitter.Kind = config.TransmitterRF
	cfg.Transmitter.Pins = nil
	require.NoError(t, config.Validate(cfg))

	store := redis.New(redis.Options{Address: mr.Addr()})
	t.Cleanup(func() { _ = store.Close() })

	pin := new(edgePin)
	tx := rf.New(pin, rf.WithRepeats(1), rf.WithDelay(func(time.Duration) {}))

	ctrl, err := controller.New(ctx, cfg, store, tx)
	require.NoError(t, err)

	runController(t, ctrl)

	fields := map[string]string{"system_code": "10000", "switch": "B", "state": "On", "origin": "test@host"}
	_, err = store.Append(ctx, cfg.Name, fields)
	require.NoError(t, err)

	frameEdges := 2 * len(rf.Waveform(rf.Encode(relay.MustFixed(1), relay.On)))

	require.Eventually(t, func() bool {
		return pin.count() == frameEdges
	}, waitFor, tick)

	require.Eventually(t, func() bool {
		raw, err := mr.Get(stream.StateKey(cfg.Name))
		return err == nil && raw == `{"states":[["10000-B","On"]]}`
	}, waitFor, tick)

	require.Eventually(t, func() bool {
		raw, err := mr.Get(stream.CursorKey(cfg.Name))
		if err != nil {
			return false
		}

		cursor, err := stream.ParseEntryID(raw)

		return err == nil && cursor.Time > 0
	}, waitFor, tick)
}
