package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/relay-switch/internal/config"
	"github.com/oshokin/relay-switch/internal/service/controller"
	"github.com/oshokin/relay-switch/internal/stream"
	"github.com/oshokin/relay-switch/internal/transmitter/direct"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

// levelPin remembers the last level written to it.
type levelPin struct {
	mu     sync.Mutex
	high   bool
	writes int
}

func (p *levelPin) High() { p.set(true) }
func (p *levelPin) Low()  { p.set(false) }

func (p *levelPin) set(high bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.high = high
	p.writes++
}

func (p *levelPin) level() (bool, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.high, p.writes
}

// board is eight relay pins behind a direct transmitter.
type board struct {
	pins [8]*levelPin
	tx   *direct.Transmitter
}

func newBoard(t *testing.T) *board {
	t.Helper()

	b := new(board)
	pins := make([]direct.Pin, 0, len(b.pins))

	for i := range b.pins {
		b.pins[i] = new(levelPin)
		pins = append(pins, b.pins[i])
	}

	tx, err := direct.New(pins)
	require.NoError(t, err)

	b.tx = tx

	return b
}

// energized returns which relays (1-based) are driven High.
func (b *board) energized() []int {
	var result []int

	for i, p := range b.pins {
		if high, _ := p.level(); high {
			result = append(result, i+1)
		}
	}

	return result
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.BlockTimeout = 50 * time.Millisecond
	cfg.Governor.Disabled = true
	cfg.Transmitter.Kind = config.TransmitterDirect
	cfg.Transmitter.Pins = []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	require.NoError(t, config.Validate(cfg))

	return cfg
}

// runController runs ctrl until the test ends and returns a stop function
// yielding the result of Run.
func runController(t *testing.T, ctrl *controller.Controller) func() error {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- ctrl.Run(ctx)
	}()

	var (
		once   sync.Once
		result error
	)

	stop := func() error {
		once.Do(func() {
			cancel()
			result = <-done
		})

		return result
	}

	t.Cleanup(func() { _ = stop() })

	return stop
}

func appendCommand(t *testing.T, appender stream.Appender, name, relayNumber, state string) {
	t.Helper()

	_, err := appender.Append(context.Background(), name, map[string]string{"relay": relayNumber, "state": state})
	require.NoError(t, err)
}
