package direct

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/relay-switch/internal/domain/relay"
)

type levelPin struct {
	high   bool
	writes int
}

func (p *levelPin) High() { p.high = true; p.writes++ }
func (p *levelPin) Low()  { p.high = false; p.writes++ }

func newPins() ([]Pin, []*levelPin) {
	levels := make([]*levelPin, relay.FixedRelayCount)
	pins := make([]Pin, relay.FixedRelayCount)

	for i := range levels {
		levels[i] = new(levelPin)
		pins[i] = levels[i]
	}

	return pins, levels
}

func TestNew_PinCount(t *testing.T) {
	t.Parallel()

	pins, _ := newPins()

	_, err := New(pins[:3])
	require.ErrorIs(t, err, ErrPinCount)

	tx, err := New(pins)
	require.NoError(t, err)
	require.NotNil(t, tx)
}

func TestTransmitter_Send(t *testing.T) {
	t.Parallel()

	pins, levels := newPins()

	tx, err := New(pins)
	require.NoError(t, err)

	tx.Send(relay.MustFixed(3), relay.On)
	require.True(t, levels[2].high)

	tx.Send(relay.MustFixed(3), relay.Off)
	require.False(t, levels[2].high)
	require.Equal(t, 2, levels[2].writes)

	tx.Send(relay.MustFixed(8), relay.On)
	require.True(t, levels[7].high)

	tx.Send(relay.TriState(relay.SystemCode{true}, relay.ChannelA), relay.On)

	for i, l := range levels {
		if i == 2 || i == 7 {
			continue
		}

		require.Zero(t, l.writes, "pin %d", i)
	}
}
