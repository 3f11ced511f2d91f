package governor

import (
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/relay-switch/internal/domain/relay"
)

func TestGovernor_Expired(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		r1, r2, r3 := relay.MustFixed(1), relay.MustFixed(2), relay.MustFixed(3)

		g := New(5*time.Second, []relay.Address{r1, r2})
		require.Equal(t, []relay.Address{r1, r2}, g.Known())

		time.Sleep(3 * time.Second)
		g.Touch(r2, r3)
		require.Equal(t, []relay.Address{r1, r2, r3}, g.Known())
		require.Empty(t, g.Expired())

		// Exactly at the threshold nothing expires yet.
		time.Sleep(2 * time.Second)
		require.Empty(t, g.Expired())

		time.Sleep(time.Millisecond)
		require.Equal(t, []relay.Address{r1}, g.Expired())

		// The expired timestamp was reset, so r1 is not reported twice in a row.
		require.Empty(t, g.Expired())

		time.Sleep(3 * time.Second)
		require.Equal(t, []relay.Address{r2, r3}, g.Expired())

		time.Sleep(2*time.Second + time.Millisecond)
		require.Equal(t, []relay.Address{r1}, g.Expired())
	})
}

func TestGovernor_TouchKeepsRelayAlive(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		r := relay.TriState(relay.SystemCode{true}, relay.ChannelC)
		g := New(0, []relay.Address{r})
		require.Equal(t, DefaultThreshold, g.Threshold())

		for range 10 {
			time.Sleep(time.Second)
			g.Touch(r)
			require.Empty(t, g.Expired())
		}
	})
}
