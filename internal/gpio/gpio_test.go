package gpio

import (
	"testing"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// TestPin_Inversion checks logical levels map to physical ones with and without inversion.
func TestPin_Inversion(t *testing.T) {
	t.Parallel()

	line := &gpiotest.Pin{N: "GPIO17", Num: 17}

	pin := &Pin{out: line, name: line.Name()}
	pin.High()
	require.Equal(t, gpio.High, line.L)
	pin.Low()
	require.Equal(t, gpio.Low, line.L)

	inverted := &Pin{out: line, name: line.Name(), invert: true}
	inverted.High()
	require.Equal(t, gpio.Low, line.L)
	inverted.Set(false)
	require.Equal(t, gpio.High, line.L)
	require.Equal(t, "GPIO17", inverted.Name())
}
