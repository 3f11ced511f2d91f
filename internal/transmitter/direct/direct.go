// Package direct drives one GPIO line per relay of the fixed scheme.
package direct

import (
	"errors"
	"fmt"

	"github.com/oshokin/relay-switch/internal/domain/relay"
)

// ErrPinCount is returned when the number of pins does not match the fixed relay count.
var ErrPinCount = errors.New("direct transmitter needs one pin per relay")

// Pin is an output line energizing one relay.
type Pin interface {
	High()
	Low()
}

// Transmitter maps relay N of the fixed scheme to pins[N-1].
type Transmitter struct {
	pins []Pin
}

// New creates a Transmitter over exactly relay.FixedRelayCount pins.
func New(pins []Pin) (*Transmitter, error) {
	if len(pins) != relay.FixedRelayCount {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrPinCount, len(pins), relay.FixedRelayCount)
	}

	return &Transmitter{pins: append([]Pin(nil), pins...)}, nil
}

// Send drives the relay pin High for On and Low for Off.
// Addresses outside the fixed scheme are ignored.
func (t *Transmitter) Send(addr relay.Address, state relay.State) {
	if addr.Scheme() != relay.SchemeFixed {
		return
	}

	n := addr.Relay()
	if n < 1 || n > len(t.pins) {
		return
	}

	if state == relay.On {
		t.pins[n-1].High()
	} else {
		t.pins[n-1].Low()
	}
}
