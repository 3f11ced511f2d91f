package rf

import (
	"time"

	"github.com/oshokin/relay-switch/internal/domain/relay"
)

const (
	// DefaultPulseLength is the unit pulse every waveform duration is a multiple of.
	DefaultPulseLength = 300 * time.Microsecond
	// DefaultRepeats is how many times a codeword is sent per Send call.
	// There is no acknowledgement channel, repetition is the only reliability.
	DefaultRepeats = 10

	// unitsPerSymbol is the length of every symbol in unit pulses (two 4-unit pairs).
	unitsPerSymbol = 8
	// unitsPerSync is the length of the sync trailer in unit pulses.
	unitsPerSync = 32
)

// Pulse is one high phase followed by one low phase, in unit pulses.
type Pulse struct {
	High int
	Low  int
}

//nolint:gochecknoglobals // Fixed protocol tables.
var (
	//            _     _
	// Waveform: | |___| |___
	waveform0 = [2]Pulse{{1, 3}, {1, 3}}
	//            ___   ___
	// Waveform: |   |_|   |_
	waveform1 = [2]Pulse{{3, 1}, {3, 1}}
	//            _     ___
	// Waveform: | |___|   |_
	waveformF = [2]Pulse{{1, 3}, {3, 1}}

	syncPulse = Pulse{1, 31}
)

// Waveform returns the pulses of one frame: every symbol followed by the sync trailer.
// Symbols outside the Tri-State alphabet produce no pulses.
func Waveform(c Codeword) []Pulse {
	pulses := make([]Pulse, 0, 2*CodewordLength+1)

	for _, symbol := range c {
		switch symbol {
		case Symbol0:
			pulses = append(pulses, waveform0[:]...)
		case Symbol1:
			pulses = append(pulses, waveform1[:]...)
		case SymbolF:
			pulses = append(pulses, waveformF[:]...)
		}
	}

	return append(pulses, syncPulse)
}

// Pin is the output line carrying the RF modulation.
type Pin interface {
	High()
	Low()
}

// Option configures a Transmitter.
type Option func(*Transmitter)

// WithPulseLength overrides the unit pulse length.
func WithPulseLength(d time.Duration) Option {
	return func(t *Transmitter) {
		if d > 0 {
			t.unit = d
		}
	}
}

// WithRepeats overrides the number of frames per Send.
func WithRepeats(n int) Option {
	return func(t *Transmitter) {
		if n > 0 {
			t.repeats = n
		}
	}
}

// WithDelay replaces the busy-wait used between pin writes.
func WithDelay(delay func(time.Duration)) Option {
	return func(t *Transmitter) {
		if delay != nil {
			t.delay = delay
		}
	}
}

// Transmitter sends Tri-State frames over a 433 MHz transmitter wired to a pin.
type Transmitter struct {
	pin     Pin
	unit    time.Duration
	repeats int
	delay   func(time.Duration)
}

// New creates a Transmitter driving pin.
func New(pin Pin, opts ...Option) *Transmitter {
	t := &Transmitter{
		pin:     pin,
		unit:    DefaultPulseLength,
		repeats: DefaultRepeats,
		delay:   BusyWait,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Send transmits the codeword for addr and state, repeated, blocking the
// calling goroutine for the whole pulse train.
func (t *Transmitter) Send(addr relay.Address, state relay.State) {
	frame := Waveform(Encode(addr, state))

	for range t.repeats {
		for _, p := range frame {
			t.transmit(p)
		}
	}
}

// Duration returns how long one Send call keeps the pin busy.
func (t *Transmitter) Duration() time.Duration {
	units := CodewordLength*unitsPerSymbol + unitsPerSync

	return time.Duration(t.repeats*units) * t.unit
}

func (t *Transmitter) transmit(p Pulse) {
	t.pin.High()
	t.delay(time.Duration(p.High) * t.unit)
	t.pin.Low()
	t.delay(time.Duration(p.Low) * t.unit)
}

// BusyWait spins until d has elapsed. Sleeping would hand the thread back to
// the scheduler, whose wake-up latency is of the same order as the 300 us
// unit pulse; spinning keeps the edges within a few microseconds.
func BusyWait(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) { //nolint:revive // Intentional spin.
	}
}
