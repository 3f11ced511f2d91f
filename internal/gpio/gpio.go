// Package gpio opens output pins through periph.io.
//
// A Pin only ever drives its line: the direction is set to output when it is
// opened, and writes are fire-and-forget. Inversion is applied here so the
// transmitters can speak in terms of logical High and Low.
package gpio

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// ErrPinNotFound is returned when no pin matches the requested name.
var ErrPinNotFound = errors.New("gpio pin not found")

//nolint:gochecknoglobals // periph host drivers must be initialized once per process.
var (
	hostOnce sync.Once
	hostErr  error
)

// Pin is an output line with optional inversion.
type Pin struct {
	out    gpio.PinOut
	name   string
	invert bool
}

// Open resolves name ("GPIO17" or "17"), sets it as an output driven to the
// logical Low level and returns it.
func Open(name string, invert bool) (*Pin, error) {
	hostOnce.Do(func() {
		_, hostErr = host.Init()
	})

	if hostErr != nil {
		return nil, fmt.Errorf("initialize gpio host: %w", hostErr)
	}

	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, name)
	}

	pin := &Pin{
		out:    p,
		name:   p.Name(),
		invert: invert,
	}

	if err := p.Out(pin.level(false)); err != nil {
		return nil, fmt.Errorf("set %s as output: %w", pin.name, err)
	}

	return pin, nil
}

// Name returns the resolved pin name.
func (p *Pin) Name() string {
	return p.name
}

// High drives the logical High level.
func (p *Pin) High() {
	p.Set(true)
}

// Low drives the logical Low level.
func (p *Pin) Low() {
	p.Set(false)
}

// Set drives the logical level; errors from the driver are ignored because
// the line is write-only and a failed write has no recovery path.
func (p *Pin) Set(high bool) {
	_ = p.out.Out(p.level(high)) //nolint:errcheck // Fire-and-forget pin write.
}

func (p *Pin) level(high bool) gpio.Level {
	if p.invert {
		high = !high
	}

	if high {
		return gpio.High
	}

	return gpio.Low
}
