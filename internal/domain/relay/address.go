package relay

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Scheme selects which address shape a deployment uses.
type Scheme uint8

const (
	// SchemeFixed addresses one of eight fixed relays.
	SchemeFixed Scheme = iota + 1
	// SchemeTriState addresses a remote socket by system code and channel.
	SchemeTriState
)

const (
	// FixedRelayCount is the number of relays in the fixed scheme.
	FixedRelayCount = 8
	// SystemCodeBits is the width of a Tri-State system code.
	SystemCodeBits = 5
	// ChannelCount is the number of channels per system code.
	ChannelCount = 5

	fixedPrefix        = "Relay"
	triStateSeparator  = "-"
	schemeFixedName    = "fixed"
	schemeTriStateName = "tristate"
)

var (
	// ErrUnknownScheme is returned for scheme names other than "fixed" and "tristate".
	ErrUnknownScheme = errors.New("unknown address scheme")
	// ErrInvalidRelay is returned for relay numbers outside 1..8.
	ErrInvalidRelay = errors.New("invalid relay number")
	// ErrInvalidSystemCode is returned for system codes that are not five 0/1 digits.
	ErrInvalidSystemCode = errors.New("invalid system code")
	// ErrInvalidChannel is returned for channels other than A..E.
	ErrInvalidChannel = errors.New("invalid channel")
	// ErrInvalidAddress is returned when an address string does not match its scheme.
	ErrInvalidAddress = errors.New("invalid address")
)

// ParseScheme converts a configuration value into a Scheme.
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case schemeFixedName:
		return SchemeFixed, nil
	case schemeTriStateName, "tri-state":
		return SchemeTriState, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownScheme, s)
	}
}

// String returns the configuration name of the scheme.
func (s Scheme) String() string {
	switch s {
	case SchemeFixed:
		return schemeFixedName
	case SchemeTriState:
		return schemeTriStateName
	default:
		return "Scheme(" + strconv.Itoa(int(s)) + ")"
	}
}

// SystemCode is the 5-bit code set on the DIP switches of a remote socket.
type SystemCode [SystemCodeBits]bool

// ParseSystemCode parses five '0'/'1' digits, most significant switch first.
func ParseSystemCode(s string) (SystemCode, error) {
	var code SystemCode

	if len(s) != SystemCodeBits {
		return code, fmt.Errorf("%w: %q", ErrInvalidSystemCode, s)
	}

	for i := range SystemCodeBits {
		switch s[i] {
		case '1':
			code[i] = true
		case '0':
		default:
			return code, fmt.Errorf("%w: %q", ErrInvalidSystemCode, s)
		}
	}

	return code, nil
}

// String renders the code as five '0'/'1' digits.
func (c SystemCode) String() string {
	var b [SystemCodeBits]byte

	for i, bit := range c {
		if bit {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	}

	return string(b[:])
}

// Channel selects one socket among the five sharing a system code.
type Channel uint8

// Channels A..E.
const (
	ChannelA Channel = iota
	ChannelB
	ChannelC
	ChannelD
	ChannelE
)

// ParseChannel accepts a single letter A..E (case-insensitive).
func ParseChannel(s string) (Channel, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidChannel, s)
	}

	c := s[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}

	if c < 'A' || c >= 'A'+ChannelCount {
		return 0, fmt.Errorf("%w: %q", ErrInvalidChannel, s)
	}

	return Channel(c - 'A'), nil
}

// Index returns the zero-based position of the channel.
func (c Channel) Index() int {
	return int(c)
}

// String returns the channel letter.
func (c Channel) String() string {
	return string(rune('A' + c))
}

// Address identifies one relay. It is an immutable value usable as a map key.
type Address struct {
	scheme  Scheme
	relay   uint8
	system  SystemCode
	channel Channel
}

// Fixed returns the address of relay n (1..8) in the fixed scheme.
func Fixed(n int) (Address, error) {
	if n < 1 || n > FixedRelayCount {
		return Address{}, fmt.Errorf("%w: %d", ErrInvalidRelay, n)
	}

	return Address{scheme: SchemeFixed, relay: uint8(n)}, nil //nolint:gosec // Range checked above.
}

// MustFixed is Fixed for compile-time constants.
func MustFixed(n int) Address {
	a, err := Fixed(n)
	if err != nil {
		panic(err)
	}

	return a
}

// TriState returns the address of a remote socket.
func TriState(system SystemCode, channel Channel) Address {
	return Address{scheme: SchemeTriState, system: system, channel: channel}
}

// FixedAddresses lists all eight fixed relays in order.
func FixedAddresses() []Address {
	result := make([]Address, 0, FixedRelayCount)
	for n := 1; n <= FixedRelayCount; n++ {
		result = append(result, MustFixed(n))
	}

	return result
}

// Scheme returns the address shape.
func (a Address) Scheme() Scheme {
	return a.scheme
}

// Relay returns the relay number (1..8) of a fixed address, 0 otherwise.
func (a Address) Relay() int {
	return int(a.relay)
}

// SystemCode returns the system code of a Tri-State address.
func (a Address) SystemCode() SystemCode {
	return a.system
}

// Channel returns the channel of a Tri-State address.
func (a Address) Channel() Channel {
	return a.channel
}

// IsZero reports whether a is the zero Address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String renders "Relay3" for fixed addresses and "10000-B" for Tri-State ones.
func (a Address) String() string {
	switch a.scheme {
	case SchemeFixed:
		return fixedPrefix + strconv.Itoa(int(a.relay))
	case SchemeTriState:
		return a.system.String() + triStateSeparator + a.channel.String()
	default:
		return "<none>"
	}
}

// ParseAddress parses the String form of an address in the given scheme.
func ParseAddress(scheme Scheme, s string) (Address, error) {
	switch scheme {
	case SchemeFixed:
		digits, ok := strings.CutPrefix(s, fixedPrefix)
		if !ok {
			return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}

		n, err := strconv.Atoi(digits)
		if err != nil {
			return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}

		return Fixed(n)
	case SchemeTriState:
		code, channel, ok := strings.Cut(s, triStateSeparator)
		if !ok {
			return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}

		system, err := ParseSystemCode(code)
		if err != nil {
			return Address{}, err
		}

		ch, err := ParseChannel(channel)
		if err != nil {
			return Address{}, err
		}

		return TriState(system, ch), nil
	default:
		return Address{}, fmt.Errorf("%w: %v", ErrUnknownScheme, scheme)
	}
}
