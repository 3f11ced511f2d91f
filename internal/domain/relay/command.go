package relay

import (
	"errors"
	"fmt"
	"strconv"
)

// Command log field names.
const (
	FieldRelay      = "relay"
	FieldSystemCode = "system_code"
	FieldSwitch     = "switch"
	FieldState      = "state"
	FieldOrigin     = "origin"
)

// ErrMissingField is returned when a command lacks a required field.
var ErrMissingField = errors.New("missing field")

// Command is one typed instruction extracted from the command log.
type Command struct {
	Address Address
	State   State
}

// ParseCommand reads a command from the fields of a log entry.
//
// Fixed addresses come from "relay" ("1".."8"); Tri-State addresses come
// from "system_code" ("10000") and "switch" ("A".."E"). "state" must be
// exactly "On" or "Off". Other fields, such as "origin", are ignored.
func ParseCommand(scheme Scheme, fields map[string]string) (Command, error) {
	var (
		addr Address
		err  error
	)

	switch scheme {
	case SchemeFixed:
		addr, err = parseFixedFields(fields)
	case SchemeTriState:
		addr, err = parseTriStateFields(fields)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownScheme, scheme)
	}

	if err != nil {
		return Command{}, err
	}

	raw, ok := fields[FieldState]
	if !ok {
		return Command{}, fmt.Errorf("%w: %s", ErrMissingField, FieldState)
	}

	state, err := ParseState(raw)
	if err != nil {
		return Command{}, err
	}

	return Command{Address: addr, State: state}, nil
}

// Fields renders the command as log entry fields.
func (c Command) Fields() map[string]string {
	fields := map[string]string{FieldState: c.State.String()}

	switch c.Address.Scheme() {
	case SchemeFixed:
		fields[FieldRelay] = strconv.Itoa(c.Address.Relay())
	case SchemeTriState:
		fields[FieldSystemCode] = c.Address.SystemCode().String()
		fields[FieldSwitch] = c.Address.Channel().String()
	}

	return fields
}

func parseFixedFields(fields map[string]string) (Address, error) {
	raw, ok := fields[FieldRelay]
	if !ok {
		return Address{}, fmt.Errorf("%w: %s", ErrMissingField, FieldRelay)
	}

	// Only the literal digits "1".."8" name a relay; "+3" and "03" do not.
	if len(raw) != 1 || raw[0] < '1' || raw[0] > '0'+FixedRelayCount {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidRelay, raw)
	}

	return Fixed(int(raw[0] - '0'))
}

func parseTriStateFields(fields map[string]string) (Address, error) {
	code, ok := fields[FieldSystemCode]
	if !ok {
		return Address{}, fmt.Errorf("%w: %s", ErrMissingField, FieldSystemCode)
	}

	channel, ok := fields[FieldSwitch]
	if !ok {
		return Address{}, fmt.Errorf("%w: %s", ErrMissingField, FieldSwitch)
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
}
