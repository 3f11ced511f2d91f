package relay

import (
	"errors"
	"fmt"
)

// State is the desired or last-known position of a relay.
type State uint8

const (
	// Off de-energizes the relay. It is the zero value and the fail-safe state.
	Off State = iota
	// On energizes the relay.
	On
)

// ErrUnknownState is returned for state strings other than "On" and "Off".
var ErrUnknownState = errors.New("unknown relay state")

// ParseState accepts exactly "On" or "Off".
func ParseState(s string) (State, error) {
	switch s {
	case "On":
		return On, nil
	case "Off":
		return Off, nil
	default:
		return Off, fmt.Errorf("%w: %q", ErrUnknownState, s)
	}
}

// String returns "On" or "Off".
func (s State) String() string {
	if s == On {
		return "On"
	}

	return "Off"
}

// Entry is one address/state pair of States.
type Entry struct {
	Address Address
	State   State
}

// States is an ordered association from Address to State.
// Each address appears at most once; repeated writes update in place and
// insertion order is kept, so snapshots serialize deterministically.
// The zero value is empty and ready to use.
type States struct {
	entries []Entry
}

// NewStates builds States from entries, later entries overriding earlier ones.
func NewStates(entries ...Entry) *States {
	s := &States{entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		s.Set(e.Address, e.State)
	}

	return s
}

// Set records state for addr, in place when addr is already present.
func (s *States) Set(addr Address, state State) {
	for i := range s.entries {
		if s.entries[i].Address == addr {
			s.entries[i].State = state
			return
		}
	}

	s.entries = append(s.entries, Entry{Address: addr, State: state})
}

// Get returns the state of addr and whether it is present.
func (s *States) Get(addr Address) (State, bool) {
	for _, e := range s.entries {
		if e.Address == addr {
			return e.State, true
		}
	}

	return Off, false
}

// Len returns the number of addresses.
func (s *States) Len() int {
	if s == nil {
		return 0
	}

	return len(s.entries)
}

// Entries returns a copy of the entries in insertion order.
func (s *States) Entries() []Entry {
	if s == nil {
		return nil
	}

	result := make([]Entry, len(s.entries))
	copy(result, s.entries)

	return result
}

// Addresses returns the addresses in insertion order.
func (s *States) Addresses() []Address {
	if s == nil {
		return nil
	}

	result := make([]Address, 0, len(s.entries))
	for _, e := range s.entries {
		result = append(result, e.Address)
	}

	return result
}

// Merge applies every entry of delta on top of s.
func (s *States) Merge(delta *States) {
	if delta == nil {
		return
	}

	for _, e := range delta.entries {
		s.Set(e.Address, e.State)
	}
}

// Clone returns an independent copy.
func (s *States) Clone() *States {
	return &States{entries: s.Entries()}
}

// Equal reports whether both hold the same entries in the same order.
func (s *States) Equal(other *States) bool {
	if s.Len() != other.Len() {
		return false
	}

	for i, e := range s.Entries() {
		if other.entries[i] != e {
			return false
		}
	}

	return true
}
