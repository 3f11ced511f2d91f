package stream

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidEntryID is returned when an entry id string cannot be parsed.
var ErrInvalidEntryID = errors.New("invalid stream entry id")

// EntryID is the position of an entry in a stream.
// Ordering is by Time, then by Sequence, which matches Redis stream ids.
type EntryID struct {
	Time     uint64
	Sequence uint32
}

// Beginning is the cursor sentinel used before anything was consumed.
//
//nolint:gochecknoglobals // Immutable sentinel value.
var Beginning = EntryID{}

// ParseEntryID parses "<time>-<sequence>".
func ParseEntryID(s string) (EntryID, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 { //nolint:mnd // Exactly time and sequence.
		return EntryID{}, fmt.Errorf("%w: %q", ErrInvalidEntryID, s)
	}

	t, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return EntryID{}, fmt.Errorf("%w: %q: time: %w", ErrInvalidEntryID, s, err)
	}

	seq, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return EntryID{}, fmt.Errorf("%w: %q: sequence: %w", ErrInvalidEntryID, s, err)
	}

	return EntryID{Time: t, Sequence: uint32(seq)}, nil
}

// Next returns the smallest id strictly after id.
// The sequence is incremented and the time kept; a sequence that would
// overflow carries into the time instead of wrapping.
func (id EntryID) Next() EntryID {
	if id.Sequence == math.MaxUint32 {
		return EntryID{Time: id.Time + 1}
	}

	return EntryID{Time: id.Time, Sequence: id.Sequence + 1}
}

// Compare returns -1, 0 or +1 depending on whether id sorts before, equal to or after other.
func (id EntryID) Compare(other EntryID) int {
	if c := cmp.Compare(id.Time, other.Time); c != 0 {
		return c
	}

	return cmp.Compare(id.Sequence, other.Sequence)
}

// Less reports whether id sorts before other.
func (id EntryID) Less(other EntryID) bool {
	return id.Compare(other) < 0
}

// String renders "<time>-<sequence>".
func (id EntryID) String() string {
	return strconv.FormatUint(id.Time, 10) + "-" + strconv.FormatUint(uint64(id.Sequence), 10)
}

// Entry is one record of the command log.
type Entry struct {
	ID     EntryID
	Fields map[string]string
}
