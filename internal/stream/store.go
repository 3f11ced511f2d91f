package stream

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store is the durable key-value store and append-only log the pipeline consumes.
type Store interface {
	// Get returns the value of key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key.
	Set(ctx context.Context, key string, value []byte) error
	// Read returns the entries of stream whose id is at or after from, in order.
	// A zero block returns immediately; otherwise Read waits up to block for
	// entries to appear and returns nothing on timeout.
	Read(ctx context.Context, stream string, from EntryID, block time.Duration) ([]Entry, error)
}

// Appender adds entries to a stream. Producers use it; the pipeline does not.
type Appender interface {
	Append(ctx context.Context, stream string, fields map[string]string) (EntryID, error)
}

var (
	// ErrNotFound is returned by Store.Get for missing keys.
	ErrNotFound = errors.New("key not found")
	// ErrStore marks connectivity or protocol failures against the store.
	ErrStore = errors.New("store error")
	// ErrCommit marks failures while persisting merged state or the cursor.
	ErrCommit = errors.New("commit error")
)

// MalformedEntryError describes an entry whose fields cannot be mapped to a command.
// The pipeline drops such entries and keeps going.
type MalformedEntryError struct {
	Stream  string
	EntryID EntryID
	Message string
	Err     error
}

// NewMalformedEntryError builds a MalformedEntryError for entry.
func NewMalformedEntryError(stream string, entry Entry, message string, err error) *MalformedEntryError {
	return &MalformedEntryError{
		Stream:  stream,
		EntryID: entry.ID,
		Message: message,
		Err:     err,
	}
}

// Error implements error.
func (e *MalformedEntryError) Error() string {
	msg := fmt.Sprintf("convert entry '%s' of stream '%s': %s", e.EntryID, e.Stream, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *MalformedEntryError) Unwrap() error {
	return e.Err
}

// CursorKey returns the store key holding the cursor of the named stream.
func CursorKey(name string) string {
	return name + "_start"
}

// StateKey returns the store key holding the state snapshot of the named stream.
func StateKey(name string) string {
	return name + "_state"
}
