// Package streamtest provides an in-memory stream.Store for tests.
package streamtest

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/oshokin/relay-switch/internal/stream"
)

// MemoryStore keeps keys and streams in memory. Reads never block: a read
// with nothing to return records the block it was asked for and returns empty.
type MemoryStore struct {
	mu      sync.Mutex
	keys    map[string][]byte
	streams map[string][]stream.Entry
	last    map[string]stream.EntryID

	// Blocks records the block window of every Read call.
	Blocks []time.Duration
	// Sets records every Set call as "key=value".
	Sets []string

	// GetErr, when set, is returned by Get.
	GetErr error
	// ReadErr, when set, is returned by Read.
	ReadErr error
	// SetErr, when set, is returned by Set for the key it names.
	SetErr map[string]error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys:    make(map[string][]byte),
		streams: make(map[string][]stream.Entry),
		last:    make(map[string]stream.EntryID),
		SetErr:  make(map[string]error),
	}
}

// Get implements stream.Store.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}

	v, ok := m.keys[key]
	if !ok {
		return nil, stream.ErrNotFound
	}

	return append([]byte(nil), v...), nil
}

// Set implements stream.Store.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.SetErr[key]; err != nil {
		return err
	}

	m.keys[key] = append([]byte(nil), value...)
	m.Sets = append(m.Sets, key+"="+string(value))

	return nil
}

// Read implements stream.Store.
func (m *MemoryStore) Read(_ context.Context, name string, from stream.EntryID, block time.Duration) ([]stream.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Blocks = append(m.Blocks, block)

	if m.ReadErr != nil {
		return nil, m.ReadErr
	}

	var result []stream.Entry

	for _, e := range m.streams[name] {
		if e.ID.Less(from) {
			continue
		}

		result = append(result, stream.Entry{ID: e.ID, Fields: maps.Clone(e.Fields)})
	}

	return result, nil
}

// Append implements stream.Appender with ids 1-0, 1-1, 1-2...
func (m *MemoryStore) Append(_ context.Context, name string, fields map[string]string) (stream.EntryID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.last[name]
	if ok {
		id = id.Next()
	} else {
		id = stream.EntryID{Time: 1}
	}

	m.add(name, stream.Entry{ID: id, Fields: maps.Clone(fields)})

	return id, nil
}

// Add appends an entry with an explicit id.
func (m *MemoryStore) Add(name string, id stream.EntryID, fields map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.add(name, stream.Entry{ID: id, Fields: fields})
}

// add appends entry; the caller holds the lock.
func (m *MemoryStore) add(name string, entry stream.Entry) {
	m.streams[name] = append(m.streams[name], entry)
	m.last[name] = entry.ID
}

// Value returns the raw value of key.
func (m *MemoryStore) Value(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.keys[key]

	return string(v), ok
}
