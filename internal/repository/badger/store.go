// Package badger implements the command store on an embedded Badger database.
//
// It serves single-host deployments without a Redis server. Keys live under
// "kv/" and stream entries under "log/<stream>/<time>-<sequence>" with
// zero-padded ids, so Badger's byte order equals entry id order. Blocking
// reads are woken by appends made through the same Store; the database is
// locked to one process, so other processes publish through the HTTP ingress.
package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	jsoniter "github.com/json-iterator/go"

	"github.com/oshokin/relay-switch/internal/logger"
	"github.com/oshokin/relay-switch/internal/stream"
)

const (
	kvPrefix  = "kv/"
	logPrefix = "log/"
	idFormat  = "%020d-%010d"
)

//nolint:gochecknoglobals // Shared codec configuration.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store implements stream.Store and stream.Appender on Badger.
type Store struct {
	db *badger.DB

	// mu guards last and notify.
	mu sync.Mutex
	// last caches the newest id of every stream appended through this Store.
	last map[string]stream.EntryID
	// notify is closed and replaced on every append.
	notify chan struct{}
}

// Open opens (or creates) the database in path. An empty path opens an
// in-memory database that is discarded on Close.
func Open(ctx context.Context, path string) (*Store, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(logger.NewBadgerLogger(ctx))

	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger at %q: %w", stream.ErrStore, path, err)
	}

	return &Store{
		db:     db,
		last:   make(map[string]stream.EntryID),
		notify: make(chan struct{}),
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements stream.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(kvPrefix + key))
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)

		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, stream.ErrNotFound
		}

		return nil, fmt.Errorf("%w: get %s: %w", stream.ErrStore, key, err)
	}

	return value, nil
}

// Set implements stream.Store.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(kvPrefix+key), value)
	})
	if err != nil {
		return fmt.Errorf("%w: set %s: %w", stream.ErrStore, key, err)
	}

	return nil
}

// Read implements stream.Store. With a positive block it waits for an append
// to the store, the block window to elapse or ctx to be done.
func (s *Store) Read(
	ctx context.Context,
	name string,
	from stream.EntryID,
	block time.Duration,
) ([]stream.Entry, error) {
	var timeout <-chan time.Time

	if block > 0 {
		timer := time.NewTimer(block)
		defer timer.Stop()

		timeout = timer.C
	}

	for {
		// Taken before scanning so an append racing the scan still wakes us.
		s.mu.Lock()
		wake := s.notify
		s.mu.Unlock()

		entries, err := s.scan(name, from)
		if err != nil {
			return nil, err
		}

		if len(entries) > 0 || timeout == nil {
			return entries, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, nil
		case <-wake:
		}
	}
}

// Append implements stream.Appender. Ids follow the Redis rule: the current
// time in milliseconds, or the previous id's sequence plus one when the clock
// has not moved past the previous id.
func (s *Store) Append(_ context.Context, name string, fields map[string]string) (stream.EntryID, error) {
	value, err := json.Marshal(fields)
	if err != nil {
		return stream.EntryID{}, fmt.Errorf("encode entry fields: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.last[name]
	if !ok {
		if last, err = s.lastID(name); err != nil {
			return stream.EntryID{}, err
		}
	}

	id := stream.EntryID{Time: uint64(time.Now().UnixMilli())} //nolint:gosec // Wall clock is positive.
	if !last.Less(id) {
		id = last.Next()
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(name, id), value)
	})
	if err != nil {
		return stream.EntryID{}, fmt.Errorf("%w: append to %s: %w", stream.ErrStore, name, err)
	}

	s.last[name] = id

	close(s.notify)
	s.notify = make(chan struct{})

	return id, nil
}

func (s *Store) scan(name string, from stream.EntryID) ([]stream.Entry, error) {
	var (
		prefix  = []byte(streamPrefix(name))
		entries []stream.Entry
	)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(entryKey(name, from)); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			id, err := parseEntryKey(name, item.Key())
			if err != nil {
				return err
			}

			entry := stream.Entry{ID: id}

			if err = item.Value(func(v []byte) error {
				return json.Unmarshal(v, &entry.Fields)
			}); err != nil {
				return fmt.Errorf("decode entry %s: %w", id, err)
			}

			entries = append(entries, entry)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", stream.ErrStore, name, err)
	}

	return entries, nil
}

// lastID finds the newest persisted id of a stream, Beginning when empty.
func (s *Store) lastID(name string) (stream.EntryID, error) {
	var (
		prefix = []byte(streamPrefix(name))
		last   = stream.Beginning
	)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		// 0xFF sorts after every digit, so the seek lands on the last entry.
		it.Seek(append(append([]byte(nil), prefix...), 0xFF))

		if !it.ValidForPrefix(prefix) {
			return nil
		}

		var err error

		last, err = parseEntryKey(name, it.Item().Key())

		return err
	})
	if err != nil {
		return stream.EntryID{}, fmt.Errorf("%w: last id of %s: %w", stream.ErrStore, name, err)
	}

	return last, nil
}

func streamPrefix(name string) string {
	return logPrefix + name + "/"
}

func entryKey(name string, id stream.EntryID) []byte {
	return fmt.Appendf(nil, "%s"+idFormat, streamPrefix(name), id.Time, id.Sequence)
}

func parseEntryKey(name string, key []byte) (stream.EntryID, error) {
	id, err := stream.ParseEntryID(strings.TrimPrefix(string(key), streamPrefix(name)))
	if err != nil {
		return stream.EntryID{}, fmt.Errorf("key %q: %w", key, err)
	}

	return id, nil
}
