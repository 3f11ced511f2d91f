// Package redis implements the command store on Redis keys and streams.
package redis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/oshokin/relay-switch/internal/stream"
)

// DefaultAddress is the Redis address used when none is configured.
const DefaultAddress = "localhost:6379"

// Options configures the Redis connection.
type Options struct {
	Address  string
	Password string
	DB       int
}

// Store implements stream.Store and stream.Appender on a Redis server.
type Store struct {
	client *goredis.Client
}

// New creates a Store. No connection is made until the first command.
func New(opts Options) *Store {
	if opts.Address == "" {
		opts.Address = DefaultAddress
	}

	return &Store{
		client: goredis.NewClient(&goredis.Options{
			Addr:     opts.Address,
			Password: opts.Password,
			DB:       opts.DB,
		}),
	}
}

// NewFromClient wraps an existing client.
func NewFromClient(client *goredis.Client) *Store {
	return &Store{client: client}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %w", stream.ErrStore, err)
	}

	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// Get implements stream.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, stream.ErrNotFound
		}

		return nil, fmt.Errorf("%w: get %s: %w", stream.ErrStore, key, err)
	}

	return value, nil
}

// Set implements stream.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %w", stream.ErrStore, key, err)
	}

	return nil
}

// Read implements stream.Store with XREAD. XREAD returns entries strictly
// after the given id, so the request names the predecessor of from.
func (s *Store) Read(
	ctx context.Context,
	name string,
	from stream.EntryID,
	block time.Duration,
) ([]stream.Entry, error) {
	args := &goredis.XReadArgs{
		Streams: []string{name, exclusiveID(from)},
		Block:   -1,
	}

	if block > 0 {
		args.Block = block
	}

	result, err := s.client.XRead(ctx, args).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: xread %s: %w", stream.ErrStore, name, err)
	}

	var entries []stream.Entry

	for _, st := range result {
		for _, msg := range st.Messages {
			id, err := stream.ParseEntryID(msg.ID)
			if err != nil {
				return nil, fmt.Errorf("%w: xread %s: %w", stream.ErrStore, name, err)
			}

			entries = append(entries, stream.Entry{ID: id, Fields: stringFields(msg.Values)})
		}
	}

	return entries, nil
}

// Append implements stream.Appender with XADD and a server-assigned id.
func (s *Store) Append(ctx context.Context, name string, fields map[string]string) (stream.EntryID, error) {
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	raw, err := s.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: name,
		Values: values,
	}).Result()
	if err != nil {
		return stream.EntryID{}, fmt.Errorf("%w: xadd %s: %w", stream.ErrStore, name, err)
	}

	id, err := stream.ParseEntryID(raw)
	if err != nil {
		return stream.EntryID{}, fmt.Errorf("%w: xadd %s: %w", stream.ErrStore, name, err)
	}

	return id, nil
}

// exclusiveID returns the greatest id strictly smaller than from.
func exclusiveID(from stream.EntryID) string {
	switch {
	case from.Sequence > 0:
		return stream.EntryID{Time: from.Time, Sequence: from.Sequence - 1}.String()
	case from.Time > 0:
		return fmt.Sprintf("%d-%d", from.Time-1, uint64(math.MaxUint64))
	default:
		return stream.Beginning.String()
	}
}

func stringFields(values map[string]any) map[string]string {
	fields := make(map[string]string, len(values))

	for k, v := range values {
		switch typed := v.(type) {
		case string:
			fields[k] = typed
		case []byte:
			fields[k] = string(typed)
		default:
			fields[k] = fmt.Sprint(typed)
		}
	}

	return fields
}
