package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/oshokin/relay-switch/internal/domain/relay"
	"github.com/oshokin/relay-switch/internal/stream"
)

// Repository defines persistence operations for the relay state snapshot.
type Repository interface {
	Load(ctx context.Context) (*relay.States, error)
	Save(ctx context.Context, states *relay.States) error
}

// KV is the part of the command store the repository needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// ErrNotFound is returned when no snapshot has been saved yet.
var ErrNotFound = errors.New("state not found")

// ErrInvalidSnapshot is returned when a stored snapshot cannot be decoded.
var ErrInvalidSnapshot = errors.New("invalid state snapshot")

//nolint:gochecknoglobals // Shared codec configuration.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// snapshot is the wire form: {"states":[["Relay1","On"],["Relay2","Off"]]}.
type snapshot struct {
	States [][2]string `json:"states"`
}

// StoreRepository persists the relay state snapshot in the command store.
type StoreRepository struct {
	// kv is the store holding the snapshot key.
	kv KV
	// key is the snapshot key, "{name}_state".
	key string
	// scheme decides how stored addresses are parsed back.
	scheme relay.Scheme
	// mu serializes Load and Save.
	mu sync.Mutex
}

// NewStoreRepository creates a repository for the named stream.
func NewStoreRepository(kv KV, name string, scheme relay.Scheme) *StoreRepository {
	return &StoreRepository{
		kv:     kv,
		key:    stream.StateKey(name),
		scheme: scheme,
	}
}

// Key returns the store key the snapshot lives under.
func (r *StoreRepository) Key() string {
	return r.key
}

// Load reads the snapshot from the store.
func (r *StoreRepository) Load(ctx context.Context) (*relay.States, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := r.kv.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, stream.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state snapshot: %w", err)
	}

	var s snapshot
	if err = json.Unmarshal(contents, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	return fromSnapshot(&s, r.scheme)
}

// Save writes the snapshot to the store.
func (r *StoreRepository) Save(ctx context.Context, states *relay.States) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(toSnapshot(states))
	if err != nil {
		return fmt.Errorf("encode state snapshot: %w", err)
	}

	if err = r.kv.Set(ctx, r.key, data); err != nil {
		return fmt.Errorf("write state snapshot: %w", err)
	}

	return nil
}

// fromSnapshot converts the wire form into relay.States, keeping order.
func fromSnapshot(s *snapshot, scheme relay.Scheme) (*relay.States, error) {
	states := relay.NewStates()

	for _, pair := range s.States {
		addr, err := relay.ParseAddress(scheme, pair[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}

		state, err := relay.ParseState(pair[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}

		states.Set(addr, state)
	}

	return states, nil
}

// toSnapshot converts relay.States into the wire form.
func toSnapshot(states *relay.States) *snapshot {
	entries := states.Entries()

	s := &snapshot{States: make([][2]string, 0, len(entries))}
	for _, e := range entries {
		s.States = append(s.States, [2]string{e.Address.String(), e.State.String()})
	}

	return s
}
