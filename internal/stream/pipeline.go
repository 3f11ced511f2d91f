package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/relay-switch/internal/logger"
)

// DefaultBlock is how long every read after the first one waits for new entries.
const DefaultBlock = 5000 * time.Millisecond

// Mapper turns one log entry into a typed item.
// A *MalformedEntryError drops the entry; any other error stops the pipeline.
type Mapper[T any] interface {
	Map(ctx context.Context, stream string, entry Entry) (T, error)
}

// Reducer folds the items of one batch into a delta.
type Reducer[T, D any] interface {
	Reduce(ctx context.Context, items []T) (D, error)
}

// Committer applies a delta. coldStart is true only for the first batch after start.
type Committer[D any] interface {
	Commit(ctx context.Context, coldStart bool, delta D) error
}

// Ticker runs once per iteration, after the cursor is persisted.
type Ticker interface {
	Tick(ctx context.Context) error
}

// MapperFunc adapts a function to Mapper.
type MapperFunc[T any] func(ctx context.Context, stream string, entry Entry) (T, error)

// Map calls f.
func (f MapperFunc[T]) Map(ctx context.Context, stream string, entry Entry) (T, error) {
	return f(ctx, stream, entry)
}

// ReducerFunc adapts a function to Reducer.
type ReducerFunc[T, D any] func(ctx context.Context, items []T) (D, error)

// Reduce calls f.
func (f ReducerFunc[T, D]) Reduce(ctx context.Context, items []T) (D, error) {
	return f(ctx, items)
}

// CommitterFunc adapts a function to Committer.
type CommitterFunc[D any] func(ctx context.Context, coldStart bool, delta D) error

// Commit calls f.
func (f CommitterFunc[D]) Commit(ctx context.Context, coldStart bool, delta D) error {
	return f(ctx, coldStart, delta)
}

// Observer receives pipeline progress, typically to export metrics.
type Observer interface {
	EntriesRead(stream string, count int)
	EntryDropped(stream string)
	BatchCommitted(stream string, coldStart bool, duration time.Duration)
	CursorAdvanced(stream string, cursor EntryID)
}

type nopObserver struct{}

func (nopObserver) EntriesRead(string, int)                    {}
func (nopObserver) EntryDropped(string)                        {}
func (nopObserver) BatchCommitted(string, bool, time.Duration) {}
func (nopObserver) CursorAdvanced(string, EntryID)             {}

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	block    time.Duration
	ticker   Ticker
	observer Observer
}

// WithBlock sets the block window for reads after the first one.
func WithBlock(block time.Duration) Option {
	return func(o *options) {
		if block > 0 {
			o.block = block
		}
	}
}

// WithTicker registers a hook run once per iteration, after the cursor is persisted.
func WithTicker(t Ticker) Option {
	return func(o *options) {
		o.ticker = t
	}
}

// WithObserver registers a progress observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// Pipeline consumes a stream from a persisted cursor: read, map, reduce,
// commit, persist cursor, tick, repeat. It is not safe for concurrent use;
// one goroutine owns it together with everything its strategies mutate.
type Pipeline[T, D any] struct {
	store     Store
	name      string
	mapper    Mapper[T]
	reducer   Reducer[T, D]
	committer Committer[D]
	opts      options

	// cursor is the id of the next entry to read.
	cursor EntryID
	// initialized is set once the first batch was committed.
	initialized bool
}

// New creates a pipeline for the stream called name.
func New[T, D any](
	store Store,
	name string,
	mapper Mapper[T],
	reducer Reducer[T, D],
	committer Committer[D],
	opts ...Option,
) *Pipeline[T, D] {
	o := options{
		block:    DefaultBlock,
		observer: nopObserver{},
	}

	for _, opt := range opts {
		opt(&o)
	}

	return &Pipeline[T, D]{
		store:     store,
		name:      name,
		mapper:    mapper,
		reducer:   reducer,
		committer: committer,
		opts:      o,
	}
}

// Cursor returns the id of the next entry to read.
func (p *Pipeline[T, D]) Cursor() EntryID {
	return p.cursor
}

// LoadCursor reads the persisted cursor, defaulting to Beginning.
func (p *Pipeline[T, D]) LoadCursor(ctx context.Context) error {
	key := CursorKey(p.name)

	raw, err := p.store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		p.cursor = Beginning
	case err != nil:
		return fmt.Errorf("%w: get %s: %w", ErrStore, key, err)
	default:
		if p.cursor, err = ParseEntryID(string(raw)); err != nil {
			return fmt.Errorf("%w: cursor %s: %w", ErrStore, key, err)
		}
	}

	logger.InfoKV(ctx, "Cursor loaded", "stream", p.name, "cursor", p.cursor.String())

	return nil
}

// Run loads the cursor and processes batches until an error occurs.
// It only returns on store, handler or context errors.
func (p *Pipeline[T, D]) Run(ctx context.Context) error {
	if err := p.LoadCursor(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := p.Step(ctx); err != nil {
			return err
		}
	}
}

// Step processes one batch. The first call drains the backlog without waiting
// and commits as a cold start; later calls block up to the block window.
func (p *Pipeline[T, D]) Step(ctx context.Context) error {
	var block time.Duration
	if p.initialized {
		block = p.opts.block
	}

	logger.DebugKV(ctx, "Reading stream", "stream", p.name, "from", p.cursor.String(), "block", block)

	entries, err := p.store.Read(ctx, p.name, p.cursor, block)
	if err != nil {
		return fmt.Errorf("%w: read %s from %s: %w", ErrStore, p.name, p.cursor, err)
	}

	p.opts.observer.EntriesRead(p.name, len(entries))

	next := p.cursor
	items := make([]T, 0, len(entries))

	for _, entry := range entries {
		if entry.ID.Less(next) {
			logger.WarnKV(ctx, "Skipping entry before cursor", "stream", p.name, "entry_id", entry.ID.String())
			continue
		}

		// The cursor moves past every entry, mapped or not, so a malformed
		// entry can never block the stream.
		next = entry.ID.Next()

		item, err := p.mapper.Map(ctx, p.name, entry)
		if err != nil {
			var malformed *MalformedEntryError
			if !errors.As(err, &malformed) {
				return fmt.Errorf("map entry %s of %s: %w", entry.ID, p.name, err)
			}

			logger.WarnKV(ctx, "Dropping malformed entry",
				"stream", p.name,
				"entry_id", entry.ID.String(),
				"error", err.Error(),
			)
			p.opts.observer.EntryDropped(p.name)

			continue
		}

		items = append(items, item)
	}

	delta, err := p.reducer.Reduce(ctx, items)
	if err != nil {
		return fmt.Errorf("reduce batch of %s: %w", p.name, err)
	}

	coldStart := !p.initialized
	started := time.Now()

	if err = p.committer.Commit(ctx, coldStart, delta); err != nil {
		return fmt.Errorf("commit batch of %s: %w", p.name, err)
	}

	p.opts.observer.BatchCommitted(p.name, coldStart, time.Since(started))

	key := CursorKey(p.name)
	if err = p.store.Set(ctx, key, []byte(next.String())); err != nil {
		return fmt.Errorf("%w: persist %s=%s: %w", ErrCommit, key, next, err)
	}

	if next != p.cursor {
		logger.DebugKV(ctx, "Cursor advanced", "stream", p.name, "cursor", next.String())
	}

	p.cursor = next
	p.initialized = true
	p.opts.observer.CursorAdvanced(p.name, next)

	if p.opts.ticker != nil {
		if err = p.opts.ticker.Tick(ctx); err != nil {
			return fmt.Errorf("tick after batch of %s: %w", p.name, err)
		}
	}

	return nil
}
