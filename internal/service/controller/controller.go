package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/oshokin/relay-switch/internal/api/grpc/health"
	"github.com/oshokin/relay-switch/internal/config"
	"github.com/oshokin/relay-switch/internal/domain/relay"
	"github.com/oshokin/relay-switch/internal/governor"
	"github.com/oshokin/relay-switch/internal/logger"
	"github.com/oshokin/relay-switch/internal/metrics"
	"github.com/oshokin/relay-switch/internal/realtime"
	state "github.com/oshokin/relay-switch/internal/repository/state"
	"github.com/oshokin/relay-switch/internal/stream"
)

// Option configures a Controller.
type Option func(*Controller)

// WithMetrics records pipeline and hardware metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithHealth reports pipeline health through the gRPC health server.
func WithHealth(h *health.Server) Option {
	return func(c *Controller) {
		c.health = h
	}
}

// WithRepository replaces the snapshot repository kept in the command store.
func WithRepository(repo state.Repository) Option {
	return func(c *Controller) {
		c.repo = repo
	}
}

// WithRealtime raises the pipeline goroutine to real-time priority on Run.
func WithRealtime() Option {
	return func(c *Controller) {
		c.realtime = true
	}
}

// Controller consumes the command stream and drives the relays.
type Controller struct {
	cfg      *config.Config
	tx       Transmitter
	repo     state.Repository
	metrics  *metrics.Metrics
	health   *health.Server
	realtime bool

	// states, governor and pipeline are owned by the goroutine calling Run.
	states   *relay.States
	governor *governor.Governor
	pipeline *stream.Pipeline[relay.Command, *relay.States]

	// failSafeOnce guards the all-off sequence.
	failSafeOnce sync.Once
}

// New loads the snapshot and builds the pipeline. cfg must be validated.
// When the snapshot cannot be loaded the configured relays are driven off
// before the error is returned.
func New(
	ctx context.Context,
	cfg *config.Config,
	store stream.Store,
	tx Transmitter,
	opts ...Option,
) (*Controller, error) {
	c := &Controller{cfg: cfg}

	for _, opt := range opts {
		opt(c)
	}

	c.tx = instrumented{next: tx, metrics: c.metrics}

	if c.repo == nil {
		c.repo = state.NewStoreRepository(store, cfg.Name, cfg.AddressScheme())
	}

	c.states = relay.NewStates()

	states, err := c.loadStates(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Relay states unavailable, switching every relay off", "error", err)
		c.FailSafe(ctx)

		return nil, err
	}

	c.states = states

	rec := &reconciler{
		states:    c.states,
		repo:      c.repo,
		tx:        c.tx,
		committed: c.setServing,
	}

	pipelineOpts := []stream.Option{
		stream.WithBlock(cfg.BlockTimeout),
		stream.WithObserver(c.metrics),
	}

	if !cfg.Governor.Disabled {
		c.governor = governor.New(cfg.Governor.Threshold, c.knownAddresses())
		rec.governor = c.governor

		pipelineOpts = append(pipelineOpts, stream.WithTicker(&governorTicker{
			governor: c.governor,
			tx:       c.tx,
			metrics:  c.metrics,
		}))
	}

	c.pipeline = stream.New[relay.Command, *relay.States](
		store,
		cfg.Name,
		commandMapper{scheme: cfg.AddressScheme()},
		stream.ReducerFunc[relay.Command, *relay.States](lastWriteWins),
		rec,
		pipelineOpts...,
	)

	return c, nil
}

// Run consumes the stream until ctx is done or a fatal error occurs. On a
// fatal error every known relay is driven off and the error is returned.
// Cancellation is treated as a crash: relays keep their state and the next
// start reconciles them.
func (c *Controller) Run(ctx context.Context) error {
	if c.realtime {
		if err := realtime.Raise(); err != nil {
			logger.WarnKV(ctx, "Running without real-time priority, RF timing may jitter", "error", err)
		} else {
			logger.Info(ctx, "Running with real-time priority")
		}
	}

	err := c.pipeline.Run(ctx)

	c.setNotServing()

	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		logger.InfoKV(ctx, "Pipeline stopped", "cursor", c.pipeline.Cursor().String())

		return nil
	}

	logger.ErrorKV(ctx, "Pipeline failed, switching every relay off", "error", err)
	c.FailSafe(ctx)

	return fmt.Errorf("consume %s: %w", c.cfg.Name, err)
}

// FailSafe drives every known relay off once.
func (c *Controller) FailSafe(ctx context.Context) {
	c.failSafeOnce.Do(func() {
		for _, addr := range c.knownAddresses() {
			logger.WarnKV(ctx, "Fail-safe off", "address", addr.String())
			c.tx.Send(addr, relay.Off)
		}
	})
}

// States returns a copy of the reconciled relay states.
// It must not be called concurrently with Run.
func (c *Controller) States() *relay.States {
	return c.states.Clone()
}

// ValidateCommand checks that fields form a command in the configured scheme.
func (c *Controller) ValidateCommand(fields map[string]string) error {
	_, err := relay.ParseCommand(c.cfg.AddressScheme(), fields)

	return err
}

// loadStates reads the snapshot; on first run it starts empty or, with
// seed_off, all-Off for the configured relays.
func (c *Controller) loadStates(ctx context.Context) (*relay.States, error) {
	states, err := c.repo.Load(ctx)

	switch {
	case err == nil:
		logger.InfoKV(ctx, "Relay states loaded", "relays", states.Len())

		return states, nil
	case errors.Is(err, state.ErrNotFound):
		states = relay.NewStates()

		if c.cfg.SeedOff {
			for _, addr := range c.cfg.KnownAddresses() {
				states.Set(addr, relay.Off)
			}
		}

		logger.InfoKV(ctx, "No relay states saved yet", "seeded", states.Len())

		return states, nil
	default:
		return nil, fmt.Errorf("load relay states: %w", err)
	}
}

// knownAddresses is the ordered union of configured, persisted and
// governed addresses.
func (c *Controller) knownAddresses() []relay.Address {
	var (
		seen   = make(map[relay.Address]struct{})
		result []relay.Address
	)

	add := func(addrs []relay.Address) {
		for _, addr := range addrs {
			if _, ok := seen[addr]; ok {
				continue
			}

			seen[addr] = struct{}{}
			result = append(result, addr)
		}
	}

	add(c.cfg.KnownAddresses())
	add(c.states.Addresses())

	if c.governor != nil {
		add(c.governor.Known())
	}

	return result
}

func (c *Controller) setServing() {
	if c.health != nil {
		c.health.SetServing()
	}
}

func (c *Controller) setNotServing() {
	if c.health != nil {
		c.health.SetNotServing()
	}
}
