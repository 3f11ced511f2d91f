package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/relay-switch/internal/domain/relay"
	"github.com/oshokin/relay-switch/internal/governor"
	"github.com/oshokin/relay-switch/internal/logger"
	"github.com/oshokin/relay-switch/internal/metrics"
	state "github.com/oshokin/relay-switch/internal/repository/state"
	"github.com/oshokin/relay-switch/internal/stream"
)

// Transmitter drives relays. Send is synchronous and has no failure mode:
// there is no feedback channel from the hardware.
type Transmitter interface {
	Send(addr relay.Address, state relay.State)
}

// commandMapper converts stream entries into relay commands.
type commandMapper struct {
	scheme relay.Scheme
}

// Map implements stream.Mapper.
func (m commandMapper) Map(_ context.Context, name string, entry stream.Entry) (relay.Command, error) {
	cmd, err := relay.ParseCommand(m.scheme, entry.Fields)
	if err != nil {
		return relay.Command{}, stream.NewMalformedEntryError(name, entry, "invalid relay command", err)
	}

	return cmd, nil
}

// lastWriteWins folds a batch into one state per address, later entries winning.
func lastWriteWins(_ context.Context, cmds []relay.Command) (*relay.States, error) {
	delta := relay.NewStates()

	for _, cmd := range cmds {
		delta.Set(cmd.Address, cmd.State)
	}

	return delta, nil
}

// reconciler applies batches to the hardware and persists the merged state.
type reconciler struct {
	// states is the authoritative in-memory copy of the snapshot.
	states *relay.States
	repo   state.Repository
	tx     Transmitter
	// governor is refreshed for every commanded address; nil when disabled.
	governor *governor.Governor
	// committed runs after every successful commit.
	committed func()
}

// Commit implements stream.Committer. A cold start re-sends every relay of
// the merged state; later commits send only the delta.
func (r *reconciler) Commit(ctx context.Context, coldStart bool, delta *relay.States) error {
	r.states.Merge(delta)

	targets := delta.Entries()
	if coldStart {
		targets = r.states.Entries()
	}

	for _, e := range targets {
		logger.InfoKV(ctx, "Set relay", "address", e.Address.String(), "state", e.State.String())
		r.tx.Send(e.Address, e.State)
	}

	if r.governor != nil {
		r.governor.Touch(delta.Addresses()...)
	}

	if err := r.repo.Save(ctx, r.states); err != nil {
		return fmt.Errorf("%w: %w", stream.ErrCommit, err)
	}

	if r.committed != nil {
		r.committed()
	}

	return nil
}

// governorTicker forces off relays the governor reports as expired.
// The persisted state is left alone: the next cold start restores it.
type governorTicker struct {
	governor *governor.Governor
	tx       Transmitter
	metrics  *metrics.Metrics
}

// Tick implements stream.Ticker.
func (g *governorTicker) Tick(ctx context.Context) error {
	for _, addr := range g.governor.Expired() {
		logger.WarnKV(ctx, "Relay not commanded recently, forcing off",
			"address", addr.String(),
			"threshold", g.governor.Threshold(),
		)
		g.tx.Send(addr, relay.Off)
		g.metrics.RelayForcedOff(addr)
	}

	return nil
}

// instrumented records every transmission.
type instrumented struct {
	next    Transmitter
	metrics *metrics.Metrics
}

// Send implements Transmitter.
func (t instrumented) Send(addr relay.Address, s relay.State) {
	started := time.Now()
	t.next.Send(addr, s)
	t.metrics.RelaySent(addr, s, time.Since(started))
}
