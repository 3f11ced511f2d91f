package publisher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/relay-switch/internal/config"
	"github.com/oshokin/relay-switch/internal/domain/relay"
	"github.com/oshokin/relay-switch/internal/logger"
	"github.com/oshokin/relay-switch/internal/repository"
	"github.com/oshokin/relay-switch/internal/service/common"
	"github.com/oshokin/relay-switch/internal/stream"
)

// defaultPushInterval is the delay between attempts after a store failure.
const defaultPushInterval = 1 * time.Second

// Options configures one publish call.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// Name overrides the stream name from the settings.
	Name string
	// Address is the relay to switch: "3", "Relay3" or "10000-B".
	Address string
	// State is "On" or "Off", case-insensitive.
	State string
	// IngressURL sends the command to a running daemon's HTTP API instead of
	// opening the store. Required for the embedded store.
	IngressURL string
}

// Run validates the command and appends it, retrying store failures until
// the configured timeout elapses.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "relay-switch-publish")

	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.Name != "" {
		cfg.Name = opts.Name
	}

	cmd, err := BuildCommand(cfg.AddressScheme(), opts.Address, opts.State)
	if err != nil {
		return err
	}

	fields := cmd.Fields()

	// The origin is informational only; a host without a resolvable user still publishes.
	if actor, err := common.DetectActor(); err == nil {
		fields[relay.FieldOrigin] = actor.String()
	} else {
		logger.DebugKV(ctx, "Unable to detect actor", "error", err)
	}

	var appender stream.Appender

	if opts.IngressURL != "" {
		appender = NewHTTPAppender(opts.IngressURL, cfg.Timeout)
	} else {
		backend, err := repository.Open(ctx, cfg.Store)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}

		defer func() {
			_ = backend.Close()
		}()

		appender = backend
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	logger.InfoKV(ctx, "Publishing relay command",
		"stream", cfg.Name,
		"address", cmd.Address.String(),
		"state", cmd.State.String(),
	)

	id, err := Publish(ctx, appender, cfg.Name, fields)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Relay command published", "stream", cfg.Name, "entry_id", id.String())

	return nil
}

// Publish appends fields to the named stream. Store failures are retried
// until ctx is done; any other error is returned at once.
func Publish(ctx context.Context, appender stream.Appender, name string, fields map[string]string) (stream.EntryID, error) {
	// attempt tries once, returns (completed, id, error).
	attempt := func() (bool, stream.EntryID, error) {
		id, err := appender.Append(ctx, name, fields)

		switch {
		case err == nil:
			return true, id, nil
		case errors.Is(err, stream.ErrStore):
			logger.ErrorKV(ctx, "Append failed", "error", err)
			return false, stream.EntryID{}, nil
		default:
			return false, stream.EntryID{}, err
		}
	}

	if done, id, err := attempt(); err != nil || done {
		return id, err
	}

	ticker := time.NewTicker(defaultPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return stream.EntryID{}, fmt.Errorf("publish to %s: %w", name, ctx.Err())
		case <-ticker.C:
			if done, id, err := attempt(); err != nil || done {
				return id, err
			}
		}
	}
}

// BuildCommand parses the command line form of a relay command. Fixed
// relays may be given by number alone.
func BuildCommand(scheme relay.Scheme, address, state string) (relay.Command, error) {
	addr, err := relay.ParseAddress(scheme, address)
	if err != nil && scheme == relay.SchemeFixed {
		if n, convErr := strconv.Atoi(address); convErr == nil {
			addr, err = relay.Fixed(n)
		}
	}

	if err != nil {
		return relay.Command{}, fmt.Errorf("parse address: %w", err)
	}

	var s relay.State

	switch {
	case strings.EqualFold(state, relay.On.String()):
		s = relay.On
	case strings.EqualFold(state, relay.Off.String()):
		s = relay.Off
	default:
		return relay.Command{}, fmt.Errorf("%w: %q", relay.ErrUnknownState, state)
	}

	return relay.Command{Address: addr, State: s}, nil
}
