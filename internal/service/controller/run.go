package controller

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/oshokin/relay-switch/internal/api/grpc/health"
	httpapi "github.com/oshokin/relay-switch/internal/api/http"
	"github.com/oshokin/relay-switch/internal/config"
	"github.com/oshokin/relay-switch/internal/gpio"
	"github.com/oshokin/relay-switch/internal/logger"
	"github.com/oshokin/relay-switch/internal/metrics"
	"github.com/oshokin/relay-switch/internal/repository"
	"github.com/oshokin/relay-switch/internal/service/common"
	"github.com/oshokin/relay-switch/internal/transmitter/direct"
	"github.com/oshokin/relay-switch/internal/transmitter/rf"
)

// shutdownTimeout bounds the graceful stop of the HTTP server.
const shutdownTimeout = 5 * time.Second

// ErrAlreadyRunning is returned when another daemon consumes the same host's relays.
var ErrAlreadyRunning = errors.New("another relay-switch daemon is running")

// Options are the command line overrides of the daemon.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// RedisHost and RedisPort override the store address when set.
	RedisHost string
	RedisPort int
	// Name overrides the stream name.
	Name string
	// GPIOPins overrides the transmitter pins: one for rf, eight for direct.
	GPIOPins []string
	// InvertOutputs drives active-low hardware.
	InvertOutputs bool
}

// Run starts the daemon and blocks until ctx is canceled or a fatal error occurs.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "relay-switch")

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	if !cfg.AllowConcurrent {
		pids, err := common.FindDaemons(common.ExecutableName())
		if err != nil {
			logger.WarnKV(ctx, "Unable to check for other daemons", "error", err)
		} else if len(pids) > 0 {
			return fmt.Errorf("%w: pids %v", ErrAlreadyRunning, pids)
		}
	}

	backend, err := repository.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	defer func() {
		if err := backend.Close(); err != nil {
			logger.WarnKV(ctx, "Failed to close store", "error", err)
		}
	}()

	tx, err := openTransmitter(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open transmitter: %w", err)
	}

	m, err := metrics.New()
	if err != nil {
		return err
	}

	healthServer := health.NewServer()

	ctrl, err := New(ctx, cfg, backend, tx,
		WithMetrics(m),
		WithHealth(healthServer),
		WithRealtime(),
	)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Relay switch starting",
		"stream", cfg.Name,
		"scheme", cfg.AddressScheme().String(),
		"store", cfg.Store.Driver,
		"transmitter", cfg.Transmitter.Kind,
	)

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", cfg.GRPCAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.GRPCAddress, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ctrl.Run(gctx)
	})

	serveGRPC(gctx, g, lis, healthServer)

	if cfg.HTTPAddress != "" {
		handler := httpapi.NewHandler(httpapi.Options{
			Stream:   cfg.Name,
			Appender: backend,
			Validate: ctrl.ValidateCommand,
			Gatherer: m.Registry(),
			Health:   healthServer,
		})

		serveHTTP(gctx, g, httpapi.NewServer(cfg.HTTPAddress, handler))
	}

	return g.Wait()
}

// loadConfig reads the settings file, if any, and applies the overrides.
func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if opts.RedisHost != "" || opts.RedisPort != 0 {
		host, port, _ := net.SplitHostPort(cfg.Store.Address)

		if opts.RedisHost != "" {
			host = opts.RedisHost
		}

		if opts.RedisPort != 0 {
			port = strconv.Itoa(opts.RedisPort)
		}

		if port == "" {
			_, port, _ = net.SplitHostPort(config.DefaultRedisAddress)
		}

		cfg.Store.Address = net.JoinHostPort(host, port)
	}

	if opts.Name != "" {
		cfg.Name = opts.Name
	}

	// Several pins only make sense for the direct transmitter.
	switch {
	case len(opts.GPIOPins) > 1:
		cfg.Transmitter.Kind = config.TransmitterDirect
		cfg.Transmitter.Pins = opts.GPIOPins
	case len(opts.GPIOPins) == 1 && cfg.Transmitter.Kind == config.TransmitterDirect:
		cfg.Transmitter.Pins = opts.GPIOPins
	case len(opts.GPIOPins) == 1:
		cfg.Transmitter.Pin = opts.GPIOPins[0]
	}

	if opts.InvertOutputs {
		cfg.Transmitter.InvertOutputs = true
	}

	if err = config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}

	return cfg, nil
}

// openTransmitter opens the configured GPIO pins.
//
//nolint:ireturn // The concrete transmitter depends on configuration.
func openTransmitter(ctx context.Context, cfg *config.Config) (Transmitter, error) {
	tc := cfg.Transmitter

	switch tc.Kind {
	case config.TransmitterDirect:
		pins := make([]direct.Pin, 0, len(tc.Pins))

		for _, name := range tc.Pins {
			pin, err := gpio.Open(name, tc.InvertOutputs)
			if err != nil {
				return nil, err
			}

			pins = append(pins, pin)
		}

		tx, err := direct.New(pins)
		if err != nil {
			return nil, err
		}

		logger.InfoKV(ctx, "Direct transmitter ready", "pins", tc.Pins, "inverted", tc.InvertOutputs)

		return tx, nil
	default:
		pin, err := gpio.Open(tc.Pin, tc.InvertOutputs)
		if err != nil {
			return nil, err
		}

		tx := rf.New(pin, rf.WithPulseLength(tc.PulseLength), rf.WithRepeats(tc.Repeats))

		logger.InfoKV(ctx, "RF transmitter ready",
			"pin", pin.Name(),
			"pulse_length", tc.PulseLength,
			"repeats", tc.Repeats,
			"send_duration", tx.Duration(),
		)

		if tx.Duration() >= cfg.Governor.Threshold && !cfg.Governor.Disabled {
			logger.WarnKV(ctx, "One transmission outlasts the governor threshold",
				"send_duration", tx.Duration(),
				"threshold", cfg.Governor.Threshold,
			)
		}

		return tx, nil
	}
}

// serveGRPC serves the health service on lis until ctx is done.
func serveGRPC(ctx context.Context, g *errgroup.Group, lis net.Listener, healthServer *health.Server) {
	grpcServer := grpc.NewServer()
	healthServer.Register(grpcServer)

	logger.InfoKV(ctx, "Health service listening", "grpc_address", lis.Addr().String())

	g.Go(func() error {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		healthServer.Shutdown()
		grpcServer.GracefulStop()

		return nil
	})

	g.Go(func() error {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})
}

// serveHTTP serves server until ctx is done.
func serveHTTP(ctx context.Context, g *errgroup.Group, server *http.Server) {
	logger.InfoKV(ctx, "HTTP API listening", "http_address", server.Addr)

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}

		return nil
	})
}
