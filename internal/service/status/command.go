package status

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/oshokin/relay-switch/internal/config"
	"github.com/oshokin/relay-switch/internal/logger"
	"github.com/oshokin/relay-switch/internal/service/common"
)

// ErrNotServing is returned when the pipeline reports anything but SERVING.
var ErrNotServing = errors.New("pipeline is not serving")

// Options controls the status probe.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// Address overrides the daemon gRPC address from the settings.
	Address string
	// Watch, when positive, keeps polling at this interval until canceled.
	Watch time.Duration
	// Output receives one JSON line per probe. Defaults to stdout.
	Output io.Writer
	// DialOptions are extra gRPC dial options, e.g. an in-memory dialer in tests.
	DialOptions []grpc.DialOption
}

// Run queries the daemon once, or repeatedly with Watch set.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "relay-switch-status")

	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	address := cfg.GRPCAddress
	if opts.Address != "" {
		address = opts.Address
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	client, err := common.Dial(ctx, address,
		common.WithCallTimeout(cfg.Timeout),
		common.WithDialOptions(opts.DialOptions...),
	)
	if err != nil {
		return fmt.Errorf("dial daemon: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	if opts.Watch <= 0 {
		return probe(ctx, client, output)
	}

	logger.InfoKV(ctx, "Watching pipeline health", "grpc_address", address, "interval", opts.Watch.String())

	ticker := time.NewTicker(opts.Watch)
	defer ticker.Stop()

	for {
		if err = probe(ctx, client, output); err != nil {
			logger.ErrorKV(ctx, "Health probe failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// probe prints one health response and reports whether the pipeline serves.
func probe(ctx context.Context, client *common.Client, output io.Writer) error {
	resp, err := client.Check(ctx)
	if err != nil {
		return err
	}

	line, err := protojson.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode health response: %w", err)
	}

	if _, err = fmt.Fprintln(output, string(line)); err != nil {
		return fmt.Errorf("write health response: %w", err)
	}

	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", ErrNotServing, resp.GetStatus())
	}

	return nil
}
