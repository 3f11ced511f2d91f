package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/relay-switch/internal/service/status"
)

var (
	statusOptions status.Options

	// statusCmd probes the daemon health service.
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the health of a running daemon.",
		Long: `Queries the gRPC health service of the daemon and prints the response as
JSON. Exits non-zero unless the pipeline is serving. With --watch it keeps
polling until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			statusOptions.ConfigPath = configPath
			statusOptions.Output = cmd.OutOrStdout()

			return status.Run(ctx, &statusOptions)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := statusCmd.Flags()
	flags.StringVarP(&statusOptions.Address, "address", "a", "", "daemon gRPC address, overrides grpc_addr")
	flags.DurationVarP(&statusOptions.Watch, "watch", "w", 0, "poll interval, 0 probes once")
}
