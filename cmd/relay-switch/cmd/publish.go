package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/relay-switch/internal/service/publisher"
)

var (
	publishOptions publisher.Options

	// publishCmd appends one command to the stream.
	publishCmd = &cobra.Command{
		Use:   "publish <relay> <On|Off>",
		Short: "Append a relay command to the stream.",
		Long: `Appends one command to the command stream. The relay is a number (3),
a fixed name (Relay3) or a Tri-State address (10000-B), depending on the
configured scheme.

With an embedded store only the daemon can open the store; pass --ingress
with the daemon's http_addr to publish through its HTTP API.`,
		Example: `  relay-switch publish 3 On
  relay-switch publish 10000-B off --ingress 127.0.0.1:8080`,
		Args: cobra.ExactArgs(2), //nolint:mnd // Address and state.
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			publishOptions.ConfigPath = configPath
			publishOptions.Address = args[0]
			publishOptions.State = args[1]

			return publisher.Run(ctx, &publishOptions)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := publishCmd.Flags()
	flags.StringVarP(&publishOptions.Name, "name", "n", "", "stream name, overrides the settings")
	flags.StringVar(&publishOptions.IngressURL, "ingress", "", "daemon HTTP address to publish through")
}
