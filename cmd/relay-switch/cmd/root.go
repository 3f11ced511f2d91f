package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/relay-switch/internal/config"
	"github.com/oshokin/relay-switch/internal/logger"
	"github.com/oshokin/relay-switch/internal/service/controller"
	"github.com/oshokin/relay-switch/internal/version"
)

var (
	// configPath to the configuration YAML file, shared by every subcommand.
	configPath string
	// verbosity raises the log level to debug when positive.
	verbosity int
	// quiet lowers the log level to errors only.
	quiet bool

	daemonOptions controller.Options

	// rootCmd runs the relay daemon.
	rootCmd = &cobra.Command{
		Use:   "relay-switch",
		Short: "Drive relays from a persistent command stream.",
		Long: `Consumes relay commands from a stream in Redis or an embedded store and
drives the relays through a 433 MHz Tri-State transmitter or one GPIO pin
per relay.

Every batch is folded last-write-wins, applied to the hardware and
persisted together with the stream cursor, so a restart resumes where it
stopped and re-sends the last known state of every relay. On a fatal error
every known relay is switched off before the process exits.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			daemonOptions.ConfigPath = configPath

			return controller.Run(ctx, &daemonOptions)
		},
	}
)

// Execute runs the relay-switch CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging applies -v/-q, falling back to log_level from the settings.
func setupLogging(_ *cobra.Command, _ []string) error {
	if verbosity > 0 || quiet {
		logger.SetLevel(logger.LevelFromVerbosity(verbosity, quiet))
		return nil
	}

	// A broken settings file is reported by the command itself.
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil //nolint:nilerr // See above.
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	pflags := rootCmd.PersistentFlags()
	pflags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	pflags.CountVarP(&verbosity, "verbose", "v", "enable debug logging")
	pflags.BoolVarP(&quiet, "quiet", "q", false, "log errors only")

	flags := rootCmd.Flags()
	flags.StringVar(&daemonOptions.RedisHost, "redis-host", "", "redis host, overrides store.address")
	flags.IntVar(&daemonOptions.RedisPort, "redis-port", 0, "redis port, overrides store.address")
	flags.StringVarP(&daemonOptions.Name, "name", "n", "", "stream name (default \""+config.DefaultName+"\")")
	flags.StringArrayVarP(&daemonOptions.GPIOPins, "gpio-pin", "p", nil,
		"GPIO pin of the transmitter; repeat eight times for one pin per relay")
	flags.BoolVar(&daemonOptions.InvertOutputs, "invert-outputs", false, "drive active-low outputs")

	rootCmd.AddCommand(publishCmd, statusCmd, selfUpdateCmd, packageCmd)
}
