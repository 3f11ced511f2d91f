package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/relay-switch/internal/service/updater"
)

var (
	updateOptions  = updater.Options{Restart: true}
	packageOptions updater.PackageOptions

	// selfUpdateCmd downloads and applies a published release.
	selfUpdateCmd = &cobra.Command{
		Use:   "self-update",
		Short: "Download and apply the release published in the update folder.",
		Long: `Fetches the release manifest from update_folder, downloads every file whose
SHA-512 checksum differs from the installed one, replaces it atomically and
stops running daemons so their supervisor restarts the new binary.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			updateOptions.ConfigPath = configPath

			return updater.Run(ctx, &updateOptions)
		},
	}

	// packageCmd writes the release manifest.
	packageCmd = &cobra.Command{
		Use:   "package [dir]",
		Short: "Write the release manifest for the artifacts in dir.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				packageOptions.Dir = args[0]
			}

			_, err := updater.Package(cmd.Context(), &packageOptions)

			return err
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := selfUpdateCmd.Flags()
	flags.StringVarP(&updateOptions.UpdateFolder, "update-folder", "u", "", "release URL, overrides update_folder")
	flags.StringVarP(&updateOptions.Dir, "dir", "d", "", "install directory (default: folder of this executable)")
	flags.BoolVar(&updateOptions.Restart, "restart", true, "stop running daemons after the update")

	packageCmd.Flags().StringVarP(&packageOptions.UpdateFolder, "update-folder", "u", "", "where the release will be uploaded")
}
