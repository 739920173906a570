package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-telemetry/internal/config"
	"github.com/oshokin/alarm-telemetry/internal/service/ack"
	"github.com/oshokin/alarm-telemetry/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the dashboard address.
	serverAddress string
	// listOnly prints properties instead of acknowledging.
	listOnly bool
	// watchChanges follows property changes instead of acknowledging.
	watchChanges bool

	// errChannelArgument is returned when neither a channel nor --list or --watch is given.
	errChannelArgument = errors.New("a channel to acknowledge, --list or --watch is required")

	// rootCmd represents the base command for acknowledging alarms.
	rootCmd = &cobra.Command{
		Use:   "telemetry-ack [channel]",
		Short: "Acknowledge a latched alarm on the telemetry agent.",
		Long: `Clears the alarm latch of one channel on a running telemetry agent.

The latch is cleared regardless of the current value; if the value is still out of
range, the next sample latches the channel again. Requests are retried while the
agent is unreachable. Use --list to print every channel with its value and alarm,
or --watch to keep printing channels as their value or alarm changes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var channel string
			if len(args) > 0 {
				channel = args[0]
			}

			if channel == "" && !listOnly && !watchChanges {
				return errChannelArgument
			}

			return ack.Run(ctx, &ack.Options{
				ConfigPath:    cfgPath,
				ServerAddress: serverAddress,
				Channel:       channel,
				List:          listOnly,
				Watch:         watchChanges,
			})
		},
	}
)

// Execute runs the telemetry-ack CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&serverAddress, "server", "a", "", "dashboard address (overrides dashboard.address)")
	rootCmd.Flags().BoolVarP(&listOnly, "list", "l", false, "list channels instead of acknowledging")
	rootCmd.Flags().BoolVarP(&watchChanges, "watch", "w", false, "follow channel changes instead of acknowledging")
}
