package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-telemetry/internal/config"
	"github.com/oshokin/alarm-telemetry/internal/service/agent"
	"github.com/oshokin/alarm-telemetry/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateFile path where latched channels are persisted.
	stateFile string
	// allowMultiple skips the single-instance check.
	allowMultiple bool

	// rootCmd represents the base command for running the agent.
	rootCmd = &cobra.Command{
		Use:   "telemetry-agent [listen-address]",
		Short: "Sample sensors, latch threshold alarms and report telemetry.",
		Long: `Starts the telemetry agent that polls the configured source once per sample interval.

Every valid sample updates the channel table; a value outside its thresholds latches
the channel alarm until it is acknowledged with telemetry-ack. Reports are written on
a fixed interval to the text output and optionally to CSV files, a Redis broker and
TimescaleDB. The dashboard gRPC API listens on the port of dashboard.address unless a
listen address is given as argument (e.g., :9090, 0.0.0.0:50061).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return agent.Run(ctx, &agent.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				StateFile:     stateFile,
				AllowMultiple: allowMultiple,
			})
		},
	}
)

// Execute runs the telemetry-agent CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().
		StringVarP(&stateFile, "state-file", "s", "", "path to persist latched channels (overrides state_file)")
	rootCmd.Flags().
		BoolVar(&allowMultiple, "allow-multiple", false, "start even if another agent is running")
}
