package ack

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/alarm-telemetry/internal/config"
	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
	"github.com/oshokin/alarm-telemetry/internal/logger"
	pb "github.com/oshokin/alarm-telemetry/internal/pb/v1"
	"github.com/oshokin/alarm-telemetry/internal/service/common"
)

// Options configures the acknowledgement command.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides the dashboard address from config when specified.
	ServerAddress string
	// Channel is the channel to acknowledge.
	Channel string
	// List prints the properties instead of acknowledging.
	List bool
	// Watch prints the properties, then every change until cancelled.
	Watch bool
	// Out receives the property listing, stdout when nil.
	Out io.Writer
}

// defaultRetryInterval defines the delay between attempts while the agent is unreachable.
const defaultRetryInterval = 1 * time.Second

// dashboardClient is the part of common.Client the command uses.
type dashboardClient interface {
	GetProperties(ctx context.Context) (*pb.Properties, error)
	AcknowledgeAlarm(ctx context.Context, actor *telemetry.Actor, channel string) (*pb.AcknowledgeResponse, error)
	WatchProperties(ctx context.Context, handle func(*pb.Properties) error) error
}

// Run lists properties or acknowledges one channel.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "telemetry-ack")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	serverAddress := cfg.Dashboard.Address
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Dashboard.Timeout))
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	if opts.Watch {
		return watch(ctx, client, out)
	}

	if opts.List {
		return list(ctx, client, out)
	}

	// Identify current user and hostname for the audit trail.
	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Acknowledging alarm", "server_address", serverAddress, "channel", opts.Channel)

	return acknowledge(ctx, client, actor, opts.Channel, defaultRetryInterval)
}

// acknowledge retries while the agent is unavailable and stops on any other outcome.
func acknowledge(
	ctx context.Context,
	client dashboardClient,
	actor *telemetry.Actor,
	channel string,
	retryInterval time.Duration,
) error {
	// attempt tries once, returns (completed, error).
	attempt := func() (bool, error) {
		resp, err := client.AcknowledgeAlarm(ctx, actor, channel)
		if err == nil {
			logger.InfoKV(ctx, "Alarm acknowledged",
				"channel", resp.Channel,
				"actor", resp.Username+"@"+resp.Hostname,
				"at", resp.AcknowledgedAt.Format(time.RFC3339))

			return true, nil
		}

		if status.Code(err) == codes.Unavailable {
			logger.ErrorKV(ctx, "Agent unavailable, retrying", "error", err)

			return false, nil
		}

		return false, err
	}

	if done, err := attempt(); err != nil || done {
		return err
	}

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			done, err := attempt()
			if err != nil || done {
				return err
			}
		}
	}
}

// list prints one row per channel.
func list(ctx context.Context, client dashboardClient, out io.Writer) error {
	props, err := client.GetProperties(ctx)
	if err != nil {
		return err
	}

	return writeTable(out, props)
}

// watch prints the full table, then one line per changed channel.
func watch(ctx context.Context, client dashboardClient, out io.Writer) error {
	first := true

	return client.WatchProperties(ctx, func(props *pb.Properties) error {
		if first {
			first = false

			return writeTable(out, props)
		}

		at := props.UpdatedAt.Local().Format(time.DateTime)

		for _, ch := range props.Channels {
			if _, err := fmt.Fprintf(out, "%s %s=%s alarm=%t\n", at, ch.Name, valueOf(ch), ch.Latched); err != nil {
				return fmt.Errorf("write change: %w", err)
			}
		}

		return nil
	})
}

// writeTable renders the property set as an aligned table.
func writeTable(out io.Writer, props *pb.Properties) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintln(w, "CHANNEL\tVALUE\tALARM\tRANGE"); err != nil {
		return fmt.Errorf("write listing: %w", err)
	}

	for _, ch := range props.Channels {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", ch.Name, valueOf(ch), ch.Latched, boundsOf(ch)); err != nil {
			return fmt.Errorf("write listing: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("write listing: %w", err)
	}

	return nil
}

// valueOf renders the channel value, "-" before the first valid reading.
func valueOf(ch *pb.Channel) string {
	if ch.Value == nil {
		return "-"
	}

	return strconv.FormatFloat(*ch.Value, 'f', 2, 64)
}

// boundsOf rebuilds the channel thresholds for display.
func boundsOf(ch *pb.Channel) telemetry.Bounds {
	var b telemetry.Bounds

	if ch.Low != nil {
		b.Low, b.HasLow = *ch.Low, true
	}

	if ch.High != nil {
		b.High, b.HasHigh = *ch.High, true
	}

	return b
}
