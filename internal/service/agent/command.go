package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	api "github.com/oshokin/alarm-telemetry/internal/api/grpc/dashboard"
	"github.com/oshokin/alarm-telemetry/internal/config"
	"github.com/oshokin/alarm-telemetry/internal/logger"
	"github.com/oshokin/alarm-telemetry/internal/metrics"
	pb "github.com/oshokin/alarm-telemetry/internal/pb/v1"
	repository "github.com/oshokin/alarm-telemetry/internal/repository/latch"
	"github.com/oshokin/alarm-telemetry/internal/service/instance"
	"github.com/oshokin/alarm-telemetry/internal/sink/broker"
	"github.com/oshokin/alarm-telemetry/internal/sink/csvexport"
	"github.com/oshokin/alarm-telemetry/internal/sink/history"
	"github.com/oshokin/alarm-telemetry/internal/sink/text"
	"github.com/oshokin/alarm-telemetry/internal/source"
)

// Executable is the base name of the agent binary.
const Executable = "telemetry-agent"

// Options controls the telemetry-agent process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the dashboard listen address.
	ListenAddress string
	// StateFile overrides the path of the latch file.
	StateFile string
	// AllowMultiple skips the single-instance check.
	AllowMultiple bool
}

// Run starts the dashboard API, the metrics endpoint and the polling loop.
// It blocks until ctx is cancelled or the source is exhausted.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, Executable)

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.SetLevel(level)
	} else {
		logger.WarnKV(ctx, "Unknown log level, keeping default", "log_level", settings.LogLevel)
	}

	if !opts.AllowMultiple {
		if err = instance.EnsureSingle(Executable); err != nil {
			return err
		}
	}

	stateFile := settings.StateFile
	if opts.StateFile != "" {
		stateFile = opts.StateFile
	}

	listenAddress, err := resolveListenAddress(settings.Dashboard.Address, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := metrics.New(registry)

	svc, err := newService(ctx, settings, repository.NewFileRepository(stateFile), m)
	if err != nil {
		return fmt.Errorf("initialise service: %w", err)
	}

	var redisClient *redis.Client
	if settings.Broker.Address != "" {
		redisClient, err = connectBroker(ctx, &settings.Broker)
		if err != nil {
			return err
		}

		defer closeQuietly(ctx, "broker client", redisClient)
	}

	src, err := openSource(ctx, settings, redisClient)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}

	defer closeQuietly(ctx, "source", src)

	p, closers, err := newPoller(ctx, settings, svc, src, m, redisClient)
	if err != nil {
		return err
	}

	defer func() {
		for _, c := range closers {
			closeQuietly(ctx, "sink", c)
		}
	}()

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	grpcServer := grpc.NewServer()
	pb.RegisterDashboardServiceServer(grpcServer, api.NewServer(svc))

	logger.InfoKV(ctx, "Telemetry agent started",
		"device_id", settings.DeviceID,
		"source", settings.Source.Kind,
		"channels", settings.ChannelNames(),
		"listen_address", listenAddress,
		"state_file", stateFile)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		errs = make(chan error, 2)
	)

	wg.Go(func() {
		if serveErr := serveDashboard(runCtx, grpcServer, lis, svc.StopWatches); serveErr != nil {
			errs <- serveErr

			cancel()
		}
	})

	if settings.Metrics.Address != "" {
		wg.Go(func() {
			if serveErr := metrics.Serve(runCtx, settings.Metrics.Address, registry); serveErr != nil {
				errs <- serveErr

				cancel()
			}
		})
	}

	pollErr := p.run(runCtx)

	cancel()
	wg.Wait()
	close(errs)

	result := []error{pollErr}
	for serveErr := range errs {
		result = append(result, serveErr)
	}

	stats := svc.Stats()
	logger.InfoKV(ctx, "Telemetry agent stopped",
		"accepted", stats.Accepted,
		"rejected", stats.Rejected,
		"events", stats.Events,
		"acknowledged", stats.Acknowledged)

	return errors.Join(result...)
}

// serveDashboard serves the gRPC API until ctx is cancelled.
// stopStreams ends long-lived streams so GracefulStop does not wait on them.
func serveDashboard(ctx context.Context, grpcServer *grpc.Server, lis net.Listener, stopStreams func()) error {
	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		stopStreams()
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// connectBroker creates a Redis client and checks it answers.
func connectBroker(ctx context.Context, settings *config.Broker) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     settings.Address,
		Password: settings.Password,
		DB:       settings.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, config.DefaultTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping broker %s: %w", settings.Address, err)
	}

	return client, nil
}

// openSource builds the configured input collaborator.
func openSource(ctx context.Context, settings *config.Config, client *redis.Client) (source.Source, error) {
	switch settings.Source.Kind {
	case config.SourceSerial:
		var opts []source.SerialOption
		if settings.Source.DeviceClockColumn {
			opts = append(opts, source.WithDeviceClockColumn())
		}

		serial, err := source.OpenSerial(settings.Source.Path, settings.Source.Columns, opts...)
		if err != nil {
			return nil, err
		}

		return serial, nil
	case config.SourceBroker:
		b, err := source.NewBroker(ctx, client, settings.Source.TopicPrefix, settings.ChannelNames())
		if err != nil {
			return nil, err
		}

		return b, nil
	default:
		channels := make([]source.SimulatedChannel, 0, len(settings.Channels))
		for _, ch := range settings.Channels {
			channels = append(channels, source.SimulatedChannel{Name: ch.Name, Bounds: ch.Bounds()})
		}

		seed := settings.Source.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}

		return source.NewSimulated(channels, seed, settings.Source.FailureRate), nil
	}
}

// newPoller wires the configured sinks. The returned closers release them.
func newPoller(
	ctx context.Context,
	settings *config.Config,
	svc *service,
	src source.Source,
	m *metrics.Metrics,
	client *redis.Client,
) (*poller, []io.Closer, error) {
	var closers []io.Closer

	fail := func(err error) (*poller, []io.Closer, error) {
		for _, c := range closers {
			closeQuietly(ctx, "sink", c)
		}

		return nil, nil, err
	}

	out := io.Writer(os.Stdout)
	if settings.Report.Output != "-" {
		f, err := os.OpenFile(filepath.Clean(settings.Report.Output),
			os.O_CREATE|os.O_APPEND|os.O_WRONLY, config.DefaultFilePermissions)
		if err != nil {
			return fail(fmt.Errorf("open report output: %w", err))
		}

		closers = append(closers, f)
		out = f
	}

	p := &poller{
		svc:             svc,
		source:          src,
		metrics:         m,
		sampleInterval:  settings.SampleInterval,
		report:          text.NewWriter(out, settings.Report.Format),
		publishInterval: settings.Broker.PublishInterval,
	}

	if settings.Report.ExportDir != "" {
		exporter, err := csvexport.New(settings.Report.ExportDir)
		if err != nil {
			return fail(fmt.Errorf("open csv export: %w", err))
		}

		closers = append(closers, exporter)
		p.export = exporter
	}

	if client != nil {
		p.publisher = broker.NewPublisher(client, settings.Broker.Topic,
			broker.WithLatestTTL(settings.Broker.LatestTTL))
	}

	if settings.History.DSN != "" {
		db, err := history.Connect(ctx, settings.History.DSN)
		if err != nil {
			return fail(err)
		}

		store, err := history.New(db, settings.DeviceID, settings.History.ReadingTable, settings.History.EventTable)
		if err != nil {
			_ = db.Close()

			return fail(err)
		}

		closers = append(closers, store)

		if err = store.InitSchema(ctx); err != nil {
			return fail(err)
		}

		p.history = store
	}

	return p, closers, nil
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid dashboard address format %q: %w", configAddr, err)
	}

	return ":" + port, nil
}

// closeQuietly closes c and logs a failure.
func closeQuietly(ctx context.Context, what string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.WarnKV(ctx, "Close failed", "resource", what, "error", err)
	}
}
