package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the telemetry binaries.
type Config struct {
	// DeviceID names the device in logs, broker payloads and history rows.
	DeviceID string `yaml:"device_id"`
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// SampleInterval is the period between read attempts.
	SampleInterval time.Duration `yaml:"sample_interval"`
	// ReportInterval is the period between text reports.
	ReportInterval time.Duration `yaml:"report_interval"`
	// StateFile is the path to the JSON file storing latched channels.
	StateFile string `yaml:"state_file"`
	// RestoreLatches re-arms latches saved by a previous run.
	RestoreLatches bool `yaml:"restore_latches"`
	// Channels is the static channel table.
	Channels []Channel `yaml:"channels"`
	// Source selects and configures the input collaborator.
	Source Source `yaml:"source"`
	// Report configures the text report sink.
	Report Report `yaml:"report"`
	// Dashboard configures the gRPC dashboard API.
	Dashboard Dashboard `yaml:"dashboard"`
	// Broker configures the Redis publisher; empty address disables it.
	Broker Broker `yaml:"broker"`
	// History configures the Timescale sink; empty DSN disables it.
	History History `yaml:"history"`
	// Metrics configures the Prometheus endpoint; empty address disables it.
	Metrics Metrics `yaml:"metrics"`
}

// Channel is one monitored quantity.
type Channel struct {
	Name     string   `yaml:"name"`
	Low      *float64 `yaml:"low,omitempty"`
	High     *float64 `yaml:"high,omitempty"`
	Required bool     `yaml:"required,omitempty"`
	// Smoothing is the weight of the newest reading in the moving average; 0 disables it.
	Smoothing float64 `yaml:"smoothing,omitempty"`
	// AnomalyThreshold is the z-score above which a reading is flagged; 0 disables detection.
	AnomalyThreshold float64 `yaml:"anomaly_threshold,omitempty"`
	// AnomalyWindow is the number of previous readings compared against.
	AnomalyWindow int `yaml:"anomaly_window,omitempty"`
}

// Source selects the input collaborator.
type Source struct {
	// Kind is one of SourceSimulated, SourceSerial or SourceBroker.
	Kind string `yaml:"kind"`
	// Path is the serial device or file to read, "-" for stdin.
	Path string `yaml:"path,omitempty"`
	// Columns maps CSV columns to channel names; defaults to channel order.
	Columns []string `yaml:"columns,omitempty"`
	// DeviceClockColumn marks a leading t_device_ms column on every line.
	DeviceClockColumn bool `yaml:"device_clock_column,omitempty"`
	// Seed makes the simulated source reproducible.
	Seed int64 `yaml:"seed,omitempty"`
	// FailureRate is the share of simulated reads that fail, in [0, 1].
	FailureRate float64 `yaml:"failure_rate,omitempty"`
	// TopicPrefix is prepended to channel names for broker subscriptions.
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

// Report configures the text report sink.
type Report struct {
	// Format is ReportFormatLines or ReportFormatCSV.
	Format string `yaml:"format"`
	// Output is a file path, "-" for stdout.
	Output string `yaml:"output"`
	// ExportDir enables daily CSV exports when not empty.
	ExportDir string `yaml:"export_dir,omitempty"`
}

// Dashboard configures the gRPC dashboard API.
type Dashboard struct {
	// Address is the host:port clients dial; the agent listens on its port.
	Address string `yaml:"address"`
	// Timeout bounds client calls.
	Timeout time.Duration `yaml:"timeout"`
}

// Broker configures the Redis publisher and the broker source.
type Broker struct {
	Address         string        `yaml:"address,omitempty"`
	Password        string        `yaml:"password,omitempty"`
	DB              int           `yaml:"db,omitempty"`
	Topic           string        `yaml:"topic,omitempty"`
	PublishInterval time.Duration `yaml:"publish_interval,omitempty"`
	LatestTTL       time.Duration `yaml:"latest_ttl,omitempty"`
}

// History configures the Timescale sink.
type History struct {
	DSN          string `yaml:"dsn,omitempty"`
	ReadingTable string `yaml:"reading_table,omitempty"`
	EventTable   string `yaml:"event_table,omitempty"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Address string `yaml:"address,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for agent settings.
	DefaultConfigFilename = "telemetry-settings.yaml"

	// DefaultStateFilename is the default filename for latched channels.
	DefaultStateFilename = "telemetry-latches.json"

	// DefaultSampleInterval matches the one-second loop of the sensor sketches.
	DefaultSampleInterval = time.Second

	// DefaultReportInterval is the default text report period.
	DefaultReportInterval = 2 * time.Second

	// DefaultPublishInterval is the default broker publish period.
	DefaultPublishInterval = 500 * time.Millisecond

	// DefaultLatestTTL is how long the latest broker payload stays cached.
	DefaultLatestTTL = time.Minute

	// DefaultAnomalyWindow is the number of readings anomaly detection compares against.
	DefaultAnomalyWindow = 20

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultDashboardAddress is where the dashboard API listens by default.
	DefaultDashboardAddress = "127.0.0.1:50061"

	// DefaultFilePermissions is the default file permission for written files.
	DefaultFilePermissions = 0o600

	// SourceSimulated generates readings in-process.
	SourceSimulated = "simulated"
	// SourceSerial reads comma-separated lines from a device, file or stdin.
	SourceSerial = "serial"
	// SourceBroker assembles samples from per-channel broker topics.
	SourceBroker = "broker"

	// ReportFormatLines writes "name=value alarm=bool" lines.
	ReportFormatLines = "lines"
	// ReportFormatCSV writes one comma-separated line per report.
	ReportFormatCSV = "csv"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNoChannels is returned when the channel table is empty.
	errNoChannels = errors.New("at least one channel must be configured")
	// errUnknownSource is returned for an unsupported source kind.
	errUnknownSource = errors.New("unknown source kind")
	// errUnknownFormat is returned for an unsupported report format.
	errUnknownFormat = errors.New("unknown report format")
	// errInvalidSetting is returned for out-of-range numeric settings.
	errInvalidSetting = errors.New("invalid setting")
)

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks structural settings and fills defaults.
// Threshold semantics are checked by the reporter when channels are registered.
//
//nolint:cyclop // A flat list of checks reads better than helpers here.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if len(cfg.Channels) == 0 {
		return errNoChannels
	}

	if cfg.DeviceID == "" {
		cfg.DeviceID = "device"
	}

	for i := range cfg.Channels {
		if cfg.Channels[i].AnomalyThreshold > 0 && cfg.Channels[i].AnomalyWindow == 0 {
			cfg.Channels[i].AnomalyWindow = DefaultAnomalyWindow
		}
	}

	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = DefaultSampleInterval
	}

	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = DefaultReportInterval
	}

	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFilename
	}

	if err := validateSource(cfg); err != nil {
		return err
	}

	switch cfg.Report.Format {
	case "":
		cfg.Report.Format = ReportFormatLines
	case ReportFormatLines, ReportFormatCSV:
	default:
		return fmt.Errorf("%w: %q", errUnknownFormat, cfg.Report.Format)
	}

	if cfg.Report.Output == "" {
		cfg.Report.Output = "-"
	}

	if cfg.Dashboard.Address == "" {
		cfg.Dashboard.Address = DefaultDashboardAddress
	}

	if _, _, err := net.SplitHostPort(cfg.Dashboard.Address); err != nil {
		return fmt.Errorf("invalid dashboard address: %w", err)
	}

	if cfg.Dashboard.Timeout <= 0 {
		cfg.Dashboard.Timeout = DefaultTimeout
	}

	if cfg.Broker.Address != "" {
		if _, _, err := net.SplitHostPort(cfg.Broker.Address); err != nil {
			return fmt.Errorf("invalid broker address: %w", err)
		}

		if cfg.Broker.Topic == "" {
			cfg.Broker.Topic = "telemetry/" + cfg.DeviceID
		}

		if cfg.Broker.PublishInterval <= 0 {
			cfg.Broker.PublishInterval = DefaultPublishInterval
		}

		if cfg.Broker.LatestTTL <= 0 {
			cfg.Broker.LatestTTL = DefaultLatestTTL
		}
	}

	if cfg.History.DSN != "" {
		if cfg.History.ReadingTable == "" {
			cfg.History.ReadingTable = "sensor_readings"
		}

		if cfg.History.EventTable == "" {
			cfg.History.EventTable = "alarm_events"
		}
	}

	return nil
}

// validateSource checks the input collaborator settings.
func validateSource(cfg *Config) error {
	source := &cfg.Source

	switch source.Kind {
	case "":
		source.Kind = SourceSimulated
	case SourceSimulated, SourceSerial:
	case SourceBroker:
		if cfg.Broker.Address == "" {
			return fmt.Errorf("%w: broker source needs broker.address", errInvalidSetting)
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownSource, source.Kind)
	}

	if source.Kind == SourceSerial && source.Path == "" {
		source.Path = "-"
	}

	if source.FailureRate < 0 || source.FailureRate > 1 {
		return fmt.Errorf("%w: failure_rate %g outside [0, 1]", errInvalidSetting, source.FailureRate)
	}

	if len(source.Columns) == 0 {
		source.Columns = cfg.ChannelNames()
	}

	for _, column := range source.Columns {
		if strings.TrimSpace(column) == "" {
			return fmt.Errorf("%w: empty column name", errInvalidSetting)
		}
	}

	return nil
}

// ChannelNames returns channel names in configuration order.
func (c *Config) ChannelNames() []string {
	names := make([]string, 0, len(c.Channels))
	for _, ch := range c.Channels {
		names = append(names, ch.Name)
	}

	return names
}
