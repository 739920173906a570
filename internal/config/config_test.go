package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// float returns a pointer to v for optional thresholds.
func float(v float64) *float64 {
	return &v
}

// TestValidate checks required fields, defaults and format validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing channels.
	require.ErrorIs(t, Validate(new(Config)), errNoChannels)
	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)

	// Defaults.
	cfg := &Config{
		Channels: []Channel{{Name: "temp", Low: float(10), High: float(40)}},
	}

	require.NoError(t, Validate(cfg))
	require.Equal(t, SourceSimulated, cfg.Source.Kind)
	require.Equal(t, []string{"temp"}, cfg.Source.Columns)
	require.Equal(t, ReportFormatLines, cfg.Report.Format)
	require.Equal(t, "-", cfg.Report.Output)
	require.Equal(t, DefaultSampleInterval, cfg.SampleInterval)
	require.Equal(t, DefaultReportInterval, cfg.ReportInterval)
	require.Equal(t, DefaultDashboardAddress, cfg.Dashboard.Address)
	require.Equal(t, DefaultStateFilename, cfg.StateFile)

	// Bad source kind.
	cfg = &Config{
		Channels: []Channel{{Name: "gx"}},
		Source:   Source{Kind: "i2c"},
	}
	require.ErrorIs(t, Validate(cfg), errUnknownSource)

	// Broker source without broker.
	cfg = &Config{
		Channels: []Channel{{Name: "gx"}},
		Source:   Source{Kind: SourceBroker},
	}
	require.ErrorIs(t, Validate(cfg), errInvalidSetting)

	// Bad failure rate.
	cfg = &Config{
		Channels: []Channel{{Name: "gx"}},
		Source:   Source{FailureRate: 2},
	}
	require.ErrorIs(t, Validate(cfg), errInvalidSetting)

	// Bad report format.
	cfg = &Config{
		Channels: []Channel{{Name: "gx"}},
		Report:   Report{Format: "xml"},
	}
	require.ErrorIs(t, Validate(cfg), errUnknownFormat)

	// Bad dashboard address.
	cfg = &Config{
		Channels:  []Channel{{Name: "gx"}},
		Dashboard: Dashboard{Address: "no-port"},
	}
	require.Error(t, Validate(cfg))

	// Broker defaults.
	cfg = &Config{
		DeviceID: "gyro-01",
		Channels: []Channel{{Name: "gx"}},
		Broker:   Broker{Address: "127.0.0.1:6379"},
		History:  History{DSN: "postgres://localhost/telemetry"},
	}
	require.NoError(t, Validate(cfg))
	require.Equal(t, "telemetry/gyro-01", cfg.Broker.Topic)
	require.Equal(t, DefaultPublishInterval, cfg.Broker.PublishInterval)
	require.Equal(t, "sensor_readings", cfg.History.ReadingTable)
	require.Equal(t, "alarm_events", cfg.History.EventTable)
}

// TestChannelBounds converts optional thresholds into domain bounds.
func TestChannelBounds(t *testing.T) {
	t.Parallel()

	b := Channel{Name: "hum", High: float(80)}.Bounds()
	require.False(t, b.HasLow)
	require.True(t, b.HasHigh)
	require.InDelta(t, 80.0, b.High, 0)

	require.False(t, Channel{Name: "gx"}.Bounds().IsSet())
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := &Config{
		DeviceID:       "dht-11",
		SampleInterval: 250 * time.Millisecond,
		Channels: []Channel{
			{Name: "temp", Low: float(10), High: float(40), Required: true},
			{Name: "hum", High: float(80)},
		},
		Source: Source{Kind: SourceSerial, Path: "/dev/ttyACM0"},
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings.DeviceID, loaded.DeviceID)
	require.Equal(t, settings.SampleInterval, loaded.SampleInterval)
	require.Equal(t, settings.Channels, loaded.Channels)
	require.Equal(t, "/dev/ttyACM0", loaded.Source.Path)

	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

// TestValidate_AnomalyWindowDefault fills the window only for channels with detection enabled.
func TestValidate_AnomalyWindowDefault(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Channels: []Channel{
			{Name: "gx", AnomalyThreshold: 2.5, Smoothing: 0.2},
			{Name: "gy", AnomalyThreshold: 3, AnomalyWindow: 50},
			{Name: "gz"},
		},
	}

	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultAnomalyWindow, cfg.Channels[0].AnomalyWindow)
	require.Equal(t, 50, cfg.Channels[1].AnomalyWindow)
	require.Zero(t, cfg.Channels[2].AnomalyWindow)
}
