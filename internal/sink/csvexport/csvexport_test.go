package csvexport

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
)

// TestExporter_RoundtripAndRotation writes two days and reads both files back.
func TestExporter_RoundtripAndRotation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	exp, err := New(dir)
	require.NoError(t, err)

	day1 := time.Date(2025, 2, 21, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)

	snap := telemetry.Snapshot{
		At: day1,
		Channels: []telemetry.ChannelState{
			{Name: "temp", Value: 45.5, HasValue: true, Latched: true},
			{Name: "hum"},
		},
	}

	require.NoError(t, exp.Export(snap))

	snap.At = day1.Add(30 * time.Second)
	snap.Channels[0].Value = 46
	require.NoError(t, exp.Export(snap))

	snap.At = day2
	require.NoError(t, exp.Export(snap))
	require.NoError(t, exp.Close())

	rows, err := LoadFile(filepath.Join(dir, "2025-02-21.csv"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "temp", rows[0].Channel)
	require.InDelta(t, 45.5, rows[0].Value, 0)
	require.True(t, rows[0].Latched)
	require.True(t, rows[0].Time.Equal(day1))

	rows, err = LoadFile(filepath.Join(dir, "2025-02-22.csv"))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// Reopening appends without a second header.
	exp, err = New(dir)
	require.NoError(t, err)
	require.NoError(t, exp.Export(snap))
	require.NoError(t, exp.Close())

	rows, err = LoadFile(filepath.Join(dir, "2025-02-22.csv"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
}
