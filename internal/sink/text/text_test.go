package text

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
)

var errBrokenPipe = errors.New("broken pipe")

// failingWriter always fails to write.
type failingWriter struct{}

// Write implements io.Writer and always returns errBrokenPipe.
func (failingWriter) Write([]byte) (int, error) {
	return 0, errBrokenPipe
}

// snapshot returns a two-channel snapshot with one latched and one empty channel.
func snapshot() telemetry.Snapshot {
	return telemetry.Snapshot{
		At: time.Unix(10, 0),
		Channels: []telemetry.ChannelState{
			{Name: "temp", Value: 45, HasValue: true, Latched: true},
			{Name: "hum"},
		},
	}
}

// TestWriter_Lines renders the default format.
func TestWriter_Lines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, NewWriter(&buf, "").Report(snapshot()))
	require.Equal(t, "temp=45.00 alarm=true\nhum=- alarm=false\n", buf.String())
}

// TestWriter_CSV renders one row of values and alarm flags per report.
func TestWriter_CSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	w := NewWriter(&buf, FormatCSV)
	require.NoError(t, w.Report(snapshot()))
	require.NoError(t, w.Report(telemetry.Snapshot{
		Channels: []telemetry.ChannelState{
			{Name: "gx", Value: 0.126, HasValue: true},
			{Name: "gy", Value: -12.3, HasValue: true},
			{Name: "gz", Value: 9.81, HasValue: true, Latched: true},
		},
	}))
	require.Equal(t, "45.00,-,1,0\n0.13,-12.30,9.81,0,0,1\n", buf.String())
}

// TestWriter_PropagatesErrors surfaces write failures.
func TestWriter_PropagatesErrors(t *testing.T) {
	t.Parallel()

	err := NewWriter(failingWriter{}, FormatLines).Report(snapshot())
	require.ErrorIs(t, err, errBrokenPipe)
}
