package reporter

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
)

// base is a fixed reference time so tests never depend on the wall clock.
var base = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// newTempReporter returns a reporter with a single "temp" channel bounded by [10, 40].
func newTempReporter(t *testing.T) *Reporter {
	t.Helper()

	r := New()
	require.NoError(t, r.ConfigureChannel("temp", telemetry.Between(10, 40)))

	return r
}

// sampleAt builds a valid sample offset from base by the given number of seconds.
func sampleAt(seconds int, values map[string]float64) telemetry.Sample {
	return telemetry.NewSample(base.Add(time.Duration(seconds)*time.Second), values)
}

// TestConfigureChannel_Validation rejects bad thresholds, empty and duplicate names.
func TestConfigureChannel_Validation(t *testing.T) {
	t.Parallel()

	r := New()

	require.NoError(t, r.ConfigureChannel("temp", telemetry.Between(10, 40)))
	require.NoError(t, r.ConfigureChannel("hum", telemetry.Below(80)))
	require.NoError(t, r.ConfigureChannel("gx", telemetry.Unbounded()))

	cases := map[string]struct {
		name   string
		bounds telemetry.Bounds
	}{
		"duplicate":     {name: "temp", bounds: telemetry.Unbounded()},
		"empty name":    {name: " ", bounds: telemetry.Unbounded()},
		"low == high":   {name: "a", bounds: telemetry.Between(5, 5)},
		"low > high":    {name: "b", bounds: telemetry.Between(6, 5)},
		"nan low":       {name: "c", bounds: telemetry.Above(math.NaN())},
		"infinite high": {name: "d", bounds: telemetry.Below(math.Inf(1))},
	}

	for title, tc := range cases {
		err := r.ConfigureChannel(tc.name, tc.bounds)
		require.ErrorIs(t, err, ErrInvalidConfig, title)

		var configErr *ConfigError
		require.ErrorAs(t, err, &configErr, title)
	}

	require.Equal(t, []string{"temp", "hum", "gx"}, r.Channels())
}

// TestSubmitSample_BoundaryIsInRange verifies exact threshold values never latch.
func TestSubmitSample_BoundaryIsInRange(t *testing.T) {
	t.Parallel()

	r := newTempReporter(t)

	for i, v := range []float64{10, 40, 10, 40} {
		res := r.SubmitSample(sampleAt(i, map[string]float64{"temp": v}))
		require.True(t, res.Accepted)
		require.Empty(t, res.Events)
	}

	latched, err := r.Latched("temp")
	require.NoError(t, err)
	require.False(t, latched)
}

// TestSubmitSample_LatchScenario walks through trip, no re-trigger, acknowledge and re-trip.
func TestSubmitSample_LatchScenario(t *testing.T) {
	t.Parallel()

	r := newTempReporter(t)

	res := r.SubmitSample(sampleAt(0, map[string]float64{"temp": 45}))
	require.True(t, res.Accepted)
	require.Len(t, res.Events, 1)
	require.Equal(t, "temp", res.Events[0].Channel)
	require.Equal(t, telemetry.SideHigh, res.Events[0].Side)
	require.InDelta(t, 45.0, res.Events[0].Value, 0)

	state, ok := res.Snapshot.Channel("temp")
	require.True(t, ok)
	require.True(t, state.Latched)

	// Further out of range, already latched.
	res = r.SubmitSample(sampleAt(1, map[string]float64{"temp": 50}))
	require.True(t, res.Accepted)
	require.Empty(t, res.Events)

	// Back in range, still latched: no auto recovery.
	res = r.SubmitSample(sampleAt(2, map[string]float64{"temp": 20}))
	require.Empty(t, res.Events)

	state, _ = res.Snapshot.Channel("temp")
	require.True(t, state.Latched)

	require.NoError(t, r.AcknowledgeAlarm("temp"))

	latched, err := r.Latched("temp")
	require.NoError(t, err)
	require.False(t, latched)

	res = r.SubmitSample(sampleAt(3, map[string]float64{"temp": 45}))
	require.Len(t, res.Events, 1)

	stats := r.Stats()
	require.Equal(t, uint64(4), stats.Accepted)
	require.Equal(t, uint64(2), stats.Events)
	require.Equal(t, uint64(1), stats.Acknowledged)
}

// TestSubmitSample_LowSide verifies the low threshold trips with SideLow.
func TestSubmitSample_LowSide(t *testing.T) {
	t.Parallel()

	r := newTempReporter(t)

	res := r.SubmitSample(sampleAt(0, map[string]float64{"temp": 9.99}))
	require.Len(t, res.Events, 1)
	require.Equal(t, telemetry.SideLow, res.Events[0].Side)
}

// TestSubmitSample_InvalidKeepsState checks NaN, faults and missing required values change nothing.
func TestSubmitSample_InvalidKeepsState(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.ConfigureChannel("temp", telemetry.Between(10, 40)))
	require.NoError(t, r.ConfigureChannel("hum", telemetry.Below(80), Required()))

	res := r.SubmitSample(sampleAt(0, map[string]float64{"temp": 45, "hum": 50}))
	require.True(t, res.Accepted)

	before := r.Snapshot(base)

	invalid := []telemetry.Sample{
		sampleAt(1, map[string]float64{"temp": math.NaN(), "hum": 90}),
		sampleAt(2, map[string]float64{"temp": 20, "hum": math.Inf(-1)}),
		sampleAt(3, map[string]float64{"temp": 5}),
		telemetry.FailedSample(base.Add(4*time.Second), "DHT read timeout"),
		{
			At: base.Add(5 * time.Second),
			Values: map[string]telemetry.Value{
				"temp": telemetry.Reading(11),
				"hum":  telemetry.Faulted("checksum mismatch"),
			},
		},
	}

	for _, sample := range invalid {
		res = r.SubmitSample(sample)
		require.False(t, res.Accepted)
		require.Empty(t, res.Events)
		require.ErrorIs(t, res.Rejection, ErrSampleRejected)
		require.Equal(t, before.Channels, res.Snapshot.Channels)
	}

	require.Equal(t, before.Channels, r.Snapshot(base).Channels)
	require.Equal(t, uint64(len(invalid)), r.Stats().Rejected)

	var rejection *RejectionError
	require.ErrorAs(t, res.Rejection, &rejection)
	require.Equal(t, "hum", rejection.Channel)
	require.Equal(t, "checksum mismatch", rejection.Reason)
}

// TestSubmitSample_NaNScenario keeps the stored value when a NaN reading arrives.
func TestSubmitSample_NaNScenario(t *testing.T) {
	t.Parallel()

	r := newTempReporter(t)
	r.SubmitSample(sampleAt(0, map[string]float64{"temp": 21.5}))

	res := r.SubmitSample(sampleAt(1, map[string]float64{"temp": math.NaN()}))
	require.False(t, res.Accepted)

	state, ok := res.Snapshot.Channel("temp")
	require.True(t, ok)
	require.True(t, state.HasValue)
	require.InDelta(t, 21.5, state.Value, 0)
}

// TestSubmitSample_PartialAndUnknown accepts partial samples and reports unknown names.
func TestSubmitSample_PartialAndUnknown(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.ConfigureChannel("gx", telemetry.Unbounded()))
	require.NoError(t, r.ConfigureChannel("gy", telemetry.Unbounded()))

	res := r.SubmitSample(sampleAt(0, map[string]float64{"gx": 1.5, "zz": 3, "aa": 4}))
	require.True(t, res.Accepted)
	require.Equal(t, []string{"aa", "zz"}, res.Ignored)

	gx, _ := res.Snapshot.Channel("gx")
	gy, _ := res.Snapshot.Channel("gy")

	require.True(t, gx.HasValue)
	require.False(t, gy.HasValue)
}

// TestSubmitSample_UnknownInvalidIgnored does not reject samples for channels nobody configured.
func TestSubmitSample_UnknownInvalidIgnored(t *testing.T) {
	t.Parallel()

	r := newTempReporter(t)

	res := r.SubmitSample(sampleAt(0, map[string]float64{"temp": 20, "other": math.NaN()}))
	require.True(t, res.Accepted)
	require.Equal(t, []string{"other"}, res.Ignored)
}

// TestAcknowledgeAlarm_Unknown never mutates state for unregistered names.
func TestAcknowledgeAlarm_Unknown(t *testing.T) {
	t.Parallel()

	r := newTempReporter(t)
	r.SubmitSample(sampleAt(0, map[string]float64{"temp": 45}))

	before := r.Snapshot(base)

	err := r.AcknowledgeAlarm("pressure")
	require.ErrorIs(t, err, ErrUnknownChannel)
	require.Equal(t, before, r.Snapshot(base))
	require.Zero(t, r.Stats().Acknowledged)
}

// TestAcknowledgeAlarm_ClearsRegardlessOfValue clears the latch while the value is still out of range.
func TestAcknowledgeAlarm_ClearsRegardlessOfValue(t *testing.T) {
	t.Parallel()

	r := newTempReporter(t)
	r.SubmitSample(sampleAt(0, map[string]float64{"temp": 100}))

	require.NoError(t, r.AcknowledgeAlarm("temp"))

	state, _ := r.Snapshot(base).Channel("temp")
	require.False(t, state.Latched)
	require.InDelta(t, 100.0, state.Value, 0)

	// Acknowledging an unlatched channel is fine too.
	require.NoError(t, r.AcknowledgeAlarm("temp"))
}

// TestRestoreLatch re-arms a latch silently and blocks the next event.
func TestRestoreLatch(t *testing.T) {
	t.Parallel()

	r := newTempReporter(t)

	require.NoError(t, r.RestoreLatch("temp"))
	require.ErrorIs(t, r.RestoreLatch("nope"), ErrUnknownChannel)

	res := r.SubmitSample(sampleAt(0, map[string]float64{"temp": 45}))
	require.Empty(t, res.Events)
	require.Zero(t, r.Stats().Events)
}

// TestReportDue covers the first report, the interval boundary and MarkReported.
func TestReportDue(t *testing.T) {
	t.Parallel()

	r := New()
	interval := 500 * time.Millisecond

	require.True(t, r.IsReportDue(base, interval))

	r.MarkReported(base)
	require.False(t, r.IsReportDue(base, interval))
	require.False(t, r.IsReportDue(base.Add(499*time.Millisecond), interval))
	require.True(t, r.IsReportDue(base.Add(500*time.Millisecond), interval))
	require.True(t, r.IsReportDue(base.Add(time.Second), interval))

	now := base.Add(time.Second)
	r.MarkReported(now)
	require.False(t, r.IsReportDue(now, interval))

	// A clock stepping backwards is never due.
	require.False(t, r.IsReportDue(base, interval))
}

// TestCadence_Independent ensures separate cadences do not share state.
func TestCadence_Independent(t *testing.T) {
	t.Parallel()

	var serial, broker Cadence

	serial.Mark(base)
	require.False(t, serial.Due(base, time.Second))
	require.True(t, broker.Due(base, time.Second))

	_, ok := broker.Last()
	require.False(t, ok)

	last, ok := serial.Last()
	require.True(t, ok)
	require.Equal(t, base, last)

	require.True(t, ReportDue(base, base.Add(time.Second), time.Second))
	require.False(t, ReportDue(base, base.Add(time.Second-1), time.Second))
}
