package reporter

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
)

// TestConfigureChannel_AnalysisValidation rejects out-of-range smoothing and detection settings.
func TestConfigureChannel_AnalysisValidation(t *testing.T) {
	t.Parallel()

	cases := map[string]ChannelOption{
		"zero alpha":         Smoothing(0),
		"alpha above one":    Smoothing(1.5),
		"nan alpha":          Smoothing(math.NaN()),
		"short window":       AnomalyDetection(1, 3),
		"zero threshold":     AnomalyDetection(20, 0),
		"infinite threshold": AnomalyDetection(20, math.Inf(1)),
	}

	for title, opt := range cases {
		r := New()

		err := r.ConfigureChannel("gx", telemetry.Unbounded(), opt)
		require.ErrorIs(t, err, ErrInvalidConfig, title)
		require.Empty(t, r.Channels(), title)
	}

	r := New()
	require.NoError(t, r.ConfigureChannel("gx", telemetry.Unbounded(), Smoothing(1), AnomalyDetection(2, 0.5)))
}

// TestSubmitSample_Smoothing applies the moving average and leaves latching on the raw value.
func TestSubmitSample_Smoothing(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.ConfigureChannel("temp", telemetry.Between(10, 40), Smoothing(0.25)))
	require.NoError(t, r.ConfigureChannel("hum", telemetry.Unbounded()))

	r.SubmitSample(sampleAt(0, map[string]float64{"temp": 20, "hum": 50}))

	state, _ := r.Snapshot(base).Channel("temp")
	require.InDelta(t, 20.0, state.Smoothed, 1e-9)

	res := r.SubmitSample(sampleAt(1, map[string]float64{"temp": 60, "hum": 70}))
	require.Len(t, res.Events, 1)

	temp, _ := res.Snapshot.Channel("temp")
	require.InDelta(t, 60.0, temp.Value, 0)
	require.InDelta(t, 30.0, temp.Smoothed, 1e-9)
	require.True(t, temp.Latched)

	hum, _ := res.Snapshot.Channel("hum")
	require.InDelta(t, 70.0, hum.Smoothed, 0)

	// Rejected samples leave the average alone.
	r.SubmitSample(sampleAt(2, map[string]float64{"temp": math.NaN()}))

	temp, _ = r.Snapshot(base).Channel("temp")
	require.InDelta(t, 30.0, temp.Smoothed, 1e-9)
}

// TestSubmitSample_AnomalyDetection flags outliers only once the window is full.
func TestSubmitSample_AnomalyDetection(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.ConfigureChannel("gx", telemetry.Unbounded(), AnomalyDetection(4, 2)))

	// A huge first reading is never flagged while the window fills.
	res := r.SubmitSample(sampleAt(0, map[string]float64{"gx": 1000}))
	require.Empty(t, res.Anomalies)

	for i, v := range []float64{10, 12, 10, 12} {
		res = r.SubmitSample(sampleAt(i+1, map[string]float64{"gx": v}))
		require.Empty(t, res.Anomalies)
	}

	// Window is now 10, 12, 10, 12: mean 11, deviation 1.
	res = r.SubmitSample(sampleAt(5, map[string]float64{"gx": 13}))
	require.Empty(t, res.Anomalies)

	// Window 12, 10, 12, 13: mean 11.75, deviation ~1.09.
	res = r.SubmitSample(sampleAt(6, map[string]float64{"gx": 20}))
	require.Len(t, res.Anomalies, 1)

	anomaly := res.Anomalies[0]
	require.Equal(t, "gx", anomaly.Channel)
	require.InDelta(t, 20.0, anomaly.Value, 0)
	require.InDelta(t, 11.75, anomaly.Mean, 1e-9)
	require.Greater(t, anomaly.Score, 2.0)
	require.Equal(t, base.Add(6*time.Second), anomaly.At)
	require.Equal(t, uint64(1), r.Stats().Anomalies)
	require.Empty(t, res.Events)
}

// TestSubmitSample_FlatWindowNeverAnomalous skips detection when readings do not vary.
func TestSubmitSample_FlatWindowNeverAnomalous(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.ConfigureChannel("gx", telemetry.Unbounded(), AnomalyDetection(3, 1)))

	for i := range 3 {
		r.SubmitSample(sampleAt(i, map[string]float64{"gx": 5}))
	}

	res := r.SubmitSample(sampleAt(3, map[string]float64{"gx": 500}))
	require.Empty(t, res.Anomalies)
}
