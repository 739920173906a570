package telemetry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestBoundsViolation checks strict comparisons and one-sided bounds.
func TestBoundsViolation(t *testing.T) {
	t.Parallel()

	b := Between(10, 40)

	_, violated := b.Violation(10)
	require.False(t, violated)

	_, violated = b.Violation(40)
	require.False(t, violated)

	side, violated := b.Violation(40.01)
	require.True(t, violated)
	require.Equal(t, SideHigh, side)

	side, violated = b.Violation(-1)
	require.True(t, violated)
	require.Equal(t, SideLow, side)

	_, violated = Above(0).Violation(1e9)
	require.False(t, violated)

	_, violated = Unbounded().Violation(math.MaxFloat64)
	require.False(t, violated)

	require.False(t, Unbounded().IsSet())
	require.True(t, Below(3).IsSet())
	require.Equal(t, "[-inf, 80]", Below(80).String())
	require.Equal(t, "[10, 40]", b.String())
}

// TestValueValid verifies faults and non-finite numbers are invalid.
func TestValueValid(t *testing.T) {
	t.Parallel()

	require.True(t, Reading(0).Valid())
	require.False(t, Reading(math.NaN()).Valid())
	require.False(t, Reading(math.Inf(1)).Valid())
	require.False(t, Faulted("").Valid())
	require.Equal(t, "sensor fault", Faulted("").Fault)
}

// TestSampleClone verifies Clone copies the values map.
func TestSampleClone(t *testing.T) {
	t.Parallel()

	s := NewSample(time.Unix(100, 0), map[string]float64{"gx": 1})
	c := s.Clone()

	c.Values["gx"] = Reading(2)

	require.InDelta(t, 1.0, s.Values["gx"].Number, 0)
	require.Equal(t, "read failed", FailedSample(time.Unix(0, 0), "").Fault)
}

// TestSnapshotHelpers covers lookup, AnyLatched and Clone.
func TestSnapshotHelpers(t *testing.T) {
	t.Parallel()

	s := Snapshot{
		At: time.Unix(100, 0),
		Channels: []ChannelState{
			{Name: "temp", Value: 20, HasValue: true},
			{Name: "hum", Value: 90, HasValue: true, Latched: true},
		},
	}

	require.True(t, s.AnyLatched())

	hum, ok := s.Channel("hum")
	require.True(t, ok)
	require.True(t, hum.Latched)

	_, ok = s.Channel("missing")
	require.False(t, ok)

	c := s.Clone()
	c.Channels[1].Latched = false

	require.True(t, s.Channels[1].Latched)
	require.False(t, c.AnyLatched())
}

// TestActorClone verifies Clone returns a deep copy and handles nil safely.
func TestActorClone(t *testing.T) {
	t.Parallel()

	require.Nil(t, (*Actor)(nil).Clone())
	require.Nil(t, (*Acknowledgement)(nil).Clone())
	require.Equal(t, "unknown", (*Actor)(nil).String())

	a := &Acknowledgement{
		Channel: "temp",
		Actor:   &Actor{Hostname: "bench-01", Username: "o.shokin"},
		At:      time.Unix(100, 0),
	}

	b := a.Clone()

	require.Equal(t, a, b)
	require.NotSame(t, a.Actor, b.Actor)
	require.Equal(t, "o.shokin@bench-01", b.Actor.String())
}
