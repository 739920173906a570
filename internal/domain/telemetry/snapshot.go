package telemetry

import (
	"slices"
	"time"
)

// ChannelState is the reported view of one channel.
type ChannelState struct {
	// Name identifies the channel.
	Name string
	// Value is the latest valid reading, meaningful only when HasValue is set.
	Value float64
	// HasValue is false until the first accepted sample carried this channel.
	HasValue bool
	// Smoothed is the exponentially smoothed value, equal to Value when smoothing is off.
	Smoothed float64
	// Latched is the alarm latch.
	Latched bool
	// Bounds are the configured thresholds.
	Bounds Bounds
}

// Snapshot is the state of all channels at a point in time.
type Snapshot struct {
	// At is the time the snapshot was taken.
	At time.Time
	// Channels are listed in configuration order.
	Channels []ChannelState
}

// Clone returns a copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		At:       s.At,
		Channels: slices.Clone(s.Channels),
	}
}

// Channel looks up a channel state by name.
func (s Snapshot) Channel(name string) (ChannelState, bool) {
	for _, ch := range s.Channels {
		if ch.Name == name {
			return ch, true
		}
	}

	return ChannelState{}, false
}

// AnyLatched reports whether at least one channel is latched.
func (s Snapshot) AnyLatched() bool {
	return slices.ContainsFunc(s.Channels, func(ch ChannelState) bool {
		return ch.Latched
	})
}
