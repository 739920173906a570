package telemetry

import (
	"fmt"
	"time"
)

// AlarmEvent is emitted once when a channel latch flips from false to true.
type AlarmEvent struct {
	// Channel is the name of the alarmed channel.
	Channel string
	// Value is the reading that tripped the latch.
	Value float64
	// Side is the violated threshold.
	Side Side
	// Bounds are the channel thresholds at the time of the event.
	Bounds Bounds
	// At is the time of the sample that tripped the latch.
	At time.Time
}

// String renders the event for logs.
func (e AlarmEvent) String() string {
	return fmt.Sprintf("%s=%g outside %s (%s)", e.Channel, e.Value, e.Bounds, e.Side)
}

// Anomaly flags a reading far from the recent mean of its channel.
// It is informational and never touches the alarm latch.
type Anomaly struct {
	// Channel is the name of the channel.
	Channel string
	// Value is the flagged reading.
	Value float64
	// Mean and StdDev describe the window the reading was compared with.
	Mean   float64
	StdDev float64
	// Score is |Value - Mean| / StdDev.
	Score float64
	// At is the time of the sample.
	At time.Time
}

// String renders the anomaly for logs.
func (a Anomaly) String() string {
	return fmt.Sprintf("%s=%g is %.2f sigma from %.4g", a.Channel, a.Value, a.Score, a.Mean)
}
