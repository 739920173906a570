package telemetry

import (
	"maps"
	"time"
)

// Value is one channel reading inside a sample.
type Value struct {
	// Number is the measured value.
	Number float64
	// Fault is the sensor-reported failure reason, empty when the read succeeded.
	Fault string
}

// Reading wraps a successfully measured number.
func Reading(v float64) Value {
	return Value{Number: v}
}

// Faulted marks a channel read as failed with the provided reason.
func Faulted(reason string) Value {
	if reason == "" {
		reason = "sensor fault"
	}

	return Value{Fault: reason}
}

// Valid reports whether the value is a well-formed number without a fault.
func (v Value) Valid() bool {
	return v.Fault == "" && IsFinite(v.Number)
}

// Sample is the result of one read attempt.
type Sample struct {
	// At is the caller-supplied time of the read.
	At time.Time
	// Values maps channel names to their readings.
	Values map[string]Value
	// Fault marks the whole read as failed (for example a timed out driver).
	Fault string
}

// NewSample builds a sample from plain numbers.
func NewSample(at time.Time, values map[string]float64) Sample {
	converted := make(map[string]Value, len(values))
	for name, v := range values {
		converted[name] = Reading(v)
	}

	return Sample{
		At:     at,
		Values: converted,
	}
}

// FailedSample builds a sample for a read attempt that produced no data.
func FailedSample(at time.Time, reason string) Sample {
	if reason == "" {
		reason = "read failed"
	}

	return Sample{
		At:    at,
		Fault: reason,
	}
}

// Clone returns a copy of the sample with its own values map.
func (s Sample) Clone() Sample {
	return Sample{
		At:     s.At,
		Values: maps.Clone(s.Values),
		Fault:  s.Fault,
	}
}
