package telemetry

import (
	"fmt"
	"math"
)

// Side tells which threshold a value violated.
type Side string

const (
	// SideLow means the value fell below the low threshold.
	SideLow Side = "low"
	// SideHigh means the value rose above the high threshold.
	SideHigh Side = "high"
)

// Bounds holds the optional alarm thresholds of a channel.
// A channel may have none, one or both sides configured.
type Bounds struct {
	// Low is the lower threshold, meaningful only when HasLow is set.
	Low float64
	// High is the upper threshold, meaningful only when HasHigh is set.
	High float64
	// HasLow indicates whether the lower threshold is configured.
	HasLow bool
	// HasHigh indicates whether the upper threshold is configured.
	HasHigh bool
}

// Unbounded returns bounds without any threshold.
func Unbounded() Bounds {
	return Bounds{}
}

// Between returns two-sided bounds.
func Between(low, high float64) Bounds {
	return Bounds{Low: low, High: high, HasLow: true, HasHigh: true}
}

// Above returns bounds that alarm only when a value drops below low.
func Above(low float64) Bounds {
	return Bounds{Low: low, HasLow: true}
}

// Below returns bounds that alarm only when a value rises above high.
func Below(high float64) Bounds {
	return Bounds{High: high, HasHigh: true}
}

// IsSet reports whether at least one threshold is configured.
func (b Bounds) IsSet() bool {
	return b.HasLow || b.HasHigh
}

// Violation returns the violated side for v. Values equal to a threshold are in range.
func (b Bounds) Violation(v float64) (Side, bool) {
	if b.HasLow && v < b.Low {
		return SideLow, true
	}

	if b.HasHigh && v > b.High {
		return SideHigh, true
	}

	return "", false
}

// String renders the bounds as an interval, using -inf/+inf for missing sides.
func (b Bounds) String() string {
	low, high := "-inf", "+inf"

	if b.HasLow {
		low = fmt.Sprintf("%g", b.Low)
	}

	if b.HasHigh {
		high = fmt.Sprintf("%g", b.High)
	}

	return "[" + low + ", " + high + "]"
}

// IsFinite reports whether v is a well-formed number.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
