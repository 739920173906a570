package config

import "github.com/oshokin/alarm-telemetry/internal/domain/telemetry"

// Bounds converts the optional YAML thresholds into domain bounds.
func (c Channel) Bounds() telemetry.Bounds {
	var b telemetry.Bounds

	if c.Low != nil {
		b.Low = *c.Low
		b.HasLow = true
	}

	if c.High != nil {
		b.High = *c.High
		b.HasHigh = true
	}

	return b
}
