package reporter

import (
	"fmt"
	"math"
	"time"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
)

// Smoothing enables an exponential moving average with the given weight of the newest reading.
// alpha must be in (0, 1]; 1 disables smoothing.
func Smoothing(alpha float64) ChannelOption {
	return func(c *channel) {
		c.alpha = alpha
		c.smoothing = true
	}
}

// AnomalyDetection flags readings whose z-score against the previous window readings
// exceeds threshold. Nothing is flagged until the window is full.
func AnomalyDetection(window int, threshold float64) ChannelOption {
	return func(c *channel) {
		c.detector = &zscore{
			threshold: threshold,
			values:    make([]float64, 0, max(window, 0)),
			size:      window,
		}
	}
}

// validateAnalysis checks the optional analysis settings of ch.
func validateAnalysis(name string, ch *channel) *ConfigError {
	if ch.smoothing && (!telemetry.IsFinite(ch.alpha) || ch.alpha <= 0 || ch.alpha > 1) {
		return &ConfigError{Channel: name, Reason: fmt.Sprintf("smoothing factor %g outside (0, 1]", ch.alpha)}
	}

	if d := ch.detector; d != nil {
		if d.size < 2 {
			return &ConfigError{Channel: name, Reason: fmt.Sprintf("anomaly window %d is shorter than 2", d.size)}
		}

		if !telemetry.IsFinite(d.threshold) || d.threshold <= 0 {
			return &ConfigError{Channel: name, Reason: fmt.Sprintf("anomaly threshold %g is not positive", d.threshold)}
		}
	}

	return nil
}

// smooth folds value into the moving average of ch.
func (c *channel) smooth(value float64) {
	if !c.smoothing || !c.hasValue {
		c.smoothed = value

		return
	}

	c.smoothed = c.alpha*value + (1-c.alpha)*c.smoothed
}

// zscore keeps a ring of the most recent readings of one channel.
type zscore struct {
	threshold float64
	size      int
	values    []float64
	// next is the ring position overwritten by the next reading once full.
	next int
}

// observe compares value with the window, then adds it.
func (z *zscore) observe(name string, value float64, at time.Time) (telemetry.Anomaly, bool) {
	anomaly, flagged := z.check(name, value, at)

	if len(z.values) < z.size {
		z.values = append(z.values, value)
	} else {
		z.values[z.next] = value
		z.next = (z.next + 1) % z.size
	}

	return anomaly, flagged
}

// check flags value when the window is full and value is more than threshold deviations away.
func (z *zscore) check(name string, value float64, at time.Time) (telemetry.Anomaly, bool) {
	if len(z.values) < z.size {
		return telemetry.Anomaly{}, false
	}

	var sum float64
	for _, v := range z.values {
		sum += v
	}

	mean := sum / float64(len(z.values))

	var variance float64
	for _, v := range z.values {
		variance += (v - mean) * (v - mean)
	}

	stddev := math.Sqrt(variance / float64(len(z.values)))
	if stddev == 0 {
		return telemetry.Anomaly{}, false
	}

	score := math.Abs(value-mean) / stddev
	if score <= z.threshold {
		return telemetry.Anomaly{}, false
	}

	return telemetry.Anomaly{
		Channel: name,
		Value:   value,
		Mean:    mean,
		StdDev:  stddev,
		Score:   score,
		At:      at,
	}, true
}
