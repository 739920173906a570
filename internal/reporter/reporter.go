package reporter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
)

// channel is one row of the channel table.
type channel struct {
	// bounds are fixed once the channel is configured.
	bounds telemetry.Bounds
	// required rejects samples that do not carry this channel.
	required bool
	// value is the latest valid reading.
	value float64
	// hasValue is false until the first accepted reading.
	hasValue bool
	// latched is the alarm latch, cleared only by AcknowledgeAlarm.
	latched bool
	// smoothing enables the moving average with weight alpha.
	smoothing bool
	alpha     float64
	// smoothed is the moving average of accepted readings.
	smoothed float64
	// detector flags outliers, nil when anomaly detection is off.
	detector *zscore
}

// ChannelOption tweaks a channel definition.
type ChannelOption func(*channel)

// Required makes samples without this channel invalid.
func Required() ChannelOption {
	return func(c *channel) {
		c.required = true
	}
}

// SubmitResult is the outcome of SubmitSample.
type SubmitResult struct {
	// Accepted is false when the sample was discarded.
	Accepted bool
	// Rejection carries a *RejectionError when Accepted is false.
	Rejection error
	// Events lists latches that flipped on this sample.
	Events []telemetry.AlarmEvent
	// Anomalies lists readings flagged by anomaly detection.
	Anomalies []telemetry.Anomaly
	// Ignored lists sample channels that are not configured.
	Ignored []string
	// Snapshot is the state of all channels after the sample was processed.
	Snapshot telemetry.Snapshot
}

// Stats are running counters since the reporter was created.
type Stats struct {
	// Accepted counts samples that updated channel state.
	Accepted uint64
	// Rejected counts discarded samples.
	Rejected uint64
	// Events counts emitted alarm events.
	Events uint64
	// Acknowledged counts successful acknowledgements.
	Acknowledged uint64
	// Anomalies counts flagged readings.
	Anomalies uint64
}

// Reporter is the SampledAlarmReporter. It is not safe for concurrent use;
// callers serialize access from one polling context.
type Reporter struct {
	// channels is the channel table keyed by name.
	channels map[string]*channel
	// order keeps configuration order for snapshots.
	order []string
	// report is the cadence of the primary report.
	report Cadence
	// stats are running counters.
	stats Stats
}

// New creates a reporter without channels.
func New() *Reporter {
	return &Reporter{
		channels: make(map[string]*channel),
	}
}

// ConfigureChannel registers a channel with optional thresholds.
func (r *Reporter) ConfigureChannel(name string, bounds telemetry.Bounds, opts ...ChannelOption) error {
	if strings.TrimSpace(name) == "" {
		return &ConfigError{Channel: name, Reason: "name must not be empty"}
	}

	if _, exists := r.channels[name]; exists {
		return &ConfigError{Channel: name, Reason: "already registered"}
	}

	if bounds.HasLow && !telemetry.IsFinite(bounds.Low) {
		return &ConfigError{Channel: name, Reason: "low threshold is not a finite number"}
	}

	if bounds.HasHigh && !telemetry.IsFinite(bounds.High) {
		return &ConfigError{Channel: name, Reason: "high threshold is not a finite number"}
	}

	if bounds.HasLow && bounds.HasHigh && bounds.Low >= bounds.High {
		return &ConfigError{
			Channel: name,
			Reason:  fmt.Sprintf("low threshold %g must be below high threshold %g", bounds.Low, bounds.High),
		}
	}

	ch := &channel{bounds: bounds}
	for _, opt := range opts {
		opt(ch)
	}

	if err := validateAnalysis(name, ch); err != nil {
		return err
	}

	r.channels[name] = ch
	r.order = append(r.order, name)

	return nil
}

// SubmitSample validates a sample and applies it to the channel table.
// An invalid sample leaves every channel untouched.
func (r *Reporter) SubmitSample(sample telemetry.Sample) SubmitResult {
	if rejection := r.validate(sample); rejection != nil {
		r.stats.Rejected++

		return SubmitResult{
			Accepted:  false,
			Rejection: rejection,
			Snapshot:  r.Snapshot(sample.At),
		}
	}

	var (
		events    []telemetry.AlarmEvent
		anomalies []telemetry.Anomaly
		ignored   []string
	)

	// Walk in configuration order so events are emitted deterministically.
	for _, name := range r.order {
		value, present := sample.Values[name]
		if !present {
			continue
		}

		ch := r.channels[name]

		if ch.detector != nil {
			if anomaly, flagged := ch.detector.observe(name, value.Number, sample.At); flagged {
				anomalies = append(anomalies, anomaly)
			}
		}

		ch.smooth(value.Number)
		ch.value = value.Number
		ch.hasValue = true

		if ch.latched {
			continue
		}

		side, violated := ch.bounds.Violation(value.Number)
		if !violated {
			continue
		}

		ch.latched = true

		events = append(events, telemetry.AlarmEvent{
			Channel: name,
			Value:   value.Number,
			Side:    side,
			Bounds:  ch.bounds,
			At:      sample.At,
		})
	}

	for name := range sample.Values {
		if _, known := r.channels[name]; !known {
			ignored = append(ignored, name)
		}
	}

	sort.Strings(ignored)

	r.stats.Accepted++
	r.stats.Events += uint64(len(events))
	r.stats.Anomalies += uint64(len(anomalies))

	return SubmitResult{
		Accepted:  true,
		Events:    events,
		Anomalies: anomalies,
		Ignored:   ignored,
		Snapshot:  r.Snapshot(sample.At),
	}
}

// validate returns a rejection for faulted samples, invalid values of configured
// channels and missing required channels.
func (r *Reporter) validate(sample telemetry.Sample) *RejectionError {
	if sample.Fault != "" {
		return &RejectionError{Reason: sample.Fault}
	}

	for _, name := range r.order {
		value, present := sample.Values[name]
		if !present {
			if r.channels[name].required {
				return &RejectionError{Channel: name, Reason: "required value missing"}
			}

			continue
		}

		if value.Fault != "" {
			return &RejectionError{Channel: name, Reason: value.Fault}
		}

		if !telemetry.IsFinite(value.Number) {
			return &RejectionError{Channel: name, Reason: fmt.Sprintf("value %v is not a finite number", value.Number)}
		}
	}

	return nil
}

// AcknowledgeAlarm clears the latch of a channel regardless of its current value.
func (r *Reporter) AcknowledgeAlarm(name string) error {
	ch, ok := r.channels[name]
	if !ok {
		return fmt.Errorf("acknowledge %q: %w", name, ErrUnknownChannel)
	}

	ch.latched = false
	r.stats.Acknowledged++

	return nil
}

// RestoreLatch sets the latch of a channel without emitting an event.
// It is meant for re-arming latches persisted by a previous run.
func (r *Reporter) RestoreLatch(name string) error {
	ch, ok := r.channels[name]
	if !ok {
		return fmt.Errorf("restore %q: %w", name, ErrUnknownChannel)
	}

	ch.latched = true

	return nil
}

// Latched returns the latch state of a channel.
func (r *Reporter) Latched(name string) (bool, error) {
	ch, ok := r.channels[name]
	if !ok {
		return false, fmt.Errorf("latch of %q: %w", name, ErrUnknownChannel)
	}

	return ch.latched, nil
}

// IsReportDue reports whether interval has elapsed since the last MarkReported.
func (r *Reporter) IsReportDue(at time.Time, interval time.Duration) bool {
	return r.report.Due(at, interval)
}

// MarkReported records the time of the last successful report.
func (r *Reporter) MarkReported(at time.Time) {
	r.report.Mark(at)
}

// Snapshot returns the state of every channel in configuration order.
func (r *Reporter) Snapshot(at time.Time) telemetry.Snapshot {
	states := make([]telemetry.ChannelState, 0, len(r.order))

	for _, name := range r.order {
		ch := r.channels[name]
		states = append(states, telemetry.ChannelState{
			Name:     name,
			Value:    ch.value,
			HasValue: ch.hasValue,
			Smoothed: ch.smoothed,
			Latched:  ch.latched,
			Bounds:   ch.bounds,
		})
	}

	return telemetry.Snapshot{
		At:       at,
		Channels: states,
	}
}

// Channels returns the configured channel names in configuration order.
func (r *Reporter) Channels() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)

	return names
}

// Stats returns the running counters.
func (r *Reporter) Stats() Stats {
	return r.stats
}
