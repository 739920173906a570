package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	api "github.com/oshokin/alarm-telemetry/internal/api/grpc/dashboard"
	"github.com/oshokin/alarm-telemetry/internal/config"
	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
	"github.com/oshokin/alarm-telemetry/internal/logger"
	"github.com/oshokin/alarm-telemetry/internal/metrics"
	"github.com/oshokin/alarm-telemetry/internal/reporter"
	repo "github.com/oshokin/alarm-telemetry/internal/repository/latch"
	"github.com/oshokin/alarm-telemetry/internal/sink/dashboard"
)

// service owns the reporter and serializes every access to it.
// It is unexported to keep the transport decoupled from the implementation.
type service struct {
	// repo persists latched channels, nil disables persistence.
	repo repo.Repository
	// tracker holds the dashboard property set.
	tracker *dashboard.Tracker
	// metrics receives counters and gauges.
	metrics *metrics.Metrics
	// now is the clock used for acknowledgements.
	now func() time.Time
	// reportInterval is the text report period.
	reportInterval time.Duration

	// mu protects every field below.
	mu sync.Mutex
	// reporter is the latching core, not safe for concurrent use on its own.
	reporter *reporter.Reporter
	// lastAccepted is true when the most recent sample was valid.
	lastAccepted bool
	// lastAck is the most recent acknowledgement.
	lastAck *telemetry.Acknowledgement
	// version increments on every latch change.
	version uint64

	// persistMu orders saves so an older state never overwrites a newer one.
	persistMu sync.Mutex
	// savedVersion is the version of the last saved state.
	savedVersion uint64
}

// newService builds the reporter from settings and restores persisted latches.
func newService(
	ctx context.Context,
	settings *config.Config,
	repository repo.Repository,
	m *metrics.Metrics,
) (*service, error) {
	r := reporter.New()

	for _, ch := range settings.Channels {
		var opts []reporter.ChannelOption
		if ch.Required {
			opts = append(opts, reporter.Required())
		}

		if ch.Smoothing != 0 {
			opts = append(opts, reporter.Smoothing(ch.Smoothing))
		}

		if ch.AnomalyThreshold != 0 {
			opts = append(opts, reporter.AnomalyDetection(ch.AnomalyWindow, ch.AnomalyThreshold))
		}

		if err := r.ConfigureChannel(ch.Name, ch.Bounds(), opts...); err != nil {
			return nil, fmt.Errorf("configure channel: %w", err)
		}
	}

	s := &service{
		repo:           repository,
		tracker:        dashboard.NewTracker(),
		metrics:        m,
		now:            time.Now,
		reportInterval: settings.ReportInterval,
		reporter:       r,
	}

	if err := s.restore(ctx, settings.RestoreLatches); err != nil {
		return nil, err
	}

	snapshot := r.Snapshot(s.now())
	s.tracker.Update(snapshot)
	s.metrics.SetSnapshot(snapshot)

	return s, nil
}

// restore loads the persisted state. Latches are re-armed only when enabled.
func (s *service) restore(ctx context.Context, rearm bool) error {
	if s.repo == nil {
		return nil
	}

	state, err := s.repo.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("load latches: %w", err)
	}

	s.lastAck = state.LastAcknowledgement

	if !rearm {
		if len(state.Latched) > 0 {
			logger.InfoKV(ctx, "Persisted latches ignored", "channels", state.Latched)
		}

		return nil
	}

	for _, name := range state.Latched {
		if err = s.reporter.RestoreLatch(name); err != nil {
			logger.WarnKV(ctx, "Persisted latch skipped", "channel", name, "error", err)

			continue
		}

		logger.InfoKV(ctx, "Latch restored", "channel", name)
	}

	return nil
}

// Submit feeds one sample to the reporter and updates the dashboard, metrics and latch file.
func (s *service) Submit(ctx context.Context, sample telemetry.Sample) reporter.SubmitResult {
	s.mu.Lock()
	result := s.reporter.SubmitSample(sample)
	s.lastAccepted = result.Accepted

	var (
		state   *repo.State
		version uint64
		changed []telemetry.ChannelState
	)

	if result.Accepted {
		changed = s.publishLocked(result.Snapshot)
	}

	if len(result.Events) > 0 {
		state, version = s.latchStateLocked(result.Snapshot)
	}
	s.mu.Unlock()

	s.metrics.ObserveSample(result.Accepted)

	if !result.Accepted {
		logger.WarnKV(ctx, "Sample rejected", "reason", result.Rejection)

		return result
	}

	if len(result.Ignored) > 0 {
		logger.DebugKV(ctx, "Unknown channels ignored", "channels", result.Ignored)
	}

	for _, event := range result.Events {
		logger.WarnKV(ctx, "Alarm latched",
			"channel", event.Channel,
			"value", event.Value,
			"side", event.Side,
			"bounds", event.Bounds.String())
	}

	for _, anomaly := range result.Anomalies {
		logger.WarnKV(ctx, "Anomalous reading",
			"channel", anomaly.Channel,
			"value", anomaly.Value,
			"mean", anomaly.Mean,
			"stddev", anomaly.StdDev,
			"score", anomaly.Score)
	}

	s.metrics.ObserveEvents(result.Events)
	s.metrics.ObserveAnomalies(result.Anomalies)

	if len(changed) > 0 {
		logger.DebugKV(ctx, "Dashboard properties changed", "count", len(changed))
	}

	if state != nil {
		if err := s.persist(ctx, state, version); err != nil {
			logger.ErrorKV(ctx, "Failed to persist latches", "error", err)
		}
	}

	return result
}

// AcknowledgeAlarm clears a latch on behalf of actor and persists the new state.
func (s *service) AcknowledgeAlarm(
	ctx context.Context,
	actor *telemetry.Actor,
	channel string,
) (*telemetry.Acknowledgement, error) {
	s.mu.Lock()

	if err := s.reporter.AcknowledgeAlarm(channel); err != nil {
		s.mu.Unlock()

		logger.WarnKV(ctx, "Acknowledgement refused", "channel", channel, "actor", actor, "error", err)

		return nil, err
	}

	now := s.now()
	ack := &telemetry.Acknowledgement{
		Channel: channel,
		Actor:   actor.Clone(),
		At:      now,
	}

	s.lastAck = ack
	snapshot := s.reporter.Snapshot(now)
	s.publishLocked(snapshot)
	state, version := s.latchStateLocked(snapshot)
	s.mu.Unlock()

	s.metrics.ObserveAcknowledgement(channel)

	if err := s.persist(ctx, state, version); err != nil {
		logger.Errorf(ctx, "Failed to persist latches: %v", err)

		return nil, fmt.Errorf("persist latches: %w", err)
	}

	logger.InfoKV(ctx, "Alarm acknowledged", "channel", channel, "actor", actor)

	return ack.Clone(), nil
}

// Properties returns the dashboard property set.
func (s *service) Properties(context.Context) telemetry.Snapshot {
	return s.tracker.Properties()
}

// WatchProperties returns the property set and a watch that yields every later change.
func (s *service) WatchProperties(context.Context) (telemetry.Snapshot, api.PropertyWatch) {
	current, sub := s.tracker.Subscribe(dashboard.DefaultBuffer)

	return current, sub
}

// StopWatches ends every property watch so open streams return.
func (s *service) StopWatches() {
	s.tracker.Close()
}

// Snapshot returns the current channel state and whether the last sample was valid.
func (s *service) Snapshot(at time.Time) (telemetry.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reporter.Snapshot(at), s.lastAccepted
}

// ReportDue reports whether a text report is due at the given time.
// Nothing is due until the most recent sample was valid.
func (s *service) ReportDue(at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastAccepted && s.reporter.IsReportDue(at, s.reportInterval)
}

// MarkReported records a successful text report.
func (s *service) MarkReported(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reporter.MarkReported(at)
}

// Stats returns the reporter counters.
func (s *service) Stats() reporter.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reporter.Stats()
}

// publishLocked pushes snapshot to the dashboard and the gauges.
// s.mu must be held so an older snapshot never lands after a newer one.
func (s *service) publishLocked(snapshot telemetry.Snapshot) []telemetry.ChannelState {
	s.metrics.SetSnapshot(snapshot)

	return s.tracker.Update(snapshot)
}

// latchStateLocked captures the persisted view of snapshot. s.mu must be held.
func (s *service) latchStateLocked(snapshot telemetry.Snapshot) (*repo.State, uint64) {
	s.version++

	state := &repo.State{
		Timestamp:           snapshot.At,
		LastAcknowledgement: s.lastAck.Clone(),
	}

	for _, ch := range snapshot.Channels {
		if ch.Latched {
			state.Latched = append(state.Latched, ch.Name)
		}
	}

	return state, s.version
}

// persist saves state unless a newer version was already saved.
func (s *service) persist(ctx context.Context, state *repo.State, version uint64) error {
	if s.repo == nil {
		return nil
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if version <= s.savedVersion {
		return nil
	}

	if err := s.repo.Save(ctx, state); err != nil {
		return err
	}

	s.savedVersion = version

	return nil
}
