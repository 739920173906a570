// Package metrics exposes agent counters and channel gauges to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
	"github.com/oshokin/alarm-telemetry/internal/logger"
)

// Sample results used as the "result" label.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
)

// shutdownTimeout bounds the graceful stop of the metrics endpoint.
const shutdownTimeout = 5 * time.Second

// Metrics groups every collector the agent updates.
type Metrics struct {
	samples         *prometheus.CounterVec
	alarmEvents     *prometheus.CounterVec
	acknowledgement *prometheus.CounterVec
	sinkFailures    *prometheus.CounterVec
	channelValue    *prometheus.GaugeVec
	channelLatched  *prometheus.GaugeVec
	channelSmoothed *prometheus.GaugeVec
	anomalies       *prometheus.CounterVec
	reportDuration  prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		samples: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telemetry_samples_total",
				Help: "Samples submitted to the reporter by result.",
			},
			[]string{"result"},
		),
		alarmEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telemetry_alarm_events_total",
				Help: "Alarm latches tripped per channel.",
			},
			[]string{"channel"},
		),
		acknowledgement: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telemetry_acknowledgements_total",
				Help: "Alarm acknowledgements per channel.",
			},
			[]string{"channel"},
		),
		sinkFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telemetry_sink_failures_total",
				Help: "Failed writes per output sink.",
			},
			[]string{"sink"},
		),
		channelValue: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "telemetry_channel_value",
				Help: "Latest valid value per channel.",
			},
			[]string{"channel"},
		),
		channelLatched: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "telemetry_channel_latched",
				Help: "Alarm latch per channel, 1 when latched.",
			},
			[]string{"channel"},
		),
		channelSmoothed: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "telemetry_channel_smoothed",
				Help: "Exponentially smoothed value per channel.",
			},
			[]string{"channel"},
		),
		anomalies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telemetry_anomalies_total",
				Help: "Readings flagged as anomalous per channel.",
			},
			[]string{"channel"},
		),
		reportDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "telemetry_report_duration_seconds",
				Help:    "Time spent writing one report to every sink.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
	}
}

// ObserveSample counts a submitted sample.
func (m *Metrics) ObserveSample(accepted bool) {
	result := ResultAccepted
	if !accepted {
		result = ResultRejected
	}

	m.samples.WithLabelValues(result).Inc()
}

// ObserveEvents counts tripped latches.
func (m *Metrics) ObserveEvents(events []telemetry.AlarmEvent) {
	for _, e := range events {
		m.alarmEvents.WithLabelValues(e.Channel).Inc()
	}
}

// ObserveAnomalies counts flagged readings.
func (m *Metrics) ObserveAnomalies(anomalies []telemetry.Anomaly) {
	for _, a := range anomalies {
		m.anomalies.WithLabelValues(a.Channel).Inc()
	}
}

// ObserveAcknowledgement counts a cleared latch.
func (m *Metrics) ObserveAcknowledgement(channel string) {
	m.acknowledgement.WithLabelValues(channel).Inc()
}

// ObserveSinkFailure counts a failed sink write.
func (m *Metrics) ObserveSinkFailure(sink string) {
	m.sinkFailures.WithLabelValues(sink).Inc()
}

// ObserveReport records how long a report took.
func (m *Metrics) ObserveReport(took time.Duration) {
	m.reportDuration.Observe(took.Seconds())
}

// SetSnapshot updates the per-channel gauges. Channels without a value keep no value gauge.
func (m *Metrics) SetSnapshot(snapshot telemetry.Snapshot) {
	for _, ch := range snapshot.Channels {
		if ch.HasValue {
			m.channelValue.WithLabelValues(ch.Name).Set(ch.Value)
			m.channelSmoothed.WithLabelValues(ch.Name).Set(ch.Smoothed)
		}

		latched := 0.0
		if ch.Latched {
			latched = 1
		}

		m.channelLatched.WithLabelValues(ch.Name).Set(latched)
	}
}

// Serve exposes /metrics on address until ctx is cancelled.
func Serve(ctx context.Context, address string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WarnKV(ctx, "Metrics endpoint shutdown failed", "error", err)
		}
	}()

	logger.InfoKV(ctx, "Metrics endpoint listening", "address", address)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}

	return nil
}
