package agent

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
	"github.com/oshokin/alarm-telemetry/internal/logger"
	"github.com/oshokin/alarm-telemetry/internal/metrics"
	"github.com/oshokin/alarm-telemetry/internal/reporter"
	"github.com/oshokin/alarm-telemetry/internal/source"
)

// Sink names used in logs and the sink failure counter.
const (
	sinkText    = "text"
	sinkCSV     = "csv"
	sinkBroker  = "broker"
	sinkHistory = "history"
)

// reportSink receives the periodic text report.
type reportSink interface {
	Report(snapshot telemetry.Snapshot) error
}

// exportSink receives the periodic CSV export.
type exportSink interface {
	Export(snapshot telemetry.Snapshot) error
}

// publishSink receives snapshots on the broker cadence.
type publishSink interface {
	Publish(ctx context.Context, snapshot telemetry.Snapshot) error
}

// historySink stores every accepted sample and its alarm events.
type historySink interface {
	WriteSnapshot(ctx context.Context, snapshot telemetry.Snapshot) error
	RecordEvents(ctx context.Context, events []telemetry.AlarmEvent) error
}

// poller drives one read, submit and report round per tick.
type poller struct {
	// svc owns the reporter.
	svc *service
	// source produces samples.
	source source.Source
	// metrics receives sink failures and report timings.
	metrics *metrics.Metrics
	// sampleInterval is the tick period.
	sampleInterval time.Duration

	// report is the text sink, always set.
	report reportSink
	// export is the CSV sink, nil when disabled.
	export exportSink
	// history is the Timescale sink, nil when disabled.
	history historySink
	// publisher is the broker sink, nil when disabled.
	publisher publishSink
	// publishInterval is the broker cadence.
	publishInterval time.Duration
	// publishCadence is only touched by the polling goroutine.
	publishCadence reporter.Cadence
}

// run ticks until ctx is cancelled or the source is exhausted.
func (p *poller) run(ctx context.Context) error {
	ticker := time.NewTicker(p.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := p.tick(ctx, now); err != nil {
				if errors.Is(err, io.EOF) {
					logger.Info(ctx, "Source exhausted, stopping")

					return nil
				}

				return err
			}
		}
	}
}

// tick performs one polling round. It only fails with io.EOF.
func (p *poller) tick(ctx context.Context, now time.Time) error {
	sample, err := p.source.Read(ctx, now)

	switch {
	case err == nil:
		p.submit(ctx, sample)
	case errors.Is(err, source.ErrNoData):
		logger.Debugf(ctx, "No new data at %s", now.Format(time.RFC3339))
	case errors.Is(err, io.EOF):
		return io.EOF
	case ctx.Err() != nil:
		return nil
	default:
		p.submit(ctx, telemetry.FailedSample(now, err.Error()))
	}

	p.reportIfDue(ctx, now)
	p.publishIfDue(ctx, now)

	return nil
}

// submit applies the sample and writes accepted ones to history.
func (p *poller) submit(ctx context.Context, sample telemetry.Sample) {
	result := p.svc.Submit(ctx, sample)
	if !result.Accepted || p.history == nil {
		return
	}

	if err := p.history.WriteSnapshot(ctx, result.Snapshot); err != nil {
		p.sinkFailed(ctx, sinkHistory, err)
	}

	if err := p.history.RecordEvents(ctx, result.Events); err != nil {
		p.sinkFailed(ctx, sinkHistory, err)
	}
}

// reportIfDue writes the text report and CSV export when the report cadence allows.
func (p *poller) reportIfDue(ctx context.Context, now time.Time) {
	if !p.svc.ReportDue(now) {
		return
	}

	started := time.Now()
	snapshot, _ := p.svc.Snapshot(now)

	if err := p.report.Report(snapshot); err != nil {
		p.sinkFailed(ctx, sinkText, err)
	} else {
		p.svc.MarkReported(now)
	}

	if p.export != nil {
		if err := p.export.Export(snapshot); err != nil {
			p.sinkFailed(ctx, sinkCSV, err)
		}
	}

	p.metrics.ObserveReport(time.Since(started))
}

// publishIfDue publishes to the broker on its own cadence.
func (p *poller) publishIfDue(ctx context.Context, now time.Time) {
	if p.publisher == nil || !p.publishCadence.Due(now, p.publishInterval) {
		return
	}

	snapshot, valid := p.svc.Snapshot(now)
	if !valid {
		return
	}

	if err := p.publisher.Publish(ctx, snapshot); err != nil {
		p.sinkFailed(ctx, sinkBroker, err)

		return
	}

	p.publishCadence.Mark(now)
}

// sinkFailed logs and counts a failed sink write; the loop keeps going.
func (p *poller) sinkFailed(ctx context.Context, sink string, err error) {
	p.metrics.ObserveSinkFailure(sink)
	logger.ErrorKV(ctx, "Sink write failed", "sink", sink, "error", err)
}
