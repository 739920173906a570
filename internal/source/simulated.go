package source

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
)

const (
	// simulatedSpread is the walk range used for channels without thresholds.
	simulatedSpread = 2.0
	// excursionRate is the chance a reading jumps outside the alarm range.
	excursionRate = 0.02
	// reversion is the share of the distance to the center recovered per read.
	reversion = 0.1
)

// walker keeps the random walk of one channel.
type walker struct {
	name   string
	bounds telemetry.Bounds
	center float64
	value  float64
	step   float64
}

// Simulated generates random-walk readings with occasional dropouts and excursions.
type Simulated struct {
	rng         *rand.Rand
	walkers     []*walker
	failureRate float64
}

// SimulatedChannel describes one simulated channel.
type SimulatedChannel struct {
	Name   string
	Bounds telemetry.Bounds
}

// NewSimulated builds a reproducible simulated source.
func NewSimulated(channels []SimulatedChannel, seed int64, failureRate float64) *Simulated {
	//nolint:gosec // Simulation does not need a cryptographic generator.
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x5deece66d))

	walkers := make([]*walker, 0, len(channels))
	for _, ch := range channels {
		center, spread := centerOf(ch.Bounds)
		walkers = append(walkers, &walker{
			name:   ch.Name,
			bounds: ch.Bounds,
			center: center,
			value:  center,
			step:   spread / 20,
		})
	}

	return &Simulated{
		rng:         rng,
		walkers:     walkers,
		failureRate: failureRate,
	}
}

// centerOf picks a starting point and a spread inside the alarm range.
func centerOf(b telemetry.Bounds) (float64, float64) {
	switch {
	case b.HasLow && b.HasHigh:
		return (b.Low + b.High) / 2, b.High - b.Low
	case b.HasLow:
		return b.Low + simulatedSpread, simulatedSpread
	case b.HasHigh:
		return b.High - simulatedSpread, simulatedSpread
	default:
		return 0, simulatedSpread
	}
}

// Read returns the next simulated sample.
func (s *Simulated) Read(ctx context.Context, at time.Time) (telemetry.Sample, error) {
	if err := ctx.Err(); err != nil {
		return telemetry.Sample{}, err
	}

	if s.failureRate > 0 && s.rng.Float64() < s.failureRate {
		return telemetry.FailedSample(at, "simulated read failure"), nil
	}

	values := make(map[string]float64, len(s.walkers))

	for _, w := range s.walkers {
		// Pull towards the center so the walk stays mostly in range.
		w.value += (w.center-w.value)*reversion + s.rng.NormFloat64()*w.step

		reading := w.value
		if w.bounds.IsSet() && s.rng.Float64() < excursionRate {
			reading = excursion(w.bounds, w.step)
		}

		values[w.name] = reading
	}

	return telemetry.NewSample(at, values), nil
}

// excursion returns a value just outside the configured range.
func excursion(b telemetry.Bounds, step float64) float64 {
	margin := step + 1
	if b.HasHigh {
		return b.High + margin
	}

	return b.Low - margin
}

// Close is a no-op for the simulated source.
func (s *Simulated) Close() error {
	return nil
}
