package source

import (
	"sync"
	"time"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
)

// Assembler collects per-channel updates and emits a complete sample once
// every expected channel has reported. Property callbacks of cloud dashboards
// deliver axes one by one, so a sample is only meaningful when all are known.
type Assembler struct {
	mu       sync.Mutex
	expected []string
	partial  map[string]telemetry.Value
	ready    *telemetry.Sample
	dropped  uint64
}

// NewAssembler creates an assembler waiting for the expected channels.
func NewAssembler(expected []string) *Assembler {
	return &Assembler{
		expected: expected,
		partial:  make(map[string]telemetry.Value, len(expected)),
	}
}

// Put stores one channel update. It returns true when the update completed a sample.
func (a *Assembler) Put(name string, value telemetry.Value, at time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.partial[name] = value

	for _, ch := range a.expected {
		if _, ok := a.partial[ch]; !ok {
			return false
		}
	}

	if a.ready != nil {
		a.dropped++
	}

	a.ready = &telemetry.Sample{
		At:     at,
		Values: a.partial,
	}
	a.partial = make(map[string]telemetry.Value, len(a.expected))

	return true
}

// Take returns the newest complete sample, restamped with at.
func (a *Assembler) Take(at time.Time) (telemetry.Sample, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ready == nil {
		return telemetry.Sample{}, false
	}

	sample := *a.ready
	sample.At = at
	a.ready = nil

	return sample, true
}

// Dropped counts complete samples overwritten before anyone took them.
func (a *Assembler) Dropped() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.dropped
}
