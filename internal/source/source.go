package source

import (
	"context"
	"errors"
	"time"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
)

// ErrNoData is returned when a source has nothing new since the last read.
// The caller skips the tick; it is not a sensor failure.
var ErrNoData = errors.New("no new data")

// Source produces one sample per read attempt.
type Source interface {
	// Read returns the sample for this tick, stamped with at.
	// io.EOF means the source is exhausted.
	Read(ctx context.Context, at time.Time) (telemetry.Sample, error)
	// Close releases the underlying resources.
	Close() error
}
