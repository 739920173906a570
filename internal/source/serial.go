package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
)

// lineBuffer is how many unread lines are kept before older ones are dropped.
const lineBuffer = 256

// Serial reads comma-separated lines such as "0.12,-0.03,9.81" from a stream.
// Each read returns the newest complete line received since the previous read.
type Serial struct {
	columns   []string
	skipFirst bool
	closer    io.Closer

	lines chan string
	done  chan struct{}

	mu      sync.Mutex
	readErr error
}

// SerialOption configures the serial source.
type SerialOption func(*Serial)

// WithDeviceClockColumn skips a leading t_device_ms column on every line.
func WithDeviceClockColumn() SerialOption {
	return func(s *Serial) {
		s.skipFirst = true
	}
}

// OpenSerial opens a device or file path; "-" reads standard input.
func OpenSerial(path string, columns []string, opts ...SerialOption) (*Serial, error) {
	if path == "-" {
		return NewSerial(io.NopCloser(os.Stdin), columns, opts...), nil
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open serial stream: %w", err)
	}

	return NewSerial(f, columns, opts...), nil
}

// NewSerial starts scanning r in the background.
func NewSerial(r io.ReadCloser, columns []string, opts ...SerialOption) *Serial {
	s := &Serial{
		columns: columns,
		closer:  r,
		lines:   make(chan string, lineBuffer),
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.scan(r)

	return s
}

// scan pushes non-empty lines into the buffer until the stream ends.
func (s *Serial) scan(r io.Reader) {
	defer close(s.done)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		select {
		case s.lines <- line:
		default:
			// Drop the oldest line so the newest always fits.
			select {
			case <-s.lines:
			default:
			}

			s.lines <- line
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}

	s.mu.Lock()
	s.readErr = err
	s.mu.Unlock()
}

// Read returns the newest buffered line as a sample.
// It returns ErrNoData when nothing arrived and io.EOF once the stream is drained.
func (s *Serial) Read(ctx context.Context, at time.Time) (telemetry.Sample, error) {
	if err := ctx.Err(); err != nil {
		return telemetry.Sample{}, err
	}

	var (
		latest string
		found  bool
	)

drain:
	for {
		select {
		case line := <-s.lines:
			latest, found = line, true
		default:
			break drain
		}
	}

	if found {
		return ParseLine(latest, s.columns, s.skipFirst, at), nil
	}

	select {
	case <-s.done:
		s.mu.Lock()
		err := s.readErr
		s.mu.Unlock()

		// Lines may have landed between the drain and the done check.
		if len(s.lines) > 0 {
			return s.Read(ctx, at)
		}

		if errors.Is(err, io.EOF) {
			return telemetry.Sample{}, io.EOF
		}

		return telemetry.Sample{}, fmt.Errorf("read serial stream: %w", err)
	default:
		return telemetry.Sample{}, ErrNoData
	}
}

// Close closes the underlying stream.
func (s *Serial) Close() error {
	return s.closer.Close()
}

// ParseLine converts one comma-separated line into a sample.
// Unparsable or "nan" tokens become faulted values, a short line faults the whole sample.
func ParseLine(line string, columns []string, skipFirst bool, at time.Time) telemetry.Sample {
	fields := strings.Split(line, ",")
	if skipFirst && len(fields) > 0 {
		fields = fields[1:]
	}

	if len(fields) < len(columns) {
		return telemetry.FailedSample(at, fmt.Sprintf("expected %d values, got %d in %q", len(columns), len(fields), line))
	}

	values := make(map[string]telemetry.Value, len(columns))

	for i, name := range columns {
		values[name] = ParseValue(fields[i])
	}

	return telemetry.Sample{
		At:     at,
		Values: values,
	}
}
