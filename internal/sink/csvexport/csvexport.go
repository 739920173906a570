// Package csvexport appends snapshots to daily CSV files named YYYY-MM-DD.csv:
//
//	timestamp,channel,value,latched
package csvexport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
)

const (
	timeLayout = time.RFC3339Nano
	fileLayout = "2006-01-02"
	dirMode    = 0o750
	fileMode   = 0o600
)

// header is written to every new file.
//
//nolint:gochecknoglobals // Read-only header row.
var header = []string{"timestamp", "channel", "value", "latched"}

// Exporter writes snapshots into a directory, one file per UTC day.
type Exporter struct {
	mu      sync.Mutex
	dir     string
	file    *os.File
	writer  *csv.Writer
	curDate string
}

// Row is one exported line.
type Row struct {
	Time    time.Time
	Channel string
	Value   float64
	Latched bool
}

// New creates an exporter, creating dir if needed.
func New(dir string) (*Exporter, error) {
	if err := os.MkdirAll(filepath.Clean(dir), dirMode); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	return &Exporter{dir: filepath.Clean(dir)}, nil
}

// Export appends every channel that has a value.
func (e *Exporter) Export(snapshot telemetry.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.rotate(snapshot.At.UTC()); err != nil {
		return err
	}

	ts := snapshot.At.UTC().Format(timeLayout)

	for _, ch := range snapshot.Channels {
		if !ch.HasValue {
			continue
		}

		record := []string{
			ts,
			ch.Name,
			strconv.FormatFloat(ch.Value, 'g', -1, 64),
			strconv.FormatBool(ch.Latched),
		}

		if err := e.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	e.writer.Flush()

	if err := e.writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	return nil
}

// rotate opens the file of the day of at, closing the previous one.
func (e *Exporter) rotate(at time.Time) error {
	date := at.Format(fileLayout)
	if date == e.curDate && e.file != nil {
		return nil
	}

	if err := e.closeFile(); err != nil {
		return err
	}

	path := filepath.Join(e.dir, date+".csv")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, fileMode)
	if err != nil {
		return fmt.Errorf("open export file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()

		return fmt.Errorf("stat export file: %w", err)
	}

	e.file = f
	e.writer = csv.NewWriter(f)
	e.curDate = date

	if info.Size() == 0 {
		if err := e.writer.Write(header); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}

	return nil
}

// Close flushes and closes the current file.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.closeFile()
}

func (e *Exporter) closeFile() error {
	if e.file == nil {
		return nil
	}

	e.writer.Flush()
	flushErr := e.writer.Error()
	closeErr := e.file.Close()

	e.file = nil
	e.writer = nil
	e.curDate = ""

	return errors.Join(flushErr, closeErr)
}

// LoadFile reads rows back from an exported file, skipping the header.
func LoadFile(path string) ([]Row, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open export file: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	rows := make([]Row, 0, len(records))

	for i, record := range records {
		if i == 0 && len(record) > 0 && record[0] == header[0] {
			continue
		}

		if len(record) < len(header) {
			continue
		}

		ts, err := time.Parse(timeLayout, record[0])
		if err != nil {
			continue
		}

		value, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			continue
		}

		latched, _ := strconv.ParseBool(record[3])

		rows = append(rows, Row{
			Time:    ts,
			Channel: record[1],
			Value:   value,
			Latched: latched,
		})
	}

	return rows, nil
}
