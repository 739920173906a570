// Package text writes report lines for serial consoles and log files.
package text

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
)

const (
	// FormatLines renders one "temp=45.00 alarm=true" line per channel.
	FormatLines = "lines"
	// FormatCSV renders one row per report: every value in channel order,
	// then one 0/1 alarm flag per channel, like "45.00,12.30,1,0".
	FormatCSV = "csv"
)

// missingValue is printed for channels that never had a valid reading.
const missingValue = "-"

// Writer emits a report on every tick.
type Writer struct {
	mu     sync.Mutex
	out    io.Writer
	format string
}

// NewWriter creates a report writer. Unknown formats fall back to FormatLines.
func NewWriter(out io.Writer, format string) *Writer {
	if format != FormatCSV {
		format = FormatLines
	}

	return &Writer{
		out:    out,
		format: format,
	}
}

// Report writes the snapshot in the configured format.
func (w *Writer) Report(snapshot telemetry.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf := bufio.NewWriter(w.out)

	var lines []string
	if w.format == FormatCSV {
		lines = []string{csvRow(snapshot.Channels)}
	} else {
		lines = make([]string, 0, len(snapshot.Channels))
		for _, ch := range snapshot.Channels {
			lines = append(lines, ch.Name+"="+valueOf(ch)+" alarm="+strconv.FormatBool(ch.Latched))
		}
	}

	for _, line := range lines {
		if _, err := buf.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("write report line: %w", err)
		}
	}

	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}

	return nil
}

// csvRow renders values followed by alarm flags.
func csvRow(channels []telemetry.ChannelState) string {
	fields := make([]string, 0, 2*len(channels))

	for _, ch := range channels {
		fields = append(fields, valueOf(ch))
	}

	for _, ch := range channels {
		flag := "0"
		if ch.Latched {
			flag = "1"
		}

		fields = append(fields, flag)
	}

	return strings.Join(fields, ",")
}

// valueOf renders the latest value with two decimals.
func valueOf(ch telemetry.ChannelState) string {
	if !ch.HasValue {
		return missingValue
	}

	return strconv.FormatFloat(ch.Value, 'f', 2, 64)
}
