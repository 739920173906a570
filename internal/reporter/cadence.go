package reporter

import "time"

// Cadence remembers when an output last reported and tells when it is due again.
// The zero value has never reported, so the first check is always due.
type Cadence struct {
	last     time.Time
	reported bool
}

// Due reports whether at least interval has elapsed since the last report.
func (c *Cadence) Due(at time.Time, interval time.Duration) bool {
	if !c.reported {
		return true
	}

	return ReportDue(c.last, at, interval)
}

// Mark records at as the time of the last successful report.
func (c *Cadence) Mark(at time.Time) {
	c.last = at
	c.reported = true
}

// Last returns the last report time and whether a report was ever made.
func (c *Cadence) Last() (time.Time, bool) {
	return c.last, c.reported
}

// ReportDue returns true iff now - last >= interval.
func ReportDue(last, now time.Time, interval time.Duration) bool {
	return now.Sub(last) >= interval
}
