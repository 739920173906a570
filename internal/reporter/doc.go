// Package reporter implements the threshold-latched telemetry core.
//
// A Reporter validates samples, keeps the latest valid value of every
// channel, latches alarms until they are acknowledged and tracks when the
// next report is due. It never reads the clock and never blocks: the caller
// supplies timestamps and drives it from a single polling loop.
package reporter
