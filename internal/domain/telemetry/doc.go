// Package telemetry contains core domain types for threshold-latched telemetry.
//
// It defines Bounds (optional alarm thresholds), Value and Sample (one read
// attempt), AlarmEvent (a latch transition) and Snapshot (the reported view of
// every channel), Actor and Acknowledgement (who cleared a latch) with Clone helpers to avoid leaking internal references.
package telemetry
