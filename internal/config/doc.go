// Package config defines the telemetry agent settings and provides helpers to
// load, validate and save them in YAML format.
//
// The Config type holds the channel table with its thresholds, the sampling
// and reporting cadences, and the settings of every input and output
// collaborator (serial source, Redis broker, dashboard gRPC API, Timescale
// history and Prometheus metrics).
package config
