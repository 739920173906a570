// Package agent runs the telemetry polling loop.
//
// The agent reads one sample per tick from the configured source, feeds it to
// the reporter, and fans the result out to the text report, CSV export, broker,
// history and dashboard sinks. Acknowledgements arrive through the dashboard
// gRPC API and are applied under the same lock as samples.
package agent
