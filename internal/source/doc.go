// Package source implements the input collaborators of the telemetry agent.
//
// Every Source turns one read attempt into a telemetry.Sample: a simulated
// sensor, a comma-separated serial stream and a broker subscription that
// assembles per-axis updates into complete samples.
package source
