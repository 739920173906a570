// Package ack implements the telemetry-ack command.
//
// It either lists the dashboard properties of a running agent or acknowledges
// the alarm of one channel, retrying while the agent is unreachable.
package ack
