// Command telemetry-agent samples sensors, latches alarms and reports them.
package main

import "github.com/oshokin/alarm-telemetry/cmd/telemetry-agent/cmd"

func main() {
	cmd.Execute()
}
