// Command telemetry-ack acknowledges latched alarms on a running agent.
package main

import "github.com/oshokin/alarm-telemetry/cmd/telemetry-ack/cmd"

func main() {
	cmd.Execute()
}
