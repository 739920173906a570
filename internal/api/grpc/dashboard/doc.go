// Package dashboard implements the gRPC transport for the dashboard API.
//
// It adapts telemetry snapshots and acknowledgements to protobuf messages and
// exposes a server that calls into a provided business-service interface.
package dashboard
