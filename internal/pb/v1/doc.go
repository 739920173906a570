// Package pb describes the telemetry.v1.DashboardService gRPC API.
//
// Messages travel as protobuf well-known types (google.protobuf.Struct and
// google.protobuf.Empty). The typed wrappers in this package convert between
// those generic messages and the fields each RPC expects, so neither the
// server nor the client touches raw Struct fields.
package pb
