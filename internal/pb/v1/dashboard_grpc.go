package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Full method names of DashboardService.
const (
	DashboardServiceGetPropertiesFullMethodName    = "/telemetry.v1.DashboardService/GetProperties"
	DashboardServiceAcknowledgeAlarmFullMethodName = "/telemetry.v1.DashboardService/AcknowledgeAlarm"
	DashboardServiceWatchPropertiesFullMethodName  = "/telemetry.v1.DashboardService/WatchProperties"
)

// DashboardServiceClient is the client API for DashboardService.
type DashboardServiceClient interface {
	// GetProperties returns every channel with its latest value and latch.
	GetProperties(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	// AcknowledgeAlarm clears the latch of one channel.
	AcknowledgeAlarm(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	// WatchProperties sends the full property set, then only the pairs that changed.
	WatchProperties(
		ctx context.Context,
		in *emptypb.Empty,
		opts ...grpc.CallOption,
	) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type dashboardServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewDashboardServiceClient creates a client over an existing connection.
func NewDashboardServiceClient(cc grpc.ClientConnInterface) DashboardServiceClient {
	return &dashboardServiceClient{cc: cc}
}

func (c *dashboardServiceClient) GetProperties(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)

	if err := c.cc.Invoke(ctx, DashboardServiceGetPropertiesFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *dashboardServiceClient) AcknowledgeAlarm(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)

	if err := c.cc.Invoke(ctx, DashboardServiceAcknowledgeAlarmFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *dashboardServiceClient) WatchProperties(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(
		ctx,
		&DashboardServiceDesc.Streams[0],
		DashboardServiceWatchPropertiesFullMethodName,
		opts...)
	if err != nil {
		return nil, err
	}

	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}

	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}

	return x, nil
}

// DashboardServiceServer is the server API for DashboardService.
type DashboardServiceServer interface {
	GetProperties(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	AcknowledgeAlarm(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	WatchProperties(in *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error
}

// UnimplementedDashboardServiceServer answers every method with codes.Unimplemented.
type UnimplementedDashboardServiceServer struct{}

// GetProperties is not implemented.
func (UnimplementedDashboardServiceServer) GetProperties(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetProperties not implemented")
}

// AcknowledgeAlarm is not implemented.
func (UnimplementedDashboardServiceServer) AcknowledgeAlarm(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method AcknowledgeAlarm not implemented")
}

// WatchProperties is not implemented.
func (UnimplementedDashboardServiceServer) WatchProperties(
	*emptypb.Empty,
	grpc.ServerStreamingServer[structpb.Struct],
) error {
	return status.Error(codes.Unimplemented, "method WatchProperties not implemented")
}

// RegisterDashboardServiceServer registers srv on s.
func RegisterDashboardServiceServer(s grpc.ServiceRegistrar, srv DashboardServiceServer) {
	s.RegisterService(&DashboardServiceDesc, srv)
}

func dashboardServiceGetPropertiesHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(DashboardServiceServer).GetProperties(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: DashboardServiceGetPropertiesFullMethodName,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DashboardServiceServer).GetProperties(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

func dashboardServiceAcknowledgeAlarmHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(DashboardServiceServer).AcknowledgeAlarm(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: DashboardServiceAcknowledgeAlarmFullMethodName,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DashboardServiceServer).AcknowledgeAlarm(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, in, info, handler)
}

func dashboardServiceWatchPropertiesHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	return srv.(DashboardServiceServer).WatchProperties(
		in,
		&grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream},
	)
}

// DashboardServiceDesc is the grpc.ServiceDesc for DashboardService.
var DashboardServiceDesc = grpc.ServiceDesc{
	ServiceName: "telemetry.v1.DashboardService",
	HandlerType: (*DashboardServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetProperties",
			Handler:    dashboardServiceGetPropertiesHandler,
		},
		{
			MethodName: "AcknowledgeAlarm",
			Handler:    dashboardServiceAcknowledgeAlarmHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchProperties",
			Handler:       dashboardServiceWatchPropertiesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "telemetry/v1/dashboard.proto",
}
