package dashboard

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
	pb "github.com/oshokin/alarm-telemetry/internal/pb/v1"
	"github.com/oshokin/alarm-telemetry/internal/reporter"
	tracker "github.com/oshokin/alarm-telemetry/internal/sink/dashboard"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	Properties(ctx context.Context) telemetry.Snapshot
	WatchProperties(ctx context.Context) (telemetry.Snapshot, PropertyWatch)
	AcknowledgeAlarm(ctx context.Context, actor *telemetry.Actor, channel string) (*telemetry.Acknowledgement, error)
}

// PropertyWatch yields property deltas until Updates is closed.
type PropertyWatch interface {
	// Updates is closed when the watch ends.
	Updates() <-chan telemetry.Snapshot
	// Err tells why Updates was closed.
	Err() error
	// Close stops the watch.
	Close()
}

// Server implements the DashboardService gRPC API.
type Server struct {
	pb.UnimplementedDashboardServiceServer

	// service provides the business logic behind every call.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// GetProperties returns the current dashboard property set.
func (s *Server) GetProperties(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	response, err := toProtoProperties(s.service.Properties(ctx)).ToStruct()
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to encode properties")
	}

	return response, nil
}

// WatchProperties streams the full property set, then every change of a (value, latch) pair.
func (s *Server) WatchProperties(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()

	current, watch := s.service.WatchProperties(ctx)
	defer watch.Close()

	if err := sendProperties(stream, current); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case delta, ok := <-watch.Updates():
			if !ok {
				return watchStatus(watch.Err())
			}

			if err := sendProperties(stream, delta); err != nil {
				return err
			}
		}
	}
}

// AcknowledgeAlarm clears the latch of the requested channel.
func (s *Server) AcknowledgeAlarm(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := pb.AcknowledgeRequestFromStruct(in)
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	if req.GetChannel() == "" {
		return nil, status.Error(codes.InvalidArgument, "channel is required")
	}

	actor := &telemetry.Actor{
		Hostname: req.Hostname,
		Username: req.Username,
	}

	ack, err := s.service.AcknowledgeAlarm(ctx, actor, req.Channel)
	switch {
	case err == nil:
	case errors.Is(err, reporter.ErrUnknownChannel):
		return nil, status.Errorf(codes.NotFound, "unknown channel %q", req.Channel)
	default:
		return nil, status.Error(codes.Internal, "unable to acknowledge alarm")
	}

	response, err := toProtoAcknowledgement(ack).ToStruct()
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to encode acknowledgement")
	}

	return response, nil
}

// sendProperties encodes and sends one property message.
func sendProperties(stream grpc.ServerStreamingServer[structpb.Struct], snapshot telemetry.Snapshot) error {
	message, err := toProtoProperties(snapshot).ToStruct()
	if err != nil {
		return status.Error(codes.Internal, "unable to encode properties")
	}

	return stream.Send(message)
}

// watchStatus maps the reason a watch ended to a status the client can act on.
func watchStatus(err error) error {
	switch {
	case errors.Is(err, tracker.ErrLagged):
		return status.Error(codes.ResourceExhausted, "watcher fell behind, reconnect to resync")
	case errors.Is(err, tracker.ErrClosed):
		return status.Error(codes.Unavailable, "agent is shutting down")
	default:
		return nil
	}
}

// toProtoProperties converts a snapshot into the GetProperties response.
func toProtoProperties(snapshot telemetry.Snapshot) *pb.Properties {
	channels := make([]*pb.Channel, 0, len(snapshot.Channels))

	for _, state := range snapshot.Channels {
		ch := &pb.Channel{
			Name:    state.Name,
			Latched: state.Latched,
		}

		if state.HasValue {
			value := state.Value
			ch.Value = &value
		}

		if state.Bounds.HasLow {
			low := state.Bounds.Low
			ch.Low = &low
		}

		if state.Bounds.HasHigh {
			high := state.Bounds.High
			ch.High = &high
		}

		channels = append(channels, ch)
	}

	return &pb.Properties{
		UpdatedAt: snapshot.At,
		Channels:  channels,
	}
}

// toProtoAcknowledgement converts a domain acknowledgement into the response message.
func toProtoAcknowledgement(ack *telemetry.Acknowledgement) *pb.AcknowledgeResponse {
	if ack == nil {
		return &pb.AcknowledgeResponse{}
	}

	response := &pb.AcknowledgeResponse{
		Channel:        ack.Channel,
		AcknowledgedAt: ack.At,
	}

	if ack.Actor != nil {
		response.Hostname = ack.Actor.Hostname
		response.Username = ack.Actor.Username
	}

	return response
}
