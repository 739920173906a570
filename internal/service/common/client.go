//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/oshokin/alarm-telemetry/internal/config"
	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
	pb "github.com/oshokin/alarm-telemetry/internal/pb/v1"
)

// Client wraps the gRPC DashboardService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the agent.
	conn *grpc.ClientConn
	// api is the DashboardService client interface.
	api pb.DashboardServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// dialOptions are appended to the default transport options.
	dialOptions []grpc.DialOption
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithDialOptions adds gRPC dial options, for example a custom dialer.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errChannelRequired is returned when no channel is given to acknowledge.
	errChannelRequired = errors.New("channel must be provided")
)

// Dial establishes a gRPC connection to the telemetry agent.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	dialOptions := append(
		[]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
		client.dialOptions...,
	)

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(address, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial telemetry agent: %w", err)
	}

	client.conn = conn
	client.api = pb.NewDashboardServiceClient(conn)

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// GetProperties retrieves every channel with its latest value and latch.
func (c *Client) GetProperties(ctx context.Context) (*pb.Properties, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.GetProperties(callCtx, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("get properties: %w", err)
	}

	props, err := pb.PropertiesFromStruct(resp)
	if err != nil {
		return nil, fmt.Errorf("get properties: %w", err)
	}

	return props, nil
}

// AcknowledgeAlarm clears the latch of channel on behalf of actor.
func (c *Client) AcknowledgeAlarm(
	ctx context.Context,
	actor *telemetry.Actor,
	channel string,
) (*pb.AcknowledgeResponse, error) {
	if channel == "" {
		return nil, errChannelRequired
	}

	request := &pb.AcknowledgeRequest{Channel: channel}
	if actor != nil {
		request.Hostname = actor.Hostname
		request.Username = actor.Username
	}

	in, err := request.ToStruct()
	if err != nil {
		return nil, err
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.AcknowledgeAlarm(callCtx, in)
	if err != nil {
		return nil, fmt.Errorf("acknowledge alarm: %w", err)
	}

	ack, err := pb.AcknowledgeResponseFromStruct(resp)
	if err != nil {
		return nil, fmt.Errorf("acknowledge alarm: %w", err)
	}

	return ack, nil
}

// WatchProperties calls handle with the full property set, then with every change,
// until ctx is cancelled, the agent ends the stream or handle fails.
// The stream has no call timeout.
func (c *Client) WatchProperties(ctx context.Context, handle func(*pb.Properties) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.api.WatchProperties(ctx, new(emptypb.Empty))
	if err != nil {
		return fmt.Errorf("watch properties: %w", err)
	}

	for {
		resp, err := stream.Recv()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("watch properties: %w", err)
		}

		props, err := pb.PropertiesFromStruct(resp)
		if err != nil {
			return fmt.Errorf("watch properties: %w", err)
		}

		if err = handle(props); err != nil {
			return err
		}
	}
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
