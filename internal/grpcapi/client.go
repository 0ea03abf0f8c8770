package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// ChatClientStream is the client side of the bidirectional Chat call.
type ChatClientStream = grpc.BidiStreamingClient[protocol.ClientMessage, protocol.ServerMessage]

// Client calls chat.ChatService over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc. Every call forces the JSON codec.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// CheckUsername asks whether name is free, reserving it when it is.
func (c *Client) CheckUsername(ctx context.Context, name string, opts ...grpc.CallOption) (*protocol.CheckUsernameResponse, error) {
	out := new(protocol.CheckUsernameResponse)
	in := &protocol.CheckUsernameRequest{UserName: name}
	if err := c.cc.Invoke(ctx, CheckUsernameMethod, in, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRooms fetches the room listing.
func (c *Client) ListRooms(ctx context.Context, opts ...grpc.CallOption) (*protocol.ListRoomsResponse, error) {
	out := new(protocol.ListRoomsResponse)
	if err := c.cc.Invoke(ctx, ListRoomsMethod, &protocol.ListRoomsRequest{}, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// Chat opens a chat stream. The first message sent must be a join_request.
func (c *Client) Chat(ctx context.Context, opts ...grpc.CallOption) (ChatClientStream, error) {
	stream, err := c.cc.NewStream(ctx, &ChatServiceDesc.Streams[0], ChatMethod, c.callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[protocol.ClientMessage, protocol.ServerMessage]{ClientStream: stream}, nil
}

func (c *Client) callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.ForceCodec(Codec())}, opts...)
}
