package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "chat.ChatService"

// Full method names.
const (
	CheckUsernameMethod = "/" + ServiceName + "/CheckUsername"
	ListRoomsMethod     = "/" + ServiceName + "/ListRooms"
	ChatMethod          = "/" + ServiceName + "/Chat"
)

// ChatStream is the server side of the bidirectional Chat call.
type ChatStream = grpc.BidiStreamingServer[protocol.ClientMessage, protocol.ServerMessage]

// ChatServiceServer is the server API for chat.ChatService.
type ChatServiceServer interface {
	CheckUsername(context.Context, *protocol.CheckUsernameRequest) (*protocol.CheckUsernameResponse, error)
	ListRooms(context.Context, *protocol.ListRoomsRequest) (*protocol.ListRoomsResponse, error)
	Chat(ChatStream) error
}

// RegisterChatServiceServer registers srv on s.
func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatServiceDesc, srv)
}

func checkUsernameHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(protocol.CheckUsernameRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).CheckUsername(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: CheckUsernameMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).CheckUsername(ctx, req.(*protocol.CheckUsernameRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listRoomsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(protocol.ListRoomsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).ListRooms(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ListRoomsMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).ListRooms(ctx, req.(*protocol.ListRoomsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func chatHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ChatServiceServer).Chat(&grpc.GenericServerStream[protocol.ClientMessage, protocol.ServerMessage]{ServerStream: stream})
}

// ChatServiceDesc describes chat.ChatService for grpc.Server.RegisterService.
var ChatServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CheckUsername",
			Handler:    checkUsernameHandler,
		},
		{
			MethodName: "ListRooms",
			Handler:    listRoomsHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Chat",
			Handler:       chatHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "chat.proto",
}
