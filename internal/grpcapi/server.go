package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/protocol"
)

// Server implements ChatServiceServer on top of a chat.Service.
type Server struct {
	svc    *chat.Service
	logger *slog.Logger
}

var _ ChatServiceServer = (*Server)(nil)

// NewServer returns a ChatServiceServer backed by svc.
func NewServer(svc *chat.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, logger: logger}
}

// NewGRPCServer builds a grpc.Server speaking the JSON codec with the chat
// service registered.
func NewGRPCServer(svc *chat.Service, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	srv := NewServer(svc, logger)
	opts = append([]grpc.ServerOption{
		grpc.ForceServerCodec(Codec()),
		grpc.ChainUnaryInterceptor(srv.logUnary),
	}, opts...)

	gs := grpc.NewServer(opts...)
	RegisterChatServiceServer(gs, srv)
	return gs
}

// CheckUsername reports availability and reserves the name when free.
func (s *Server) CheckUsername(_ context.Context, req *protocol.CheckUsernameRequest) (*protocol.CheckUsernameResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "missing request")
	}
	resp := s.svc.CheckUsername(req.UserName)
	return &resp, nil
}

// ListRooms returns every configured room with its participant count.
func (s *Server) ListRooms(context.Context, *protocol.ListRoomsRequest) (*protocol.ListRoomsResponse, error) {
	resp := s.svc.ListRooms()
	return &resp, nil
}

// Chat runs one chat session for the lifetime of the call. A rejected join
// ends the call with OK after the negative JoinResponse has been sent.
func (s *Server) Chat(stream ChatStream) error {
	err := s.svc.Serve(&chatStream{stream: stream})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chat.ErrJoinRejected):
		s.logger.Info("grpc.chat.rejected", "err", err)
		return nil
	case errors.Is(err, chat.ErrJoinRequired):
		return status.Error(codes.FailedPrecondition, "first message must be a join_request")
	default:
		if stream.Context().Err() != nil {
			return status.FromContextError(stream.Context().Err()).Err()
		}
		s.logger.Warn("grpc.chat.failed", "err", err)
		return status.Error(codes.Unavailable, err.Error())
	}
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug("grpc.unary", "method", info.FullMethod, "code", status.Code(err).String(), "took", time.Since(start))
	return resp, err
}

// chatStream adapts a gRPC bidi stream to chat.Stream.
type chatStream struct {
	stream ChatStream
}

func (c *chatStream) Context() context.Context {
	return c.stream.Context()
}

func (c *chatStream) Recv() (protocol.ClientEvent, error) {
	msg, err := c.stream.Recv()
	if err != nil {
		return nil, classify(err)
	}
	event, err := msg.Event()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chat.ErrInvalidEvent, err)
	}
	return event, nil
}

func (c *chatStream) Send(event protocol.ServerEvent) error {
	msg, err := protocol.WrapServer(event)
	if err != nil {
		return err
	}
	if err := c.stream.Send(&msg); err != nil {
		return classify(err)
	}
	return nil
}

// classify marks errors after which the call cannot continue.
func classify(err error) error {
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", chat.ErrStreamClosed, err)
	}
	switch status.Code(err) {
	case codes.Canceled, codes.DeadlineExceeded, codes.Unavailable:
		return fmt.Errorf("%w: %v", chat.ErrStreamClosed, err)
	}
	return err
}
