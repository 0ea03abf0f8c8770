// Package chat is the room and broadcast engine: the room registry with its
// global username set, the broadcast dispatcher, per-session outbound queues
// and the session state machine that ties a duplex stream to a room.
//
// The package knows nothing about transports. WebSocket, gRPC and SSH front
// ends adapt their connections to Stream and hand them to Service.Serve.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

var (
	// ErrStreamClosed marks transport errors after which nothing more can be sent or received.
	ErrStreamClosed = errors.New("chat: stream closed")
	// ErrInvalidEvent marks an inbound frame that could not be decoded into a client event.
	ErrInvalidEvent = errors.New("chat: invalid client event")
	// ErrJoinRequired is returned by Serve when the first event is not a join request.
	ErrJoinRequired = errors.New("chat: first event must be a join request")
	// ErrJoinRejected is returned by Serve when the registry refused the join.
	ErrJoinRejected = errors.New("chat: join rejected")
)

// Stream is one client's duplex connection as seen by the engine.
// Recv and Send are each called from a single goroutine.
type Stream interface {
	Context() context.Context
	Recv() (protocol.ClientEvent, error)
	Send(protocol.ServerEvent) error
}

// Limiter throttles inbound chat messages of one session.
type Limiter interface {
	Allow() bool
}

// Options tune sessions created by a Service.
type Options struct {
	QueueSize      int
	PollInterval   time.Duration
	MaxMessageSize int
	// NewLimiter builds a per-session limiter. Nil disables rate limiting.
	NewLimiter func() Limiter
	Metrics    Metrics
	Logger     *slog.Logger
}

const (
	defaultPollInterval   = 500 * time.Millisecond
	defaultMaxMessageSize = 4096
)

// Service bundles the registry and dispatcher and runs sessions against them.
type Service struct {
	Registry   *Registry
	Dispatcher *Dispatcher

	opts    Options
	metrics Metrics
	logger  *slog.Logger

	workers sync.WaitGroup
}

// NewService wires a dispatcher to registry and returns the engine.
func NewService(registry *Registry, opts Options) *Service {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Service{
		Registry:   registry,
		Dispatcher: NewDispatcher(registry, opts.Metrics, opts.Logger),
		opts:       opts,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
}

// CheckUsername reports whether name is free and reserves it when it is.
func (s *Service) CheckUsername(name string) protocol.CheckUsernameResponse {
	available, message := s.Registry.CheckAndReserve(name)
	s.logger.Info("username.check", "user", name, "available", available)
	return protocol.CheckUsernameResponse{Available: available, Message: message}
}

// ListRooms returns the advisory room listing.
func (s *Service) ListRooms() protocol.ListRoomsResponse {
	rooms := s.Registry.Snapshot()
	s.logger.Info("rooms.list", "count", len(rooms))
	return protocol.ListRoomsResponse{Rooms: rooms}
}

// Serve runs a session over stream until it ends. It returns nil after a
// normal leave or disconnect, ErrJoinRequired or ErrJoinRejected when the
// session never entered a room, and the write error when delivery failed.
func (s *Service) Serve(stream Stream) error {
	s.workers.Add(1)
	defer s.workers.Done()

	return newSession(s, stream).run()
}

// Wait blocks until every session goroutine has finished or timeout elapses.
func (s *Service) Wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
