package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// State is the lifecycle position of a session.
type State int32

const (
	StateConnecting State = iota
	StateAwaitingJoin
	StateInRoom
	StateClosing
	StateClosed
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingJoin:
		return "awaiting-join"
	case StateInRoom:
		return "in-room"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

const maxConsecutiveWriteFailures = 3

// Session drives one stream through join, relay and teardown.
type Session struct {
	svc     *Service
	stream  Stream
	handle  *Handle
	limiter Limiter
	logger  *slog.Logger

	state   atomic.Int32
	cleanup sync.Once
}

func newSession(svc *Service, stream Stream) *Session {
	s := &Session{
		svc:    svc,
		stream: stream,
		logger: svc.logger,
	}
	if svc.opts.NewLimiter != nil {
		s.limiter = svc.opts.NewLimiter()
	}
	s.setState(StateConnecting)
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

func (s *Session) run() error {
	s.setState(StateAwaitingJoin)

	event, err := s.stream.Recv()
	if err != nil {
		if errors.Is(err, ErrInvalidEvent) {
			s.setState(StateRejected)
			s.logger.Debug("session.join.malformed", "err", err)
			return ErrJoinRequired
		}
		s.setState(StateClosed)
		return fmt.Errorf("chat: await join: %w", err)
	}

	join, ok := event.(protocol.JoinRequest)
	if !ok {
		s.setState(StateRejected)
		s.logger.Debug("session.join.missing", "first_event", fmt.Sprintf("%T", event))
		return ErrJoinRequired
	}

	if err := s.join(join); err != nil {
		return err
	}

	s.svc.workers.Add(1)
	go func() {
		defer s.svc.workers.Done()
		s.readLoop()
	}()

	return s.writeLoop()
}

func (s *Session) join(req protocol.JoinRequest) error {
	h := NewHandle(req.UserName, req.RoomID, s.svc.opts.QueueSize)
	s.logger = s.svc.logger.With("session", h.ID, "user", h.Username, "room", h.Room)

	result := s.svc.Dispatcher.Join(h)
	if !result.Accepted {
		s.setState(StateRejected)
		s.svc.metrics.JoinRejected(result.Err)
		// Frees a name reserved by this client's own check; a name held by
		// another live session is left untouched by Release.
		s.svc.Registry.Release(h.Username)
		s.logger.Warn("session.join.rejected", "reason", result.Reason)

		if err := s.stream.Send(protocol.JoinResponse{Success: false, Message: result.Reason}); err != nil {
			s.logger.Debug("session.join.reject_send_failed", "err", err)
		}
		return fmt.Errorf("%w: %w", ErrJoinRejected, result.Err)
	}

	s.handle = h
	s.setState(StateInRoom)
	s.svc.metrics.SessionOpened(h.Room)
	s.logger.Info("session.joined", "occupancy", result.Occupancy)
	return nil
}

func (s *Session) readLoop() {
	reason := "disconnect"
	defer func() { s.close(reason) }()

	for {
		event, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, ErrInvalidEvent) {
				s.logger.Warn("session.event.invalid", "err", err)
				continue
			}
			if isStreamEnd(err) {
				s.logger.Debug("session.recv.closed", "err", err)
			} else {
				s.logger.Warn("session.recv.error", "err", err)
			}
			return
		}

		if s.handleEvent(event) {
			reason = "leave"
			return
		}
	}
}

// handleEvent applies one inbound event and reports whether the session should end.
func (s *Session) handleEvent(event protocol.ClientEvent) bool {
	switch e := event.(type) {
	case protocol.ChatMessage:
		s.relay(e.Text)
		return false
	case protocol.LeaveRequest:
		if (e.UserName != "" && e.UserName != s.handle.Username) || (e.RoomID != "" && e.RoomID != s.handle.Room) {
			s.logger.Warn("session.leave.mismatch", "req_user", e.UserName, "req_room", e.RoomID)
			return false
		}
		return true
	case protocol.JoinRequest:
		s.logger.Warn("session.join.duplicate", "req_room", e.RoomID)
		return false
	default:
		s.logger.Warn("session.event.unexpected", "type", fmt.Sprintf("%T", event))
		return false
	}
}

func (s *Session) relay(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if len(text) > s.svc.opts.MaxMessageSize {
		s.logger.Warn("session.chat.too_large", "size", len(text), "limit", s.svc.opts.MaxMessageSize)
		return
	}
	if s.limiter != nil && !s.limiter.Allow() {
		s.logger.Warn("session.chat.rate_limited")
		return
	}

	s.logger.Info("session.chat", "text", text)
	s.svc.Dispatcher.BroadcastChat(s.handle.Room, s.handle.Username, text)
}

func (s *Session) writeLoop() error {
	ctx := s.stream.Context()
	failures := 0

	for {
		event, err := s.handle.Queue().Pop(s.svc.opts.PollInterval)
		switch {
		case errors.Is(err, ErrQueueStopped):
			s.flush()
			return nil
		case errors.Is(err, ErrQueueTimeout):
			if !s.handle.Active() {
				return nil
			}
			if ctx.Err() != nil {
				s.close("context done")
				return nil
			}
			continue
		}

		if err := s.stream.Send(event); err != nil {
			if isStreamEnd(err) {
				s.close("write closed")
				return nil
			}

			failures++
			s.logger.Warn("session.send.failed", "err", err, "consecutive", failures)
			if failures >= maxConsecutiveWriteFailures {
				s.close("write failures")
				return fmt.Errorf("chat: %d consecutive write failures: %w", failures, err)
			}
			continue
		}
		failures = 0
	}
}

// flush writes events that were queued before the stop signal.
func (s *Session) flush() {
	for _, event := range s.handle.Queue().Drain() {
		if err := s.stream.Send(event); err != nil {
			return
		}
	}
}

// close runs the Closing transition exactly once: leave the room, tell the
// others, release the name, stop the outbound loop.
func (s *Session) close(reason string) {
	s.cleanup.Do(func() {
		from := s.State()
		s.setState(StateClosing)
		h := s.handle

		occupancy, removed := s.svc.Dispatcher.Leave(h.Room, h.Username)
		if removed {
			s.svc.metrics.SessionClosed(h.Room)
		}
		s.svc.Registry.Release(h.Username)
		h.stop()

		s.setState(StateClosed)
		s.logger.Info("session.left", "reason", reason, "from", from, "occupancy", occupancy)
	})
}

func isStreamEnd(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, ErrStreamClosed) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
