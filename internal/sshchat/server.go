// Package sshchat lets terminal users chat over plain SSH. The SSH user name
// becomes the chat username and the first line typed picks the room.
package sshchat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/crypto/ssh"
)

// SessionHandler handles an accepted SSH "session" channel until it ends.
type SessionHandler func(ctx context.Context, conn *ssh.ServerConn, channel ssh.Channel, requests <-chan *ssh.Request)

// Server accepts SSH connections and hands session channels to a handler.
type Server struct {
	Addr   string
	Config *ssh.ServerConfig

	logger *slog.Logger
	conns  sync.WaitGroup
}

// New creates a Server that accepts any client without authentication.
func New(addr string, signer ssh.Signer, logger *slog.Logger) *Server {
	cfg := &ssh.ServerConfig{
		NoClientAuth: true,
	}
	cfg.AddHostKey(signer)

	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		Addr:   addr,
		Config: cfg,
		logger: logger,
	}
}

// ListenAndServe listens on s.Addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, handler SessionHandler) error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("sshchat: listen %q: %w", s.Addr, err)
	}
	return s.Serve(ctx, listener, handler)
}

// Serve accepts connections on listener until ctx is cancelled. It returns
// ctx.Err() after a clean stop, once every connection has been torn down.
func (s *Server) Serve(ctx context.Context, listener net.Listener, handler SessionHandler) error {
	if handler == nil {
		return errors.New("sshchat: session handler required")
	}
	defer listener.Close()
	defer s.conns.Wait()

	shutdown := make(chan struct{})
	defer close(shutdown)

	go func() {
		select {
		case <-ctx.Done():
			if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("ssh.listener_close", "err", err)
			}
		case <-shutdown:
		}
	}()

	s.logger.Info("ssh.listening", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Warn("ssh.accept", "err", err)
			continue
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConn(ctx, conn, handler)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, tcpConn net.Conn, handler SessionHandler) {
	defer tcpConn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(tcpConn, s.Config)
	if err != nil {
		s.logger.Debug("ssh.handshake_failed", "addr", tcpConn.RemoteAddr().String(), "err", err)
		return
	}
	defer sshConn.Close()

	s.logger.Info("ssh.connected", "addr", sshConn.RemoteAddr().String(), "user", sshConn.User(), "client", string(sshConn.ClientVersion()))

	go ssh.DiscardRequests(reqs)

	var sessions sync.WaitGroup
	defer sessions.Wait()

	for {
		select {
		case <-ctx.Done():
			_ = sshConn.Close()
			return
		case newChannel, ok := <-chans:
			if !ok {
				return
			}
			if newChannel.ChannelType() != "session" {
				_ = newChannel.Reject(ssh.UnknownChannelType, "only session channels are supported")
				continue
			}

			channel, requests, err := newChannel.Accept()
			if err != nil {
				s.logger.Warn("ssh.channel_accept", "err", err)
				continue
			}

			sessions.Add(1)
			go func() {
				defer sessions.Done()
				handler(ctx, sshConn, channel, requests)
			}()
		}
	}
}
