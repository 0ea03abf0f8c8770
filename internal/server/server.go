package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/config"
	"github.com/Tyrowin/roomchat/internal/grpcapi"
	"github.com/Tyrowin/roomchat/internal/sshchat"
)

const shutdownTimeout = 10 * time.Second

// Server runs every configured listener around a single chat.Service.
type Server struct {
	cfg    *config.Config
	svc    *chat.Service
	logger *slog.Logger

	http *http.Server
	grpc *grpc.Server
	ssh  *sshchat.Server
}

// New prepares the HTTP listener plus the gRPC and SSH listeners when their
// addresses are configured. Nothing is bound until Run.
func New(cfg *config.Config, svc *chat.Service, metricsHandler http.Handler, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	handlers := NewHandlers(svc, cfg, metricsHandler, logger)
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		logger: logger,
		http:   CreateServer(cfg.Port, SetupRoutes(handlers, cfg.AllowedOrigins)),
	}

	if cfg.GRPCAddr != "" {
		s.grpc = grpcapi.NewGRPCServer(svc, logger)
	}

	if cfg.SSHAddr != "" {
		signer, err := sshchat.LoadOrGenerateSigner(cfg.SSHHostKey)
		if err != nil {
			return nil, fmt.Errorf("server: prepare ssh host key: %w", err)
		}
		s.ssh = sshchat.New(cfg.SSHAddr, signer, logger)
	}

	return s, nil
}

// Run serves until ctx ends or a listener fails, then shuts everything down
// and waits for open sessions to finish their cleanup.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Request contexts, including upgraded sockets, end with ctx.
	s.http.BaseContext = func(net.Listener) context.Context { return ctx }

	errs := make(chan error, 3)

	go func() {
		if err := StartServer(s.http, s.logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http: %w", err)
		}
	}()

	if s.grpc != nil {
		lis, err := net.Listen("tcp", s.cfg.GRPCAddr)
		if err != nil {
			cancel()
			return errors.Join(fmt.Errorf("grpc: listen %q: %w", s.cfg.GRPCAddr, err), s.shutdown(nil))
		}
		go func() {
			s.logger.Info("grpc.listening", "addr", lis.Addr().String())
			if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errs <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	var sshDone chan struct{}
	if s.ssh != nil {
		sshDone = make(chan struct{})
		handler := sshchat.Handler(s.svc, int(s.cfg.MaxMessageSize), s.logger)
		go func() {
			defer close(sshDone)
			if err := s.ssh.ListenAndServe(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
				errs <- fmt.Errorf("ssh: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("server.stopping")
	case runErr = <-errs:
		s.logger.Error("server.listener_failed", "err", runErr)
	}
	cancel()

	return errors.Join(runErr, s.shutdown(sshDone))
}

func (s *Server) shutdown(sshDone <-chan struct{}) error {
	var errs []error

	if err := ShutdownServer(s.http, shutdownTimeout, s.logger); err != nil {
		errs = append(errs, fmt.Errorf("http: %w", err))
	}

	// Chat calls never finish on their own, so a graceful stop would only
	// wait out the timeout.
	if s.grpc != nil {
		s.grpc.Stop()
		s.logger.Info("grpc.stopped")
	}

	if sshDone != nil {
		select {
		case <-sshDone:
			s.logger.Info("ssh.stopped")
		case <-time.After(shutdownTimeout):
			errs = append(errs, errors.New("ssh: shutdown timed out"))
		}
	}

	if err := s.svc.Wait(shutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("sessions: %w", err))
	}

	return errors.Join(errs...)
}
