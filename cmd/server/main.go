package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/config"
	"github.com/Tyrowin/roomchat/internal/metrics"
	"github.com/Tyrowin/roomchat/internal/ratelimit"
	"github.com/Tyrowin/roomchat/internal/server"
)

const reservationSweepInterval = 15 * time.Second

func main() {
	cfg := config.Load(".env")
	logger := config.NewLogger(cfg.Env, os.Stdout)

	collector := metrics.New()
	registry := chat.NewRegistry(cfg.Rooms, cfg.RoomCapacity,
		chat.WithReservationTTL(cfg.ReservationTTL),
		chat.WithRegistryLogger(logger),
	)

	svc := chat.NewService(registry, chat.Options{
		QueueSize:      cfg.QueueSize,
		PollInterval:   cfg.PollInterval,
		MaxMessageSize: int(cfg.MaxMessageSize),
		NewLimiter: func() chat.Limiter {
			return ratelimit.New(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval)
		},
		Metrics: collector,
		Logger:  logger,
	})

	srv, err := server.New(cfg, svc, collector.Handler(), logger)
	if err != nil {
		log.Fatalf("failed to prepare server: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go registry.Run(ctx, reservationSweepInterval)

	logger.Info("server.starting", "http", cfg.Port, "grpc", cfg.GRPCAddr, "ssh", cfg.SSHAddr, "rooms", registry.Rooms())
	if err := srv.Run(ctx); err != nil {
		logger.Error("server.stopped", "err", err)
		cancel()
		os.Exit(1)
	}
	logger.Info("server.stopped")
}
