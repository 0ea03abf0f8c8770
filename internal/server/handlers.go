package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/config"
	"github.com/Tyrowin/roomchat/internal/protocol"
)

const maxRequestBody = 1 << 12

// Handlers exposes the chat service over HTTP and WebSocket.
type Handlers struct {
	svc            *chat.Service
	metrics        http.Handler
	logger         *slog.Logger
	maxMessageSize int64
	upgrader       websocket.Upgrader
}

// NewHandlers builds the HTTP handlers for svc. metricsHandler may be nil,
// in which case /metrics answers 404.
func NewHandlers(svc *chat.Service, cfg *config.Config, metricsHandler http.Handler, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if metricsHandler == nil {
		metricsHandler = http.NotFoundHandler()
	}
	if cfg.AllowsAllOrigins() {
		logger.Warn("origin.allow_all", "hint", "any site may open chat sockets")
	}
	policy := newOriginPolicy(cfg.AllowedOrigins, logger)

	return &Handlers{
		svc:            svc,
		metrics:        metricsHandler,
		logger:         logger,
		maxMessageSize: cfg.MaxMessageSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
	}
}

// WebSocket upgrades the request and runs one chat session over the
// connection until it ends.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws.upgrade_failed", "addr", r.RemoteAddr, "err", err)
		return
	}

	client := NewClient(r.Context(), conn, r.RemoteAddr, h.maxMessageSize, h.logger)
	defer client.Close()
	go client.keepalive()

	err = h.svc.Serve(client)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrJoinRejected), errors.Is(err, chat.ErrJoinRequired):
		h.logger.Info("ws.session_refused", "addr", r.RemoteAddr, "err", err)
	case errors.Is(err, chat.ErrStreamClosed):
		h.logger.Debug("ws.session_closed", "addr", r.RemoteAddr, "err", err)
	default:
		h.logger.Warn("ws.session_failed", "addr", r.RemoteAddr, "err", err)
	}
}

// CheckUsername handles POST /api/username/check.
func (h *Handlers) CheckUsername(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req protocol.CheckUsernameRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, h.svc.CheckUsername(req.UserName))
}

// ListRooms handles GET /api/rooms.
func (h *Handlers) ListRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.svc.ListRooms())
}

// Health reports that the process is serving.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Metrics serves the Prometheus exposition.
func (h *Handlers) Metrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// TestPage serves a small browser client for trying rooms by hand.
func (h *Handlers) TestPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		h.logger.Warn("http.write_failed", "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
