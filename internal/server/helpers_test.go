package server

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/config"
	"github.com/Tyrowin/roomchat/internal/metrics"
	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/ratelimit"
)

const testOrigin = "http://localhost:8080"

type testEnv struct {
	server  *httptest.Server
	svc     *chat.Service
	metrics *metrics.Collector
}

// newTestEnv serves the full route table over httptest. customize may adjust
// the default configuration before anything is built.
func newTestEnv(t *testing.T, customize func(cfg *config.Config)) *testEnv {
	t.Helper()

	cfg := config.NewConfig()
	if customize != nil {
		customize(cfg)
	}

	collector := metrics.New()
	reg := chat.NewRegistry(cfg.Rooms, cfg.RoomCapacity)
	svc := chat.NewService(reg, chat.Options{
		PollInterval:   10 * time.Millisecond,
		MaxMessageSize: int(cfg.MaxMessageSize),
		NewLimiter: func() chat.Limiter {
			return ratelimit.New(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval)
		},
		Metrics: collector,
	})

	handlers := NewHandlers(svc, cfg, collector.Handler(), nil)
	srv := httptest.NewServer(SetupRoutes(handlers, cfg.AllowedOrigins))
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, svc: svc, metrics: collector}
}

func (e *testEnv) wsURL() string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, resp, err := e.dialWithOrigin(testOrigin)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (e *testEnv) dialWithOrigin(origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, resp, err := dialer.Dial(e.wsURL(), header)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// joinRoom dials, sends a join request and returns the connection with the
// join response already read.
func (e *testEnv) joinRoom(t *testing.T, user, room string) (*websocket.Conn, protocol.JoinResponse) {
	t.Helper()
	conn := e.dial(t)
	sendEvent(t, conn, protocol.JoinRequest{UserName: user, RoomID: room})
	resp, ok := readEvent(t, conn).(protocol.JoinResponse)
	require.True(t, ok, "first server event must be a join response")
	return conn, resp
}

func (e *testEnv) scrapeMetrics(t *testing.T) string {
	t.Helper()
	resp, err := http.Get(e.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func sendEvent(t *testing.T, conn *websocket.Conn, event protocol.ClientEvent) {
	t.Helper()
	data, err := protocol.EncodeClient(event)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func readEvent(t *testing.T, conn *websocket.Conn) protocol.ServerEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	event, err := protocol.DecodeServer(data)
	require.NoError(t, err)
	return event
}

func expectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "expected no message, got %s", data)

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return
	}
	t.Fatalf("unexpected error while waiting for absence of message: %v", err)
}

func expectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		t.Fatal("connection was not closed by the server")
	}
}
