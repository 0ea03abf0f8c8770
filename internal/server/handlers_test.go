package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/config"
	"github.com/Tyrowin/roomchat/internal/protocol"
)

func doRequest(t *testing.T, method, url, body string, header http.Header) *http.Response {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestCheckUsernameEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	url := env.server.URL + "/api/username/check"

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		want       *protocol.CheckUsernameResponse
	}{
		{
			name:       "free name is reserved",
			method:     http.MethodPost,
			body:       `{"user_name":"alice"}`,
			wantStatus: http.StatusOK,
			want:       &protocol.CheckUsernameResponse{Available: true, Message: "Username is available"},
		},
		{
			name:       "reserved name is taken",
			method:     http.MethodPost,
			body:       `{"user_name":"alice"}`,
			wantStatus: http.StatusOK,
			want:       &protocol.CheckUsernameResponse{Available: false, Message: "Username 'alice' is already taken"},
		},
		{
			name:       "empty name",
			method:     http.MethodPost,
			body:       `{"user_name":""}`,
			wantStatus: http.StatusOK,
			want:       &protocol.CheckUsernameResponse{Available: false, Message: "Username must not be empty"},
		},
		{
			name:       "bad json",
			method:     http.MethodPost,
			body:       `{"user_name":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wrong method",
			method:     http.MethodGet,
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, tt.method, url, tt.body, nil)
			require.Equal(t, tt.wantStatus, resp.StatusCode)
			require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			if tt.want == nil {
				return
			}
			var got protocol.CheckUsernameResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			require.Equal(t, *tt.want, got)
		})
	}
}

func TestListRoomsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	_, _ = env.joinRoom(t, "alice", "tech")

	resp := doRequest(t, http.MethodGet, env.server.URL+"/api/rooms", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got protocol.ListRoomsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, []protocol.RoomInfo{
		{RoomID: "general", ParticipantCount: 0},
		{RoomID: "tech", ParticipantCount: 1},
		{RoomID: "gaming", ParticipantCount: 0},
		{RoomID: "random", ParticipantCount: 0},
	}, got.Rooms)

	resp = doRequest(t, http.MethodDelete, env.server.URL+"/api/rooms", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCORSOnJSONAPI(t *testing.T) {
	env := newTestEnv(t, nil)

	preflight := http.Header{}
	preflight.Set("Origin", testOrigin)
	preflight.Set("Access-Control-Request-Method", http.MethodPost)
	preflight.Set("Access-Control-Request-Headers", "content-type")

	resp := doRequest(t, http.MethodOptions, env.server.URL+"/api/username/check", "", preflight)
	require.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))

	foreign := http.Header{}
	foreign.Set("Origin", "http://evil.example.com")
	resp = doRequest(t, http.MethodGet, env.server.URL+"/api/rooms", "", foreign)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHealthMetricsAndTestPage(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("health", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, env.server.URL+"/healthz", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Equal(t, "ok", body["status"])
	})

	t.Run("metrics", func(t *testing.T) {
		_, _ = env.joinRoom(t, "alice", "general")
		require.Contains(t, env.scrapeMetrics(t), `roomchat_sessions_active{room="general"} 1`)
	})

	t.Run("test page", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, env.server.URL+"/test", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Contains(t, string(body), "join_request")
	})
}

func TestWebSocketHandlerRejectsNonGet(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			resp := doRequest(t, method, env.server.URL+"/ws", "", nil)
			require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		})
	}
}

func TestMetricsHandlerDefaultsToNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	h := NewHandlers(env.svc, config.NewConfig(), nil, slog.Default())

	rec := httptest.NewRecorder()
	h.Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebSocketHandlerGETWithoutUpgrade(t *testing.T) {
	env := newTestEnv(t, nil)

	header := http.Header{}
	header.Set("Origin", testOrigin)
	resp := doRequest(t, http.MethodGet, env.server.URL+"/ws", "", header)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateServer(t *testing.T) {
	handler := http.NewServeMux()
	srv := CreateServer(":9999", handler)

	require.Equal(t, ":9999", srv.Addr)
	require.Equal(t, handler, srv.Handler)
	require.Equal(t, 15*time.Second, srv.ReadTimeout)
	require.Equal(t, 15*time.Second, srv.WriteTimeout)
	require.Equal(t, 60*time.Second, srv.IdleTimeout)
	require.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
}
