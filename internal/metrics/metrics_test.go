package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
)

func TestCollectorTracksEngineEvents(t *testing.T) {
	c := New()

	c.SessionOpened("general")
	c.SessionOpened("general")
	c.SessionClosed("general")
	require.Equal(t, 1.0, testutil.ToFloat64(c.sessions.WithLabelValues("general")))

	c.JoinRejected(chat.ErrRoomFull)
	c.JoinRejected(chat.ErrRoomFull)
	c.JoinRejected(nil)
	require.Equal(t, 2.0, testutil.ToFloat64(c.rejected.WithLabelValues("room_full")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.rejected.WithLabelValues("other")))

	c.Broadcast("tech", chat.KindChat)
	c.Dropped("tech")
	require.Equal(t, 1.0, testutil.ToFloat64(c.broadcasts.WithLabelValues("tech", chat.KindChat)))
	require.Equal(t, 1.0, testutil.ToFloat64(c.dropped.WithLabelValues("tech")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	c := New()
	c.SessionOpened("random")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `roomchat_sessions_active{room="random"} 1`)
}
