package sshchat

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/protocol"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type scriptedRW struct {
	io.Reader
	io.Writer
}

func fixedRooms() protocol.ListRoomsResponse {
	return protocol.ListRoomsResponse{Rooms: []protocol.RoomInfo{
		{RoomID: "general", ParticipantCount: 1},
		{RoomID: "tech", ParticipantCount: 0},
	}}
}

func newScriptedTerminal(t *testing.T, input string, echo bool) (*Terminal, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	term := NewTerminal(context.Background(), scriptedRW{strings.NewReader(input), out}, "alice", fixedRooms, echo, 64)
	t.Cleanup(term.Close)
	return term, out
}

func recvAll(t *testing.T, term *Terminal) ([]protocol.ClientEvent, error) {
	t.Helper()
	var events []protocol.ClientEvent
	for i := 0; i < 16; i++ {
		event, err := term.Recv()
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	t.Fatal("terminal never ended")
	return nil, nil
}

func TestTerminalTranslatesLines(t *testing.T) {
	term, out := newScriptedTerminal(t, "general\r\n\r\nhello there \n/rooms\n/leave\n", false)

	events, err := recvAll(t, term)
	require.ErrorIs(t, err, chat.ErrStreamClosed)
	require.Equal(t, []protocol.ClientEvent{
		protocol.JoinRequest{UserName: "alice", RoomID: "general"},
		protocol.ChatMessage{Text: "hello there"},
		protocol.LeaveRequest{UserName: "alice", RoomID: "general"},
	}, events)
	require.Contains(t, out.String(), "Rooms: general (1), tech (0)")
}

func TestTerminalCtrlDLeavesRoom(t *testing.T) {
	term, _ := newScriptedTerminal(t, "general\nhi\x04ignored\n", false)

	events, err := recvAll(t, term)
	require.ErrorIs(t, err, chat.ErrStreamClosed)
	require.Equal(t, []protocol.ClientEvent{
		protocol.JoinRequest{UserName: "alice", RoomID: "general"},
		protocol.LeaveRequest{UserName: "alice", RoomID: "general"},
	}, events)
}

func TestTerminalCtrlCDisconnects(t *testing.T) {
	term, out := newScriptedTerminal(t, "general\n\x03", true)

	events, err := recvAll(t, term)
	require.ErrorIs(t, err, chat.ErrStreamClosed)
	require.Len(t, events, 1)
	require.Contains(t, out.String(), "^C")
}

func TestTerminalLeaveBeforeJoin(t *testing.T) {
	term, _ := newScriptedTerminal(t, "/leave\n", false)

	_, err := term.Recv()
	require.ErrorIs(t, err, chat.ErrStreamClosed)
}

func TestTerminalLineEditing(t *testing.T) {
	term, out := newScriptedTerminal(t, "genx\x7feral\n", true)

	event, err := term.Recv()
	require.NoError(t, err)
	require.Equal(t, protocol.JoinRequest{UserName: "alice", RoomID: "general"}, event)
	require.Contains(t, out.String(), "\b \b")
}

func TestTerminalReturnsTrailingTextBeforeEOF(t *testing.T) {
	term, _ := newScriptedTerminal(t, "general\nbye", false)

	events, err := recvAll(t, term)
	require.ErrorIs(t, err, chat.ErrStreamClosed)
	require.Equal(t, protocol.ChatMessage{Text: "bye"}, events[len(events)-1])
}

func TestTerminalRendersServerEvents(t *testing.T) {
	term, out := newScriptedTerminal(t, "", false)

	stamp := time.Date(2024, 1, 2, 15, 4, 5, 0, time.Local).Unix()
	require.NoError(t, term.Send(protocol.JoinResponse{Success: true, Message: "Welcome to room 'general'! Users online: 1"}))
	require.NoError(t, term.Send(protocol.BroadcastMessage{SenderName: "bob", Text: "hi", Timestamp: stamp}))
	require.NoError(t, term.Send(protocol.UserJoinedNotification{UserName: "carol", CurrentCount: 3}))
	require.NoError(t, term.Send(protocol.UserLeftNotification{UserName: "carol", CurrentCount: 2}))

	require.Equal(t,
		"[system] Welcome to room 'general'! Users online: 1\r\n"+
			"[15:04:05] bob: hi\r\n"+
			"* carol joined (3 online)\r\n"+
			"* carol left (2 online)\r\n",
		out.String())
}

func TestTerminalIgnoresInputPastLimit(t *testing.T) {
	term, _ := newScriptedTerminal(t, strings.Repeat("a", 100)+"\n", false)

	event, err := term.Recv()
	require.NoError(t, err)
	require.Len(t, event.(protocol.JoinRequest).RoomID, 64)
}
