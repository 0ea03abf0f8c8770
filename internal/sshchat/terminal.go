package sshchat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/protocol"
)

const (
	ctrlC      = 0x03
	ctrlD      = 0x04
	backspace  = '\b'
	deleteChar = 0x7f

	clearLine = "\r\x1b[K"
)

var (
	errInterrupted = errors.New("sshchat: interrupted")
	errHangup      = errors.New("sshchat: end of input")
)

// RoomLister returns the current room listing.
type RoomLister func() protocol.ListRoomsResponse

// Terminal turns a line-oriented byte stream into chat events. The first
// non-empty line is the room to join; "/leave" or Ctrl+D leaves and "/rooms"
// prints the listing without reaching the room.
type Terminal struct {
	reader *bufio.Reader
	out    io.Writer
	user   string
	rooms  RoomLister
	echo   bool

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex
	line    *lineBuffer

	room    string
	joined  bool
	leaving bool
	eof     bool
}

var _ chat.Stream = (*Terminal)(nil)

// NewTerminal reads input from rw and writes rendered events back to it.
// With echo set, typed characters are written back as a pty would expect.
func NewTerminal(ctx context.Context, rw io.ReadWriter, user string, rooms RoomLister, echo bool, maxLine int) *Terminal {
	ctx, cancel := context.WithCancel(ctx)
	return &Terminal{
		reader: bufio.NewReader(rw),
		out:    rw,
		user:   user,
		rooms:  rooms,
		echo:   echo,
		ctx:    ctx,
		cancel: cancel,
		line:   newLineBuffer(maxLine),
	}
}

// Context ends when the terminal is closed or its parent context ends.
func (t *Terminal) Context() context.Context {
	return t.ctx
}

// Close ends the terminal's context.
func (t *Terminal) Close() {
	t.cancel()
}

// Greet prints the welcome banner and room listing.
func (t *Terminal) Greet() error {
	if err := t.println(fmt.Sprintf("Welcome, %s!", t.user)); err != nil {
		return err
	}
	if err := t.printRooms(); err != nil {
		return err
	}
	return t.println("Type a room name and press enter. /rooms lists rooms, /leave or Ctrl+D exits.")
}

// Recv blocks until the next complete line and translates it.
func (t *Terminal) Recv() (protocol.ClientEvent, error) {
	if t.leaving {
		return nil, fmt.Errorf("%w: left", chat.ErrStreamClosed)
	}

	for {
		line, err := t.readLine()
		switch {
		case errors.Is(err, errHangup):
			if t.joined {
				return t.leave(), nil
			}
			return nil, fmt.Errorf("%w: %v", chat.ErrStreamClosed, err)
		case errors.Is(err, errInterrupted), errors.Is(err, io.EOF):
			return nil, fmt.Errorf("%w: %v", chat.ErrStreamClosed, err)
		case err != nil:
			return nil, err
		}

		text := strings.TrimSpace(line)
		switch text {
		case "":
			continue
		case "/rooms":
			if err := t.printRooms(); err != nil {
				return nil, fmt.Errorf("%w: %v", chat.ErrStreamClosed, err)
			}
			continue
		case "/leave":
			if !t.joined {
				return nil, fmt.Errorf("%w: left before joining", chat.ErrStreamClosed)
			}
			return t.leave(), nil
		}

		if !t.joined {
			t.room, t.joined = text, true
			return protocol.JoinRequest{UserName: t.user, RoomID: text}, nil
		}
		return protocol.ChatMessage{Text: text}, nil
	}
}

func (t *Terminal) leave() protocol.ClientEvent {
	t.leaving = true
	return protocol.LeaveRequest{UserName: t.user, RoomID: t.room}
}

// Send renders one server event as a terminal line.
func (t *Terminal) Send(event protocol.ServerEvent) error {
	var text string
	switch e := event.(type) {
	case protocol.JoinResponse:
		text = "[system] " + e.Message
	case protocol.BroadcastMessage:
		stamp := time.Unix(e.Timestamp, 0).Format("15:04:05")
		text = fmt.Sprintf("[%s] %s: %s", stamp, e.SenderName, e.Text)
	case protocol.UserJoinedNotification:
		text = fmt.Sprintf("* %s joined (%d online)", e.UserName, e.CurrentCount)
	case protocol.UserLeftNotification:
		text = fmt.Sprintf("* %s left (%d online)", e.UserName, e.CurrentCount)
	default:
		return fmt.Errorf("%w: %T", protocol.ErrUnknownEvent, event)
	}

	if err := t.println(text); err != nil {
		return fmt.Errorf("%w: %v", chat.ErrStreamClosed, err)
	}
	return nil
}

// println writes text above the line being typed and redraws that line.
func (t *Terminal) println(text string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	var b strings.Builder
	if t.echo {
		b.WriteString(clearLine)
	}
	b.WriteString(text)
	b.WriteString("\r\n")
	if t.echo {
		b.WriteString(t.line.Snapshot())
	}
	_, err := io.WriteString(t.out, b.String())
	return err
}

func (t *Terminal) printRooms() error {
	listing := t.rooms()
	parts := make([]string, 0, len(listing.Rooms))
	for _, room := range listing.Rooms {
		parts = append(parts, fmt.Sprintf("%s (%d)", room.RoomID, room.ParticipantCount))
	}
	return t.println("Rooms: " + strings.Join(parts, ", "))
}

func (t *Terminal) echoString(s string) {
	if !t.echo {
		return
	}
	t.writeMu.Lock()
	_, _ = io.WriteString(t.out, s)
	t.writeMu.Unlock()
}

// readLine collects runes up to a line terminator, applying simple line
// editing. Text left over at end of input is returned before io.EOF.
func (t *Terminal) readLine() (string, error) {
	if t.eof {
		return "", io.EOF
	}

	for {
		r, _, err := t.reader.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) && t.line.Len() > 0 {
				t.eof = true
				return t.line.Drain(), nil
			}
			return "", err
		}

		switch r {
		case '\r', '\n':
			if r == '\r' && t.reader.Buffered() > 0 {
				if next, _, err := t.reader.ReadRune(); err == nil && next != '\n' {
					_ = t.reader.UnreadRune()
				}
			}
			t.echoString("\r\n")
			return t.line.Drain(), nil
		case ctrlC:
			t.line.Reset()
			t.echoString("^C\r\n")
			return "", errInterrupted
		case ctrlD:
			t.line.Reset()
			t.echoString("^D\r\n")
			return "", errHangup
		case backspace, deleteChar:
			if t.line.TrimLast() {
				t.echoString("\b \b")
			}
		default:
			if unicode.IsPrint(r) && t.line.Append(r) {
				t.echoString(string(r))
			}
		}
	}
}
