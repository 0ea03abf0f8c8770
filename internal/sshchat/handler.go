package sshchat

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/ssh"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// errShellNotRequested means the client closed the request stream without asking for a shell.
var errShellNotRequested = errors.New("sshchat: shell request not received before channel closed")

// Handler runs one chat session per SSH shell, using the SSH user as the chat username.
func Handler(svc *chat.Service, maxLine int, logger *slog.Logger) SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, conn *ssh.ServerConn, channel ssh.Channel, requests <-chan *ssh.Request) {
		defer channel.Close()
		log := logger.With("user", conn.User(), "addr", conn.RemoteAddr().String())

		pty, err := awaitShell(requests)
		if err != nil {
			log.Debug("ssh.session.no_shell", "err", err)
			return
		}

		term := NewTerminal(ctx, channel, conn.User(), svc.ListRooms, pty, maxLine)
		defer term.Close()

		if err := term.Greet(); err != nil {
			log.Debug("ssh.session.greet_failed", "err", err)
			return
		}

		var exitCode uint32
		if err := svc.Serve(term); err != nil {
			exitCode = 1
			if errors.Is(err, chat.ErrJoinRejected) {
				log.Info("ssh.session.rejected", "err", err)
			} else {
				log.Debug("ssh.session.ended", "err", err)
			}
		}
		sendExitStatus(channel, exitCode)
	}
}

// awaitShell answers channel requests until the client asks for a shell, then
// keeps answering the rest in the background. It reports whether a pty was requested.
func awaitShell(requests <-chan *ssh.Request) (bool, error) {
	pty := false
	for req := range requests {
		if req.Type == "pty-req" {
			pty = true
		}
		if !handleRequest(req) {
			continue
		}

		go func() {
			for req := range requests {
				handleRequest(req)
			}
		}()
		return pty, nil
	}
	return false, errShellNotRequested
}

func handleRequest(req *ssh.Request) bool {
	switch req.Type {
	case "shell":
		_ = req.Reply(true, nil)
		return true
	case "pty-req", "env", "window-change", "signal":
		_ = req.Reply(true, nil)
	default:
		_ = req.Reply(false, nil)
	}
	return false
}

func sendExitStatus(channel ssh.Channel, code uint32) {
	payload := ssh.Marshal(struct{ Status uint32 }{code})
	_, _ = channel.SendRequest("exit-status", false, payload)
}
