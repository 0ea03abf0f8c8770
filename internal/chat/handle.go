package chat

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// Handle represents one connected user inside one room. The room's membership
// map holds a reference to it; the session that created it owns it.
type Handle struct {
	ID       string
	Username string
	Room     string

	queue  *Queue
	active atomic.Bool
}

// NewHandle creates an active handle with its own outbound queue.
func NewHandle(username, room string, queueSize int) *Handle {
	h := &Handle{
		ID:       uuid.NewString(),
		Username: username,
		Room:     room,
		queue:    NewQueue(queueSize),
	}
	h.active.Store(true)
	return h
}

// Queue returns the handle's outbound queue.
func (h *Handle) Queue() *Queue {
	return h.queue
}

// Active reports whether the session behind the handle is still live.
func (h *Handle) Active() bool {
	return h.active.Load()
}

// deliver enqueues an event for this user; false means it was dropped.
func (h *Handle) deliver(event protocol.ServerEvent) bool {
	if !h.Active() {
		return false
	}
	return h.queue.Push(event)
}

// stop marks the handle inactive and wakes its outbound loop.
func (h *Handle) stop() {
	h.active.Store(false)
	h.queue.Stop()
}
