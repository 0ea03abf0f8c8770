package chat

import (
	"log/slog"
	"time"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// Metrics receives engine events. The zero-cost default discards them.
type Metrics interface {
	SessionOpened(room string)
	SessionClosed(room string)
	JoinRejected(reason error)
	Broadcast(room, kind string)
	Dropped(room string)
}

type noopMetrics struct{}

func (noopMetrics) SessionOpened(string)     {}
func (noopMetrics) SessionClosed(string)     {}
func (noopMetrics) JoinRejected(error)       {}
func (noopMetrics) Broadcast(string, string) {}
func (noopMetrics) Dropped(string)           {}

// Broadcast kinds reported to Metrics.
const (
	KindChat   = "chat"
	KindJoined = "joined"
	KindLeft   = "left"
)

// Dispatcher pushes room events onto the outbound queues of room members.
type Dispatcher struct {
	registry *Registry
	metrics  Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewDispatcher creates a dispatcher over registry. metrics and logger may be nil.
func NewDispatcher(registry *Registry, metrics Metrics, logger *slog.Logger) *Dispatcher {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// BroadcastChat relays text to every member of room, the sender included.
// The timestamp is taken here, not by the client.
func (d *Dispatcher) BroadcastChat(room, sender, text string) {
	d.registry.fanout(room, func(members map[string]*Handle) {
		event := protocol.BroadcastMessage{
			SenderName: sender,
			Text:       text,
			Timestamp:  d.now().Unix(),
		}
		d.deliverAll(room, KindChat, members, "", event)
	})
}

// Join admits h into its room and tells the members already there. Both
// happen under one registry write lock, so a member that joins afterwards
// never hears about h and every member sees one order of room events.
func (d *Dispatcher) Join(h *Handle) JoinResult {
	return d.registry.join(h, func(room string, members map[string]*Handle) {
		event := protocol.UserJoinedNotification{UserName: h.Username, CurrentCount: len(members)}
		d.deliverAll(room, KindJoined, members, h.Username, event)
	})
}

// Leave removes username from room and tells the remaining members. Nothing is
// sent when username was not a member.
func (d *Dispatcher) Leave(room, username string) (int, bool) {
	return d.registry.leave(room, username, func(room string, members map[string]*Handle) {
		event := protocol.UserLeftNotification{UserName: username, CurrentCount: len(members)}
		d.deliverAll(room, KindLeft, members, username, event)
	})
}

func (d *Dispatcher) deliverAll(room, kind string, members map[string]*Handle, exclude string, event protocol.ServerEvent) {
	d.metrics.Broadcast(room, kind)
	for name, h := range members {
		if name == exclude {
			continue
		}
		if !h.deliver(event) {
			d.metrics.Dropped(room)
			d.logger.Warn("dispatch.drop",
				"room", room,
				"recipient", name,
				"kind", kind,
				"queued", h.queue.Len(),
			)
		}
	}
}
