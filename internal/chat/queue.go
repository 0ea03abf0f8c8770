package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

var (
	// ErrQueueStopped is returned by Pop once Stop has been called.
	ErrQueueStopped = errors.New("chat: outbound queue stopped")
	// ErrQueueTimeout is returned by Pop when nothing arrived within the timeout.
	ErrQueueTimeout = errors.New("chat: outbound queue poll timed out")
)

const defaultQueueSize = 256

// Queue is the bounded outbound buffer of a single session. Any goroutine may
// Push; only the owning session pops.
type Queue struct {
	items    chan protocol.ServerEvent
	stop     chan struct{}
	stopOnce sync.Once
}

// NewQueue creates a queue holding at most size events.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Queue{
		items: make(chan protocol.ServerEvent, size),
		stop:  make(chan struct{}),
	}
}

// Push enqueues without blocking. It reports false when the queue is full or stopped.
func (q *Queue) Push(event protocol.ServerEvent) bool {
	select {
	case <-q.stop:
		return false
	default:
	}

	select {
	case q.items <- event:
		return true
	default:
		return false
	}
}

// Pop waits up to timeout for the next event. Buffered events are returned
// before the stop signal is observed.
func (q *Queue) Pop(timeout time.Duration) (protocol.ServerEvent, error) {
	select {
	case event := <-q.items:
		return event, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case event := <-q.items:
		return event, nil
	case <-q.stop:
		return nil, ErrQueueStopped
	case <-timer.C:
		return nil, ErrQueueTimeout
	}
}

// Drain removes and returns whatever is currently buffered.
func (q *Queue) Drain() []protocol.ServerEvent {
	var out []protocol.ServerEvent
	for {
		select {
		case event := <-q.items:
			out = append(out, event)
		default:
			return out
		}
	}
}

// Stop signals the consumer to finish. Safe to call more than once.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	return len(q.items)
}
