package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client is a WebSocket connection speaking the JSON envelope protocol. It
// implements chat.Stream: Recv is called by the session's reader, Send by its
// writer; keepalive pings go through WriteControl, which may run concurrently.
type Client struct {
	conn           *websocket.Conn
	addr           string
	maxMessageSize int64
	logger         *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

var _ chat.Stream = (*Client)(nil)

// NewClient wraps conn. The client's context ends when parent ends or Close is called.
func NewClient(parent context.Context, conn *websocket.Conn, addr string, maxMessageSize int64, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	c := &Client{
		conn:           conn,
		addr:           addr,
		maxMessageSize: maxMessageSize,
		logger:         logger.With("addr", addr),
		ctx:            ctx,
		cancel:         cancel,
	}
	if conn != nil {
		conn.SetReadLimit(maxMessageSize)
		c.setupReadConnection()
	}
	return c
}

// Context returns the connection's lifetime context.
func (c *Client) Context() context.Context {
	return c.ctx
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("ws.read_deadline", "err", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// Recv reads the next frame and decodes it into a client event. Frames that
// are not valid envelopes come back wrapped in chat.ErrInvalidEvent.
func (c *Client) Recv() (protocol.ClientEvent, error) {
	msgType, raw, err := c.conn.ReadMessage()
	if err != nil {
		return nil, c.classifyReadError(err)
	}
	if msgType != websocket.TextMessage {
		return nil, fmt.Errorf("%w: unsupported frame type %d", chat.ErrInvalidEvent, msgType)
	}

	event, err := protocol.DecodeClient(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chat.ErrInvalidEvent, err)
	}
	return event, nil
}

// classifyReadError logs the error according to its kind and marks the ones
// that mean the peer is gone.
func (c *Client) classifyReadError(err error) error {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("ws.read_limit", "limit", c.maxMessageSize)
		return fmt.Errorf("%w: %v", chat.ErrStreamClosed, err)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.logger.Debug("ws.disconnected", "err", err)
		return fmt.Errorf("%w: %v", chat.ErrStreamClosed, err)
	case isExpectedCloseError(err):
		c.logger.Debug("ws.closed", "err", err)
		return fmt.Errorf("%w: %v", chat.ErrStreamClosed, err)
	default:
		c.logger.Warn("ws.read_error", "err", err)
		return err
	}
}

// Send writes one server event as a text frame.
func (c *Client) Send(event protocol.ServerEvent) error {
	data, err := protocol.EncodeServer(event)
	if err != nil {
		return err
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("%w: %v", chat.ErrStreamClosed, err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if isExpectedCloseError(err) || errors.Is(err, websocket.ErrCloseSent) {
			return fmt.Errorf("%w: %v", chat.ErrStreamClosed, err)
		}
		return err
	}
	return nil
}

// keepalive pings the peer until the client's context ends.
func (c *Client) keepalive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if !isExpectedCloseError(err) {
					c.logger.Warn("ws.ping_failed", "err", err)
				}
				return
			}
		}
	}
}

// Close sends a normal close frame and closes the connection. Safe to call twice.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !isExpectedCloseError(err) {
			c.logger.Debug("ws.close_frame", "err", err)
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Debug("ws.close", "err", err)
		}
	})
}
