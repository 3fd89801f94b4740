package notifications

import (
	"log/slog"
	"time"

	"quill/internal/middleware"
	"quill/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeTimeout    = 10 * time.Second
	idleTimeout     = 60 * time.Second
	keepalive       = idleTimeout * 9 / 10
	maxInboundBytes = 4096
	sendBuffer      = 64
)

var dropNotice = []byte(`{"type":"messages_dropped","payload":{"reason":"buffer_full"}}`)

// Client is one registered websocket connection of a user.
type Client struct {
	UserID string
	// Send carries serialized events to the connection. The hub closes it
	// on unregister.
	Send chan []byte

	hub  *Hub
	conn *websocket.Conn
}

// Serve runs the connection until the peer goes away or stops answering
// pings, then unregisters it. onMessage receives each inbound frame.
func (c *Client) Serve(onMessage func(*Client, []byte)) {
	go c.writeLoop()
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Debug("websocket closed unexpectedly",
					slog.String("clerk_id", c.UserID), slog.String("error", err.Error()))
			}
			return
		}
		if onMessage != nil {
			onMessage(c, frame)
		}
	}
}

func (c *Client) writeLoop() {
	ping := time.NewTicker(keepalive)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case msg, open := <-c.Send:
			if !open {
				_ = write(websocket.CloseMessage, nil)
				return
			}
			if err := write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues msg without blocking. When the buffer is full the message
// is dropped and a messages_dropped notice takes its place if there is room,
// telling the client to refetch.
func (c *Client) TrySend(msg []byte) {
	// Send may already be closed by Shutdown.
	defer func() {
		if recover() != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(hubName, "closed").Inc()
		}
	}()

	select {
	case c.Send <- msg:
		return
	default:
	}
	observability.WebSocketBackpressureDrops.WithLabelValues(hubName, "full").Inc()
	select {
	case c.Send <- dropNotice:
	default:
	}
}
