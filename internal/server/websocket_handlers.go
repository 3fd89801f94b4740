package server

import (
	"encoding/json"
	"log/slog"

	"quill/internal/middleware"
	"quill/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

var pongMessage = []byte(`{"type":"pong"}`)

// WebsocketHandler returns a websocket handler that registers connections with the Hub.
// Authentication is handled by route middleware and the clerk id is read from connection locals.
func (s *Server) WebsocketHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		clerkID, _ := conn.Locals(middleware.LocalClerkID).(string)
		if clerkID == "" {
			_ = conn.Close()
			return
		}

		// Register connection with scaling guardrails
		client, err := s.hub.Register(clerkID, conn)
		if err != nil {
			middleware.Logger.Warn("websocket registration rejected",
				slog.String("clerk_id", clerkID), slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		client.Serve(handleIncoming)
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return upgrade(c)
	}
}

// handleIncoming answers keepalive pings. The socket is otherwise push-only.
func handleIncoming(c *notifications.Client, message []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	if msg.Type == "ping" {
		c.TrySend(pongMessage)
	}
}
