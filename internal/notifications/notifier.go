// Package notifications provides real-time notification delivery and management.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"quill/internal/middleware"
	"quill/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	broadcastChannel  = "quill:events"
	userChannelPrefix = "quill:user:"
)

// UserChannel is the Redis channel carrying one user's personal events.
func UserChannel(clerkID string) string {
	return userChannelPrefix + clerkID
}

// Notifier publishes events into Redis so every API instance can forward them
// to its own websocket clients.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Publish broadcasts evt and, when it has a recipient, sends a personal copy.
func (n *Notifier) Publish(ctx context.Context, evt models.Event) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.rdb.Publish(ctx, broadcastChannel, payload).Err(); err != nil {
		return err
	}
	if evt.Recipient == "" {
		return nil
	}
	personal, err := json.Marshal(personalCopy(evt))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.rdb.Publish(ctx, UserChannel(evt.Recipient), personal).Err()
}

// StartSubscriber subscribes to the broadcast and per-user channels and calls
// onMessage for each incoming message until ctx is cancelled.
func (n *Notifier) StartSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, broadcastChannel, userChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in notification subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// recipientOf extracts the clerk id from a per-user channel name.
func recipientOf(channel string) (string, bool) {
	if !strings.HasPrefix(channel, userChannelPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(channel, userChannelPrefix)
	return id, id != ""
}

func personalCopy(evt models.Event) models.Event {
	evt.Personal = true
	return evt
}
