// Package messaging publishes domain events to NATS for downstream consumers.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/observability"

	"github.com/nats-io/nats.go"
)

// SubjectPrefix namespaces every subject published by the service.
const SubjectPrefix = "quill."

// Envelope is the message body published on the bus.
type Envelope struct {
	Type       string    `json:"type"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Subject maps an event type onto its NATS subject, e.g. post_liked becomes
// quill.post.liked.
func Subject(eventType string) string {
	return SubjectPrefix + strings.ReplaceAll(eventType, "_", ".")
}

// Publisher sends events to NATS. A nil Publisher drops events.
type Publisher struct {
	nc *nats.Conn
}

// Connect dials url and keeps reconnecting in the background after the
// first successful connection.
func Connect(url string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("quill-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				middleware.Logger.Warn("NATS disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			middleware.Logger.Info("NATS reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	middleware.Logger.Info("NATS connected successfully", slog.String("url", nc.ConnectedUrl()))
	return &Publisher{nc: nc}, nil
}

// Publish sends evt on its subject. The context is only used for logging;
// NATS publishes are buffered and never block on the network.
func (p *Publisher) Publish(ctx context.Context, evt models.Event) error {
	if p == nil || p.nc == nil {
		return nil
	}
	subject := Subject(evt.Type)

	body, err := json.Marshal(Envelope{Type: evt.Type, Payload: evt.Payload, OccurredAt: time.Now().UTC()})
	if err != nil {
		observability.EventsPublished.WithLabelValues(subject, "error").Inc()
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(subject, body); err != nil {
		observability.EventsPublished.WithLabelValues(subject, "error").Inc()
		middleware.Logger.WarnContext(ctx, "NATS publish failed",
			slog.String("subject", subject), slog.String("error", err.Error()))
		return err
	}
	observability.EventsPublished.WithLabelValues(subject, "ok").Inc()
	return nil
}

// Connected reports whether the connection is currently up.
func (p *Publisher) Connected() bool {
	return p != nil && p.nc != nil && p.nc.IsConnected()
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}
