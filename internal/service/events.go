package service

import (
	"context"
	"log/slog"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/repository"

	"github.com/google/uuid"
)

// EventPublisher is a sink for domain events: the Redis notifier, the local
// websocket hub, or the NATS bus.
type EventPublisher interface {
	Publish(ctx context.Context, evt models.Event) error
}

// Emitter fans committed events out to every sink. Sink failures are logged;
// a mutation never fails because an event could not be delivered.
type Emitter struct {
	sinks []EventPublisher
}

func NewEmitter(sinks ...EventPublisher) *Emitter {
	kept := make([]EventPublisher, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Emitter{sinks: kept}
}

func (e *Emitter) Emit(ctx context.Context, evt models.Event) {
	if e == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, sink := range e.sinks {
		if err := sink.Publish(ctx, evt); err != nil {
			middleware.Logger.WarnContext(ctx, "event publish failed",
				slog.String("event", evt.Type),
				slog.String("error", err.Error()),
			)
		}
	}
}

// recipientClerkID names the user who gets a personal copy of an event about
// userID. Actors are never notified about their own actions.
func recipientClerkID(ctx context.Context, users repository.UserRepository, userID uuid.UUID, actor *models.User) string {
	if actor != nil && actor.ID == userID {
		return ""
	}
	u, err := users.GetByID(ctx, userID)
	if err != nil {
		return ""
	}
	return u.ClerkID
}
