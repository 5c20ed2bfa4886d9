// Package notification fans status events out to websocket subscribers,
// other instances (through Redis) and the Discord webhook.
package notification

import (
	"context"

	"keygate.backend/internal/domain/entities"
)

// Sink delivers one event. Errors are reported to the dispatcher, never to the
// lifecycle operation that produced the event.
type Sink interface {
	Name() string
	Send(ctx context.Context, topic entities.Topic, event entities.StatusEvent) error
}
