package providers

import (
	"context"

	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to task events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.TaskEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.TaskEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for different event types
const (
	// EventChannelQueueUpdates carries every task transition
	EventChannelQueueUpdates = "dispatch:queue"

	// EventChannelResourcePrefix is the prefix for per-driver channels
	EventChannelResourcePrefix = "dispatch:resource:"
)

// GetResourceChannel returns the channel name for a specific resource
func GetResourceChannel(resourceID string) string {
	return EventChannelResourcePrefix + resourceID
}
