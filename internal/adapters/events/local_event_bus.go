package events

import (
	"context"

	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/providers"
)

// LocalEventBus delivers events within one process. It backs the memory storage
// driver, where API and stream share a process.
type LocalEventBus struct {
	hub    *hub
	ctx    context.Context
	cancel context.CancelFunc
}

// NewLocalEventBus creates an in-process event bus
func NewLocalEventBus() providers.EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalEventBus{hub: newHub(), ctx: ctx, cancel: cancel}
}

// Publish delivers the event to current subscribers
func (b *LocalEventBus) Publish(ctx context.Context, channel string, event *entities.TaskEvent) error {
	b.hub.broadcast(channel, event)
	return nil
}

// Subscribe subscribes to events on a channel until ctx is done
func (b *LocalEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.TaskEvent, error) {
	ch, _ := b.hub.add(channel)
	go func() {
		select {
		case <-ctx.Done():
		case <-b.ctx.Done():
		}
		b.hub.remove(channel, ch)
	}()
	return ch, nil
}

// Unsubscribe drops every subscriber on a channel
func (b *LocalEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.hub.closeChannel(channel)
	return nil
}

// Close closes all subscriptions
func (b *LocalEventBus) Close() error {
	b.cancel()
	for _, channel := range b.hub.channels() {
		b.hub.closeChannel(channel)
	}
	return nil
}
