package events

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
)

// subscriberBuffer is how many undelivered events a slow subscriber may hold before drops
const subscriberBuffer = 100

// hub fans task events out to per-channel subscriber sets
type hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan *entities.TaskEvent]struct{}
}

func newHub() *hub {
	return &hub{subscribers: make(map[string]map[chan *entities.TaskEvent]struct{})}
}

// add registers a subscriber and reports whether it is the channel's first
func (h *hub) add(channel string) (chan *entities.TaskEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	first := false
	if h.subscribers[channel] == nil {
		h.subscribers[channel] = make(map[chan *entities.TaskEvent]struct{})
		first = true
	}
	ch := make(chan *entities.TaskEvent, subscriberBuffer)
	h.subscribers[channel][ch] = struct{}{}
	return ch, first
}

// remove drops a subscriber and reports whether the channel has none left
func (h *hub) remove(channel string, ch chan *entities.TaskEvent) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[channel]
	if !ok {
		return false
	}
	if _, ok := subs[ch]; !ok {
		return false
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(h.subscribers, channel)
		return true
	}
	return false
}

// closeChannel closes every subscriber on a channel
func (h *hub) closeChannel(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subscribers[channel] {
		close(ch)
	}
	delete(h.subscribers, channel)
}

func (h *hub) channels() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]string, 0, len(h.subscribers))
	for channel := range h.subscribers {
		result = append(result, channel)
	}
	return result
}

// broadcast delivers without blocking; full subscribers miss the event
func (h *hub) broadcast(channel string, event *entities.TaskEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[channel] {
		select {
		case ch <- event:
		default:
			log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("subscriber buffer full, dropping task event")
		}
	}
}
