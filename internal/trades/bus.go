package trades

import (
	"sync"

	"github.com/google/uuid"

	"github.com/minter-scanner/internal/models"
)

// Bus fans accepted trade updates out to subscribers. Each subscriber gets
// a buffered channel; a subscriber that falls behind has the update dropped
// rather than blocking the publisher.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan []models.Trade
}

// NewBus creates an empty trade bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]chan []models.Trade),
	}
}

// Subscribe registers a new subscriber and returns its id and channel.
// The channel is closed on Unsubscribe.
func (b *Bus) Subscribe() (string, <-chan []models.Trade) {
	id := uuid.New().String()
	ch := make(chan []models.Trade, 16)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids are
// ignored.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Publish delivers newly added trades to every subscriber
func (b *Bus) Publish(added []models.Trade) {
	if len(added) == 0 {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- added:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
