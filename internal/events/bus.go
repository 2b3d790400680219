// Package events fans device snapshots out to subscribers such as the SSE
// endpoint and the metrics collector.
package events

import (
	"sync"

	"github.com/micro-nova/lpg-go/internal/lpg"
)

const subBufferSize = 8

// Bus is a non-blocking publish-subscribe bus for device snapshots.
// Subscribers that are slow to consume have snapshots dropped rather than
// blocking the device lock holder that publishes them.
type Bus struct {
	mu     sync.Mutex
	subs   map[string]chan lpg.Snapshot
	latest lpg.Snapshot
	seen   bool
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]chan lpg.Snapshot),
	}
}

// Subscribe creates a new subscription with the given ID.
// Call Unsubscribe when done to clean up.
func (b *Bus) Subscribe(id string) <-chan lpg.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan lpg.Snapshot, subBufferSize)
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish sends a snapshot to all subscribers and remembers it as the
// latest. Full subscriber channels drop the snapshot.
func (b *Bus) Publish(s lpg.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest, b.seen = s, true
	for _, ch := range b.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Latest returns the most recent snapshot and whether one was published.
func (b *Bus) Latest() (lpg.Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, b.seen
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

var _ lpg.Publisher = (*Bus)(nil)
