package bus

import (
	"context"
	"slices"
	"sync"

	"github.com/Seednode/partyclient/protocol"
)

// Listener receives every inbound message after the store has seen it.
// Listeners run on the relay goroutine and must not block.
type Listener func(protocol.Message)

// Broadcaster fans inbound messages out to listeners that are not part of
// the session store, such as the voice engine.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]Listener
	nextID int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[int]Listener),
	}
}

// Subscribe registers fn and returns the function that removes it.
func (b *Broadcaster) Subscribe(fn Listener) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers msg to every listener in registration order.
func (b *Broadcaster) Publish(msg protocol.Message) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	slices.Sort(ids)

	for _, id := range ids {
		b.mu.RLock()
		fn, ok := b.subs[id]
		b.mu.RUnlock()
		if ok {
			fn(msg)
		}
	}
}

// Relay drains in, hands each message to apply first and then publishes
// it, preserving arrival order. It returns when in is closed or ctx is
// done.
func (b *Broadcaster) Relay(ctx context.Context, in <-chan protocol.Message, apply func(protocol.Message)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			if apply != nil {
				apply(msg)
			}
			b.Publish(msg)
		}
	}
}
