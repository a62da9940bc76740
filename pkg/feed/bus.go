// Package feed is the in-process change feed: whoever writes a row publishes
// an Insert, and subscribers receive the inserts for the tables they follow.
// Delivery is best effort; a subscriber that falls behind loses inserts
// instead of stalling the publisher.
package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultBufferSize = 100

type subscriber struct {
	table Table
	ch    chan Insert
}

// Bus fans inserts out to subscribers by table.
type Bus struct {
	subscribers map[uint64]subscriber
	nextID      uint64
	dropped     atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once

	mu sync.RWMutex
}

// NewBus returns an open bus with no subscribers.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[uint64]subscriber),
		done:        make(chan struct{}),
	}
}

// Publish fans insert out to every subscriber of its table. It reports false
// once the context or the bus is done.
func (b *Bus) Publish(ctx context.Context, insert Insert) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	if insert.At.IsZero() {
		insert.At = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return false
	case <-b.done:
		return false
	default:
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		if sub.table != insert.Table {
			continue
		}
		select {
		case sub.ch <- insert:
		default:
			b.dropped.Add(1)
		}
	}

	return true
}

// Subscribe follows one table. The returned function unsubscribes and closes
// the channel; it runs at most once no matter how often it is called. The
// subscription also ends with ctx or Close.
func (b *Bus) Subscribe(ctx context.Context, table Table, buffer int) (<-chan Insert, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if buffer <= 0 {
		buffer = defaultBufferSize
	}

	ch := make(chan Insert, buffer)

	b.mu.Lock()
	select {
	case <-b.done:
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}

	id := b.nextID
	b.nextID++
	b.subscribers[id] = subscriber{table: table, ch: ch}
	b.mu.Unlock()

	var once sync.Once
	stop := make(chan struct{})
	unsubscribe := func() {
		once.Do(func() {
			close(stop)
			b.mu.Lock()
			if sub, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(sub.ch)
			}
			b.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-b.done:
			unsubscribe()
		case <-stop:
		}
	}()

	return ch, unsubscribe
}

// Subscribers counts live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped counts inserts lost to full subscriber buffers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close ends every subscription. Later publishes report false.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.done)

		b.mu.Lock()
		for id, sub := range b.subscribers {
			close(sub.ch)
			delete(b.subscribers, id)
		}
		b.mu.Unlock()
	})
}
