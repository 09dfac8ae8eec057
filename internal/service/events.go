package service

import (
	"context"
	"sync"

	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"

	"github.com/rs/zerolog"
)

const defaultEventBuffer = 64

// EventBus fans delivery events out to in-process subscribers. Each
// subscriber has its own bounded queue; when it is full the event is dropped
// for that subscriber only, so Publish never waits on a slow reader.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	buffer int
	log    zerolog.Logger
}

type subscriber struct {
	events chan domain.DeliveryEvent
	done   chan struct{}
}

// NewEventBus creates a bus with the given per-subscriber buffer.
func NewEventBus(buffer int, log zerolog.Logger) *EventBus {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return &EventBus{subs: make(map[int]*subscriber), buffer: buffer, log: log}
}

// Subscribe calls fn for each event on a dedicated goroutine until the
// returned func is called.
func (b *EventBus) Subscribe(fn func(domain.DeliveryEvent)) func() {
	sub := &subscriber{
		events: make(chan domain.DeliveryEvent, b.buffer),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	go func() {
		for {
			select {
			case ev := <-sub.events:
				fn(ev)
			case <-sub.done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.done)
		})
	}
}

// Publish implements ports.EventPublisher.
func (b *EventBus) Publish(_ context.Context, ev domain.DeliveryEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subs {
		select {
		case sub.events <- ev:
		default:
			b.log.Warn().Int("subscriber", id).Str("delivery_id", ev.DeliveryID).
				Str("type", string(ev.Type)).Msg("subscriber queue full, event dropped")
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// MultiPublisher forwards every event to each publisher in order.
type MultiPublisher []ports.EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, ev domain.DeliveryEvent) {
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, ev)
		}
	}
}
