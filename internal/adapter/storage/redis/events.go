package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type eventEnvelope struct {
	Origin string               `json:"origin"`
	Event  domain.DeliveryEvent `json:"event"`
}

// EventBridge shares delivery events between processes over Redis pub/sub.
// Events published by this process are tagged with its origin id and are
// not relayed back to it.
type EventBridge struct {
	client  *goredis.Client
	channel string
	origin  string
	log     zerolog.Logger
}

// NewEventBridge creates a bridge on channel.
func NewEventBridge(client *goredis.Client, channel string, log zerolog.Logger) *EventBridge {
	return &EventBridge{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		log:     log,
	}
}

// Publish implements ports.EventPublisher. Failures are logged and dropped.
func (b *EventBridge) Publish(ctx context.Context, ev domain.DeliveryEvent) {
	payload, err := json.Marshal(eventEnvelope{Origin: b.origin, Event: ev})
	if err != nil {
		b.log.Warn().Err(err).Str("delivery_id", ev.DeliveryID).Msg("encode delivery event")
		return
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.log.Warn().Err(err).Str("delivery_id", ev.DeliveryID).Msg("redis event publish failed")
	}
}

// Listen subscribes to the channel and forwards events from other processes
// to sink until ctx is done or stop is called.
func (b *EventBridge) Listen(ctx context.Context, sink ports.EventPublisher) (func(), error) {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				b.relay(ctx, msg.Payload, sink)
			}
		}
	}()

	return func() {
		cancel()
		_ = sub.Close()
		<-done
	}, nil
}

func (b *EventBridge) relay(ctx context.Context, payload string, sink ports.EventPublisher) {
	var env eventEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.Warn().Err(err).Msg("ignoring malformed delivery event")
		return
	}
	if env.Origin == b.origin {
		return
	}
	sink.Publish(ctx, env.Event)
}
