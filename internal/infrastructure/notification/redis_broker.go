package notification

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
	"keygate.backend/internal/domain/entities"
	"keygate.backend/pkg/logger"
	"keygate.backend/pkg/redis"
)

// ChannelPrefix namespaces the pub/sub channels, one per topic.
const ChannelPrefix = "keygate:events:"

// Channel returns the redis channel for topic.
func Channel(topic entities.Topic) string {
	return ChannelPrefix + string(topic)
}

var (
	publishMessage = redis.Publish
	subscribe      = redis.PSubscribe
)

// RedisBroker publishes events to Redis and relays every event published by
// any instance into the local hub.
type RedisBroker struct {
	hub *Hub
}

func NewRedisBroker(hub *Hub) *RedisBroker {
	return &RedisBroker{hub: hub}
}

func (b *RedisBroker) Name() string { return "redis" }

// Send implements Sink.
func (b *RedisBroker) Send(ctx context.Context, topic entities.Topic, event entities.StatusEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = publishMessage(ctx, Channel(topic), payload)
	return err
}

// Run relays messages into the hub until ctx is cancelled.
// ready is closed once the subscription is confirmed.
func (b *RedisBroker) Run(ctx context.Context, ready chan<- struct{}) error {
	ps, err := subscribe(ctx, ChannelPrefix+"*")
	if err != nil {
		return err
	}
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			topic := entities.Topic(strings.TrimPrefix(msg.Channel, ChannelPrefix))
			var event entities.StatusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Warn(ctx, "Discarding malformed event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			b.hub.Publish(topic, event)
		}
	}
}
