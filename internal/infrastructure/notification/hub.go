package notification

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"keygate.backend/internal/domain/entities"
	"keygate.backend/internal/infrastructure/metrics"
	"keygate.backend/pkg/logger"
)

const defaultSubscriberBuffer = 32

// Subscription receives events for one topic until it is closed.
type Subscription struct {
	Topic entities.Topic
	C     <-chan entities.StatusEvent

	ch   chan entities.StatusEvent
	hub  *Hub
	once sync.Once
}

// Close detaches the subscription from its hub and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub is the in-process topic registry behind the websocket endpoints.
type Hub struct {
	mu      sync.RWMutex
	subs    map[entities.Topic]map[*Subscription]struct{}
	buffer  int
	metrics *metrics.Metrics
}

func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		subs:    make(map[entities.Topic]map[*Subscription]struct{}),
		buffer:  defaultSubscriberBuffer,
		metrics: m,
	}
}

func (h *Hub) Name() string { return "hub" }

// Subscribe registers a new subscriber on topic.
func (h *Hub) Subscribe(topic entities.Topic) *Subscription {
	ch := make(chan entities.StatusEvent, h.buffer)
	sub := &Subscription{Topic: topic, C: ch, ch: ch, hub: h}

	h.mu.Lock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*Subscription]struct{})
	}
	h.subs[topic][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sub.Topic]; ok {
		if _, ok := set[sub]; ok {
			delete(set, sub)
			close(sub.ch)
		}
	}
}

// Subscribers returns the number of live subscribers on topic.
func (h *Hub) Subscribers(topic entities.Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

// Publish hands event to every subscriber of topic without blocking.
// A subscriber whose buffer is full misses the event.
func (h *Hub) Publish(topic entities.Topic, event entities.StatusEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[topic] {
		select {
		case sub.ch <- event:
		default:
			h.metrics.EventDropped(string(topic), metrics.DropReasonSlowConsumer)
			logger.Debug(context.Background(), "Dropped event for slow subscriber",
				zap.String("topic", string(topic)),
				zap.String("entity_id", event.EntityID.String()),
			)
		}
	}
}

// Send implements Sink.
func (h *Hub) Send(_ context.Context, topic entities.Topic, event entities.StatusEvent) error {
	h.Publish(topic, event)
	return nil
}
