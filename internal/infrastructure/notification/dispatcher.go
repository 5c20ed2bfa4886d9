package notification

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"keygate.backend/internal/domain/entities"
	"keygate.backend/internal/infrastructure/metrics"
	"keygate.backend/pkg/logger"
)

const defaultSendTimeout = 5 * time.Second

type envelope struct {
	topic entities.Topic
	event entities.StatusEvent
}

// Dispatcher queues events and delivers them to every sink from a single
// worker goroutine. Publish never blocks and never fails.
type Dispatcher struct {
	sinks       []Sink
	queue       chan envelope
	metrics     *metrics.Metrics
	sendTimeout time.Duration

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
	started bool
}

func NewDispatcher(queueSize int, m *metrics.Metrics, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		sinks:       sinks,
		queue:       make(chan envelope, queueSize),
		metrics:     m,
		sendTimeout: defaultSendTimeout,
		done:        make(chan struct{}),
	}
}

// Publish enqueues event for delivery. A full queue drops the event.
func (d *Dispatcher) Publish(ctx context.Context, topic entities.Topic, event entities.StatusEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.metrics.EventDropped(string(topic), metrics.DropReasonStopped)
		return
	}

	select {
	case d.queue <- envelope{topic: topic, event: event}:
	default:
		d.metrics.EventDropped(string(topic), metrics.DropReasonQueueFull)
		logger.Warn(ctx, "Notification queue full, dropping event",
			zap.String("topic", string(topic)),
			zap.String("entity_id", event.EntityID.String()),
			zap.String("action", event.Action),
		)
	}
}

// Start launches the delivery worker.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	go d.run(ctx)
}

// Stop refuses new events, drains the queue and waits for the worker.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if started {
		<-d.done
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for env := range d.queue {
		d.deliver(ctx, env)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, env envelope) {
	for _, sink := range d.sinks {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.sendTimeout)
		err := sink.Send(sendCtx, env.topic, env.event)
		cancel()

		if err != nil {
			d.metrics.SinkError(sink.Name())
			logger.Error(ctx, "Failed to deliver event",
				zap.String("sink", sink.Name()),
				zap.String("topic", string(env.topic)),
				zap.String("entity_id", env.event.EntityID.String()),
				zap.Error(err),
			)
			continue
		}
		d.metrics.EventDelivered(string(env.topic), sink.Name())
	}
}
