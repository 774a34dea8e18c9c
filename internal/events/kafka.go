package events

import (
	"context"
	"sync"
	"time"

	"roadquest/pkg/kafka"
	"roadquest/pkg/logger"
	"roadquest/pkg/middleware"
)

// MessagePublisher is the subset of *kafka.Producer the publisher needs.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaPublisher hands events to a background worker so a slow or
// unreachable broker never delays the HTTP response. Events are dropped when
// the queue is full.
type KafkaPublisher struct {
	producer MessagePublisher
	timeout  time.Duration
	log      *logger.Logger

	queue  chan kafka.Message
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewKafkaPublisher(producer MessagePublisher, buffer int, timeout time.Duration, log *logger.Logger) *KafkaPublisher {
	p := &KafkaPublisher{
		producer: producer,
		timeout:  timeout,
		log:      log,
		queue:    make(chan kafka.Message, max(buffer, 1)),
	}

	p.wg.Add(1)
	go p.run()

	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, payload any) {
	msg, err := kafka.NewMessage().
		WithKey(key).
		WithEventType(eventType).
		WithRequestID(middleware.RequestIDFromContext(ctx)).
		WithSource(Source).
		WithSchemaVersion(SchemaVersion).
		WithValue(payload).
		Build()
	if err != nil {
		p.log.Error("Failed to build event", "event_type", eventType, "key", key, "error", err)
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.log.Warn("Event dropped, publisher closed", "event_type", eventType, "key", key)
		return
	}

	select {
	case p.queue <- msg:
	default:
		p.log.Error("Event dropped, publish queue full",
			"event_type", eventType,
			"key", key,
			"event_id", msg.GetEventID(),
		)
	}
}

func (p *KafkaPublisher) run() {
	defer p.wg.Done()

	for msg := range p.queue {
		p.send(msg)
	}
}

func (p *KafkaPublisher) send(msg kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish event",
			"event_type", msg.GetEventType(),
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"error_type", kafka.ClassifyError(err).String(),
			"error", err,
		)
	}
}

// Close flushes queued events and then closes the producer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return p.producer.Close()
}
