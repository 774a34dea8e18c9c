package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"roadquest/pkg/kafka"
	"roadquest/pkg/logger"
	"roadquest/pkg/middleware"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockProducer struct {
	PublishFunc func(ctx context.Context, msg kafka.Message) error

	mu       sync.Mutex
	messages []kafka.Message
	closed   bool
}

func (m *mockProducer) Publish(ctx context.Context, msg kafka.Message) error {
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()

	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, msg)
	}
	return nil
}

func (m *mockProducer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockProducer) published() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.Message(nil), m.messages...)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := &mockProducer{}
	pub := NewKafkaPublisher(producer, 8, time.Second, logger.Discard())

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	pub.Publish(ctx, BookingCreated, "car1", map[string]string{"id": "b1"})

	if err := pub.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	messages := producer.published()
	if len(messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(messages))
	}
	msg := messages[0]
	if msg.Key != "car1" {
		t.Errorf("Key = %q, want car1", msg.Key)
	}
	if msg.GetEventType() != BookingCreated {
		t.Errorf("event type = %q", msg.GetEventType())
	}
	if msg.GetRequestID() != "req-42" {
		t.Errorf("request id = %q", msg.GetRequestID())
	}
	if msg.Headers[kafka.HeaderSource] != Source {
		t.Errorf("source = %q", msg.Headers[kafka.HeaderSource])
	}

	var payload map[string]string
	if err := msg.DecodeValue(&payload); err != nil || payload["id"] != "b1" {
		t.Errorf("payload = %v, err = %v", payload, err)
	}
}

func TestKafkaPublisher_SurvivesCancelledRequest(t *testing.T) {
	errCh := make(chan error, 1)
	producer := &mockProducer{
		PublishFunc: func(ctx context.Context, msg kafka.Message) error {
			errCh <- ctx.Err()
			return nil
		},
	}
	pub := NewKafkaPublisher(producer, 8, time.Second, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub.Publish(ctx, CarDeleted, "car1", map[string]string{"id": "car1"})
	_ = pub.Close()

	if err := <-errCh; err != nil {
		t.Errorf("publish context error = %v, want nil", err)
	}
}

func TestKafkaPublisher_DoesNotBlockOnSlowBroker(t *testing.T) {
	unblock := make(chan struct{})
	deadlineCh := make(chan time.Duration, 1)
	producer := &mockProducer{
		PublishFunc: func(ctx context.Context, msg kafka.Message) error {
			if d, ok := ctx.Deadline(); ok {
				select {
				case deadlineCh <- time.Until(d):
				default:
				}
			}
			<-unblock
			return nil
		},
	}
	pub := NewKafkaPublisher(producer, 1, 500*time.Millisecond, logger.Discard())

	start := time.Now()
	for range 5 {
		pub.Publish(context.Background(), BookingUpdated, "car1", struct{}{})
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Publish blocked for %v with a stuck producer", elapsed)
	}

	if d := <-deadlineCh; d <= 0 || d > 500*time.Millisecond {
		t.Errorf("publish deadline = %v, want within the publish timeout", d)
	}

	close(unblock)
	_ = pub.Close()

	// One in flight plus one queued; the rest were dropped.
	if n := len(producer.published()); n > 2 {
		t.Errorf("published %d messages, want at most 2", n)
	}
}

func TestKafkaPublisher_ErrorsAreSwallowed(t *testing.T) {
	producer := &mockProducer{
		PublishFunc: func(context.Context, kafka.Message) error {
			return errors.New("connection refused")
		},
	}
	pub := NewKafkaPublisher(producer, 8, time.Second, logger.Discard())

	pub.Publish(context.Background(), CarCreated, "car1", struct{}{})
	pub.Publish(context.Background(), CarCreated, "car1", make(chan int))

	if err := pub.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if n := len(producer.published()); n != 1 {
		t.Errorf("unencodable payload should not reach the producer; got %d messages", n)
	}

	producer.mu.Lock()
	closed := producer.closed
	producer.mu.Unlock()
	if !closed {
		t.Error("producer should be closed")
	}
}

func TestKafkaPublisher_PublishAfterClose(t *testing.T) {
	producer := &mockProducer{}
	pub := NewKafkaPublisher(producer, 8, time.Second, logger.Discard())

	if err := pub.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	pub.Publish(context.Background(), CarCreated, "car1", struct{}{})

	if err := pub.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if n := len(producer.published()); n != 0 {
		t.Errorf("published %d messages after close", n)
	}
}

func TestNopPublisher(t *testing.T) {
	var pub Publisher = NopPublisher{}
	pub.Publish(context.Background(), BookingCreated, "car1", nil)
	if err := pub.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
