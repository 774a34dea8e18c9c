package kafka

import (
	"context"
	"errors"
	"testing"

	kafka_config "roadquest/pkg/kafka/config"
	"roadquest/pkg/logger"
)

func testProducer(t *testing.T) *Producer {
	t.Helper()
	cfg := &kafka_config.Config{
		Brokers:              []string{"localhost:9092"},
		Topic:                "roadquest.test",
		DLQTopic:             "roadquest.test.dlq",
		ProducerMaxAttempts:  1,
		ProducerBatchTimeout: kafka_config.DefaultProducerBatchTimeout,
		ProducerRequireAcks:  -1,
		ProducerCompression:  "none",
	}
	p, err := NewProducer(cfg, logger.Discard())
	if err != nil {
		t.Fatalf("NewProducer() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNewProducer_RequiresBrokersAndTopic(t *testing.T) {
	if _, err := NewProducer(nil, logger.Discard()); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewProducer(&kafka_config.Config{Topic: "t"}, logger.Discard()); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewProducer(&kafka_config.Config{Brokers: []string{"b:9092"}}, logger.Discard()); err == nil {
		t.Error("expected error without topic")
	}
}

func TestPublish_RejectsEmptyKeyAndValue(t *testing.T) {
	p := testProducer(t)

	if err := p.Publish(context.Background(), Message{Value: []byte("{}")}); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("empty key: got %v, want ErrEmptyKey", err)
	}
	if err := p.Publish(context.Background(), Message{Key: "car1"}); !errors.Is(err, ErrEmptyValue) {
		t.Errorf("empty value: got %v, want ErrEmptyValue", err)
	}
}

func TestPublish_MiddlewareOrderAndTopic(t *testing.T) {
	p := testProducer(t)

	var order []string
	stop := errors.New("stop before network")
	p.Use(func(ctx context.Context, msg Message, next PublishFunc) error {
		order = append(order, "outer")
		return next(ctx, msg)
	})
	p.Use(func(ctx context.Context, msg Message, next PublishFunc) error {
		order = append(order, "inner")
		if msg.Topic != "roadquest.test" {
			t.Errorf("Topic = %q, want roadquest.test", msg.Topic)
		}
		return stop
	})

	err := p.Publish(context.Background(), Message{Key: "car1", Value: []byte(`{"a":1}`)})
	if !errors.Is(err, stop) {
		t.Fatalf("Publish() error = %v, want %v", err, stop)
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("middleware order = %v, want [outer inner]", order)
	}
}

func TestPublish_AfterClose(t *testing.T) {
	p := testProducer(t)
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	err := p.Publish(context.Background(), Message{Key: "k", Value: []byte("v")})
	if !errors.Is(err, ErrProducerClosed) {
		t.Errorf("got %v, want ErrProducerClosed", err)
	}
}

func TestMessageBuilder(t *testing.T) {
	msg, err := NewMessage().
		WithKey("car1").
		WithEventType("booking.created").
		WithRequestID("req-1").
		WithSource("roadquest").
		WithSchemaVersion("1").
		WithHeader("empty", "").
		WithValue(map[string]string{"id": "b1"}).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if msg.Key != "car1" {
		t.Errorf("Key = %q", msg.Key)
	}
	if msg.GetEventType() != "booking.created" || msg.GetRequestID() != "req-1" {
		t.Errorf("headers = %v", msg.Headers)
	}
	if msg.GetEventID() == "" {
		t.Error("event id should be generated")
	}
	if _, ok := msg.Headers["empty"]; ok {
		t.Error("empty header values should be skipped")
	}

	var decoded map[string]string
	if err := msg.DecodeValue(&decoded); err != nil || decoded["id"] != "b1" {
		t.Errorf("DecodeValue() = %v, %v", decoded, err)
	}
}

func TestMessageBuilder_EncodingError(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	if err == nil {
		t.Fatal("expected encoding error")
	}
	if ClassifyError(err) != ErrorTypePermanent {
		t.Errorf("ClassifyError() = %v, want permanent", ClassifyError(err))
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"deadline", context.DeadlineExceeded, ErrorTypeTransient},
		{"connection refused", errors.New("dial tcp: connection refused"), ErrorTypeTransient},
		{"leader", errors.New("Leader Not Available"), ErrorTypeTransient},
		{"unknown topic", errors.New("unknown topic or partition"), ErrorTypePermanent},
		{"typed", NewPermanentError("bad", nil), ErrorTypePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}
