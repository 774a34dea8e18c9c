package kafka_config

import "time"

const (
	// No brokers by default; the service runs without an event stream.
	DefaultKafkaBrokers = ""

	DefaultTopic    = "roadquest.bookings"
	DefaultDLQTopic = "roadquest.bookings.dlq"

	// Producer defaults
	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerRequireAcks  = -1 // Require all replicas
	DefaultProducerCompression  = "snappy"
	DefaultProducerAsync        = false

	DefaultPublishBuffer  = 256
	DefaultPublishTimeout = 5 * time.Second

	// Middleware defaults
	DefaultEnableMiddleware = true
)
