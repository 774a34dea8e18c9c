package kafka_config

const (
	// Kafka broker configuration. Empty disables publishing.
	EnvKafkaBrokers = "KAFKA_BROKERS"

	EnvKafkaTopic    = "KAFKA_TOPIC"
	EnvKafkaDLQTopic = "KAFKA_DLQ_TOPIC"

	// Producer configuration
	EnvKafkaProducerMaxAttempts  = "KAFKA_PRODUCER_MAX_ATTEMPTS"
	EnvKafkaProducerBatchTimeout = "KAFKA_PRODUCER_BATCH_TIMEOUT"
	EnvKafkaProducerRequireAcks  = "KAFKA_PRODUCER_REQUIRE_ACKS"
	EnvKafkaProducerCompression  = "KAFKA_PRODUCER_COMPRESSION"
	EnvKafkaProducerAsync        = "KAFKA_PRODUCER_ASYNC"

	// Event publishing: queue size and per-event deadline
	EnvKafkaPublishBuffer  = "KAFKA_PUBLISH_BUFFER"
	EnvKafkaPublishTimeout = "KAFKA_PUBLISH_TIMEOUT"

	// Middleware configuration
	EnvKafkaEnableMiddleware = "KAFKA_ENABLE_MIDDLEWARE"
)
