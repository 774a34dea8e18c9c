package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "road-quest"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "5000"
	DefaultLogLevel = "info"

	DefaultAllowedOrigins = "http://localhost:5173"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultLockTTL           = 2 * DefaultRequestTimeout
	DefaultLockRetryAttempts = 5
	DefaultLockRetryDelay    = 50 * time.Millisecond

	DefaultTokenTTL     = 24 * time.Hour
	DefaultCookieSecure = false

	DefaultPaginationLimit = 100
	DefaultPageSize        = 10
)
