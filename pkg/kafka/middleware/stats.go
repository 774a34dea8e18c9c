package kafka_middleware

import (
	"context"
	"sync/atomic"
	"time"

	"roadquest/pkg/kafka"
	"roadquest/pkg/logger"
)

// PublishStats counts publish outcomes for one producer.
type PublishStats struct {
	published atomic.Int64
	failed    atomic.Int64
	totalNano atomic.Int64
}

// StatsSnapshot is a point-in-time copy of PublishStats.
type StatsSnapshot struct {
	Published   int64
	Failed      int64
	AvgDuration time.Duration
}

// Middleware returns a producer middleware that records into s.
func (s *PublishStats) Middleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.PublishFunc) error {
		start := time.Now()
		err := next(ctx, msg)
		s.totalNano.Add(int64(time.Since(start)))
		if err != nil {
			s.failed.Add(1)
		} else {
			s.published.Add(1)
		}
		return err
	}
}

func (s *PublishStats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Published: s.published.Load(),
		Failed:    s.failed.Load(),
	}
	if attempts := snap.Published + snap.Failed; attempts > 0 {
		snap.AvgDuration = time.Duration(s.totalNano.Load() / attempts)
	}
	return snap
}

// LogSummary writes the current counters, typically on shutdown.
func (s *PublishStats) LogSummary(log *logger.Logger) {
	snap := s.Snapshot()
	log.Info("Kafka publish summary",
		"published", snap.Published,
		"failed", snap.Failed,
		"avg_duration", snap.AvgDuration,
	)
}
