package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	bookingserrors "roadquest/internal/bookings/errors"
	"roadquest/internal/bookings/repository"
	apperrors "roadquest/pkg/errors"
	"roadquest/pkg/logger"
	"roadquest/pkg/model"

	"github.com/google/uuid"
)

const (
	lockReleaseTimeout = 5 * time.Second
	maxLockBackoff     = 2 * time.Second
)

// carLocker serializes booking writes per car through the Booking_locks collection.
type carLocker struct {
	repo     repository.BookingLockRepository
	ttl      time.Duration
	attempts int
	delay    time.Duration
	log      *logger.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func newCarLocker(repo repository.BookingLockRepository, ttl time.Duration, attempts int, delay time.Duration, log *logger.Logger) *carLocker {
	return &carLocker{
		repo:     repo,
		ttl:      ttl,
		attempts: max(attempts, 1),
		delay:    delay,
		log:      log,
		sleep:    sleepContext,
	}
}

// Acquire takes the lock for carID. The returned release func must be called
// once the write has committed or failed.
func (l *carLocker) Acquire(ctx context.Context, carID string) (func(), error) {
	lockID := model.BookingLockID(carID)
	owner := uuid.NewString()
	attempts := l.attempts
	reapedOnce := false

	for attempt := 0; attempt < attempts; attempt++ {
		now := time.Now().UTC()
		err := l.repo.Create(ctx, &model.BookingLock{
			ID:        lockID,
			Owner:     owner,
			ExpiresAt: now.Add(l.ttl),
		})
		if err == nil {
			return func() { l.release(ctx, lockID, owner) }, nil
		}
		if !errors.Is(err, bookingserrors.ErrLockHeld) {
			return nil, apperrors.Internal("Failed to acquire booking lock", err)
		}

		reaped, reapErr := l.repo.DeleteExpired(ctx, lockID, now)
		if reapErr != nil {
			l.log.Warn("Failed to remove expired booking lock", "lock_id", lockID, "error", reapErr)
		}
		if reaped {
			l.log.Warn("Removed expired booking lock", "lock_id", lockID)
			// The retry after a reap is free, once.
			if !reapedOnce {
				reapedOnce = true
				attempts++
			}
			continue
		}

		if attempt == attempts-1 {
			break
		}
		if err := l.sleep(ctx, l.backoff(attempt)); err != nil {
			return nil, apperrors.Timeout("Timed out waiting for booking lock")
		}
	}

	l.log.Warn("Booking lock still held after retries", "lock_id", lockID, "attempts", l.attempts)
	return nil, apperrors.Conflict("car is currently being booked").WithDetails(map[string]any{
		"car_id": carID,
	})
}

// backoff doubles the base delay per attempt and adds up to 50% jitter.
func (l *carLocker) backoff(attempt int) time.Duration {
	exp := l.delay * time.Duration(1<<min(attempt, 16))
	if exp <= 0 {
		return 0
	}
	if exp > maxLockBackoff {
		exp = maxLockBackoff
	}
	return exp + time.Duration(rand.Int64N(int64(exp/2)+1))
}

func (l *carLocker) release(ctx context.Context, lockID, owner string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
	defer cancel()

	if err := l.repo.Delete(ctx, lockID, owner); err != nil {
		l.log.Warn("Failed to release booking lock", "lock_id", lockID, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
