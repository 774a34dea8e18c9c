package repository

import (
	"context"
	"fmt"
	"time"

	bookingserrors "roadquest/internal/bookings/errors"
	"roadquest/pkg/config"
	"roadquest/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Booking_locks"

// BookingLockRepository provides operations for advisory locks
type BookingLockRepository interface {
	// Create returns ErrLockHeld if another writer holds the lock.
	Create(ctx context.Context, lock *model.BookingLock) error
	Delete(ctx context.Context, lockID, owner string) error
	DeleteExpired(ctx context.Context, lockID string, now time.Time) (bool, error)
}

type mongoBookingLockRepository struct {
	collection *mongo.Collection
}

func NewBookingLockRepository(cfg *config.Config) BookingLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

func (r *mongoBookingLockRepository) Create(ctx context.Context, lock *model.BookingLock) error {
	lock.CreatedAt = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bookingserrors.ErrLockHeld
		}
		return fmt.Errorf("failed to create booking lock: %w", err)
	}
	return nil
}

// Delete removes the lock only if owner still holds it.
func (r *mongoBookingLockRepository) Delete(ctx context.Context, lockID, owner string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID, "owner": owner})
	return err
}

// DeleteExpired removes a lock whose holder outlived its TTL. The TTL monitor
// only runs once a minute, so stale locks are reaped here too.
func (r *mongoBookingLockRepository) DeleteExpired(ctx context.Context, lockID string, now time.Time) (bool, error) {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID, "expires_at": bson.M{"$lte": now}})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
