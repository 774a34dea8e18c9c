package model

import "time"

// BookingLock is an advisory lock serializing booking writes for one car.
// The TTL index on ExpiresAt reaps locks left behind by crashed writers.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func BookingLockID(carID string) string {
	return "booking_lock_" + carID
}
