package model

import (
	"time"
)

const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCanceled  = "canceled"
)

type Booking struct {
	ID           string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	CarID        string    `json:"car_id" bson:"car_id" validate:"required,mongodb"`
	Email        string    `json:"email" bson:"email" validate:"required,email,max=254"`
	CarModel     string    `json:"car_model,omitempty" bson:"car_model,omitempty" validate:"omitempty,max=100"`
	StartDate    time.Time `json:"start_date" bson:"start_date" validate:"required"`
	EndDate      time.Time `json:"end_date" bson:"end_date" validate:"required"`
	Status       string    `json:"status" bson:"status" validate:"required,oneof=pending confirmed canceled"`
	TotalPrice   float64   `json:"total_price" bson:"total_price" validate:"gte=0"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	LastModified time.Time `json:"last_modified" bson:"last_modified"`
}

// BookingUpdate carries the amendable fields. Nil means "leave unchanged".
type BookingUpdate struct {
	Status     *string    `json:"status,omitempty" validate:"omitempty,oneof=pending confirmed canceled"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	TotalPrice *float64   `json:"total_price,omitempty" validate:"omitempty,gte=0"`
}

func (u *BookingUpdate) IsEmpty() bool {
	return u == nil || (u.Status == nil && u.StartDate == nil && u.EndDate == nil && u.TotalPrice == nil)
}

// IsCancelOnly reports whether the update does nothing but cancel.
func (u *BookingUpdate) IsCancelOnly() bool {
	return u != nil && u.Status != nil && *u.Status == BookingStatusCanceled &&
		u.StartDate == nil && u.EndDate == nil && u.TotalPrice == nil
}

func (u *BookingUpdate) ChangesDates() bool {
	return u != nil && (u.StartDate != nil || u.EndDate != nil)
}

// IsActive reports whether a booking in this status holds its car.
func IsActive(status string) bool {
	return status == BookingStatusPending || status == BookingStatusConfirmed
}

func (b *Booking) IsActive() bool {
	return IsActive(b.Status)
}

var bookingTransitions = map[string][]string{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCanceled},
	BookingStatusConfirmed: {BookingStatusCanceled},
	BookingStatusCanceled:  {},
}

// CanTransition reports whether a booking may move from one status to another.
// Staying in the same active status is always allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return IsActive(from)
	}
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
