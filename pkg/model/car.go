package model

import "time"

const (
	CarAvailable   = "available"
	CarUnavailable = "unavailable"
)

type Car struct {
	ID                 string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	OwnerEmail         string    `json:"owner_email" bson:"owner_email" validate:"required,email,max=254"`
	Model              string    `json:"model" bson:"model" validate:"required,min=2,max=100"`
	RegistrationNumber string    `json:"registration_number" bson:"registration_number" validate:"required,min=2,max=20,registration_number"`
	DailyPrice         float64   `json:"daily_price" bson:"daily_price" validate:"gt=0"`
	Availability       string    `json:"availability" bson:"availability" validate:"required,oneof=available unavailable"`
	Features           []string  `json:"features,omitempty" bson:"features,omitempty" validate:"omitempty,max=30,dive,min=1,max=50"`
	Description        string    `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=2000"`
	ImageURL           string    `json:"image_url,omitempty" bson:"image_url,omitempty" validate:"omitempty,url"`
	Location           string    `json:"location,omitempty" bson:"location,omitempty" validate:"omitempty,max=200"`
	BookingCount       int64     `json:"booking_count" bson:"booking_count"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at"`
	LastModified       time.Time `json:"last_modified" bson:"last_modified"`
}

// CarUpdate carries the fields an owner may change. Owner and booking count
// are not updatable.
type CarUpdate struct {
	Model              *string   `json:"model,omitempty" bson:"model,omitempty" validate:"omitempty,min=2,max=100"`
	RegistrationNumber *string   `json:"registration_number,omitempty" bson:"registration_number,omitempty" validate:"omitempty,min=2,max=20,registration_number"`
	DailyPrice         *float64  `json:"daily_price,omitempty" bson:"daily_price,omitempty" validate:"omitempty,gt=0"`
	Availability       *string   `json:"availability,omitempty" bson:"availability,omitempty" validate:"omitempty,oneof=available unavailable"`
	Features           *[]string `json:"features,omitempty" bson:"features,omitempty" validate:"omitempty,max=30,dive,min=1,max=50"`
	Description        *string   `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=2000"`
	ImageURL           *string   `json:"image_url,omitempty" bson:"image_url,omitempty" validate:"omitempty,url"`
	Location           *string   `json:"location,omitempty" bson:"location,omitempty" validate:"omitempty,max=200"`
}

func (u *CarUpdate) IsEmpty() bool {
	return u == nil || (u.Model == nil && u.RegistrationNumber == nil && u.DailyPrice == nil &&
		u.Availability == nil && u.Features == nil && u.Description == nil &&
		u.ImageURL == nil && u.Location == nil)
}

// CarBookingCount is the payload of the booking-count endpoint.
type CarBookingCount struct {
	CarID        string `json:"car_id"`
	BookingCount int64  `json:"booking_count"`
}
