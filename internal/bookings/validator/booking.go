package validator

import (
	"roadquest/pkg/logger"
	"roadquest/pkg/model"
	"roadquest/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: validation.New(),
		logger:   log,
	}
}

// Validate checks field-level rules. Interval ordering is checked by the
// conflict package so malformed intervals map to a bad request, not a 422.
func (v *BookingValidator) Validate(booking *model.Booking) error {
	return validation.Struct(v.validate, booking)
}

// ValidateCreate additionally rejects bookings that start life canceled.
func (v *BookingValidator) ValidateCreate(booking *model.Booking) error {
	if err := v.Validate(booking); err != nil {
		return err
	}
	if !booking.IsActive() {
		return validation.ValidationErrors{{
			Field:   "status",
			Message: "a new booking must be pending or confirmed",
		}}
	}
	return nil
}

func (v *BookingValidator) ValidateUpdate(update *model.BookingUpdate) error {
	return validation.Struct(v.validate, update)
}
