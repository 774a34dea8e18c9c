package validator

import (
	"reflect"
	"regexp"

	"roadquest/pkg/logger"
	"roadquest/pkg/model"
	"roadquest/pkg/validation"

	"github.com/go-playground/validator/v10"
)

var registrationRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9 -]*[A-Z0-9]$`)

type CarValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewCarValidator(log *logger.Logger) *CarValidator {
	v := validation.New()

	if err := v.RegisterValidation("registration_number", validateRegistrationNumber); err != nil {
		log.Fatal("Failed to register 'registration_number' validator",
			"error", err,
		)
	}

	log.Info("Car validator initialized successfully")

	return &CarValidator{
		validate: v,
		logger:   log,
	}
}

// validateRegistrationNumber expects an upper-cased plate, which the service
// produces while sanitizing.
func validateRegistrationNumber(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return false
	}
	return registrationRegex.MatchString(field.String())
}

func (v *CarValidator) Validate(car *model.Car) error {
	return validation.Struct(v.validate, car)
}

func (v *CarValidator) ValidateUpdate(update *model.CarUpdate) error {
	return validation.Struct(v.validate, update)
}
