package service

import (
	"context"
	"errors"
	"sync"

	carserrors "roadquest/internal/cars/errors"
	"roadquest/internal/cars/repository"
	"roadquest/internal/cars/validator"
	"roadquest/internal/events"
	"roadquest/pkg/config"
	apperrors "roadquest/pkg/errors"
	"roadquest/pkg/model"
	"roadquest/pkg/sanitizer"
	"roadquest/pkg/validation"
)

type CarService interface {
	Create(ctx context.Context, car *model.Car) error
	GetByID(ctx context.Context, id string) (*model.Car, error)
	List(ctx context.Context, filter repository.Filter, limit int, offset int64) ([]*model.Car, int64, error)
	Update(ctx context.Context, id string, update *model.CarUpdate) (*model.Car, error)
	Delete(ctx context.Context, id string) error
	BookingCount(ctx context.Context, id string) (*model.CarBookingCount, error)
}

type carService struct {
	repo      repository.CarRepository
	validator *validator.CarValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewCarService(
	repo repository.CarRepository,
	validator *validator.CarValidator,
	publisher events.Publisher,
	cfg *config.Config,
) CarService {
	return &carService{
		repo:      repo,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *carService) Create(ctx context.Context, car *model.Car) error {
	s.applyDefaults(car)
	s.sanitize(car)
	if err := s.validator.Validate(car); err != nil {
		s.cfg.Log.Warn("Car validation failed", "error", err)
		return validation.ToAppError("Car validation failed", err)
	}

	if err := s.repo.Create(ctx, car); err != nil {
		if errors.Is(err, carserrors.ErrDuplicateRegistration) {
			return apperrors.Conflict("A car with this registration number is already listed")
		}
		s.cfg.Log.Error("Failed to create car", "error", err)
		return apperrors.Internal("Failed to create car", err)
	}

	s.cfg.Log.Info("Car created successfully", "id", car.ID, "owner_email", car.OwnerEmail)
	s.publisher.Publish(ctx, events.CarCreated, car.ID, car)
	return nil
}

func (s *carService) GetByID(ctx context.Context, id string) (*model.Car, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Car ID cannot be empty")
	}

	car, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to retrieve car")
	}
	return car, nil
}

func (s *carService) List(ctx context.Context, filter repository.Filter, limit int, offset int64) ([]*model.Car, int64, error) {
	filter.OwnerEmail = sanitizer.SanitizeEmail(filter.OwnerEmail)
	if filter.Availability != "" && filter.Availability != model.CarAvailable && filter.Availability != model.CarUnavailable {
		return nil, 0, apperrors.InvalidInput("availability must be one of: available unavailable")
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var cars []*model.Car
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count cars", "error", errCount)
			errCount = apperrors.Internal("Failed to count cars", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		cars, errFind = s.repo.Find(ctx, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list cars", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve cars", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return cars, count, nil
}

func (s *carService) Update(ctx context.Context, id string, update *model.CarUpdate) (*model.Car, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Car ID cannot be empty")
	}
	if update.IsEmpty() {
		return nil, apperrors.InvalidInput("No valid update fields provided")
	}

	s.sanitizeUpdate(update)
	if err := s.validator.ValidateUpdate(update); err != nil {
		s.cfg.Log.Warn("Car update validation failed", "id", id, "error", err)
		return nil, validation.ToAppError("Invalid update input", err)
	}

	car, err := s.repo.Update(ctx, id, update)
	if err != nil {
		if errors.Is(err, carserrors.ErrDuplicateRegistration) {
			return nil, apperrors.Conflict("A car with this registration number is already listed")
		}
		return nil, s.mapRepoError(err, id, "Failed to update car")
	}

	s.cfg.Log.Info("Car updated successfully", "id", id)
	return car, nil
}

func (s *carService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Car ID cannot be empty")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapRepoError(err, id, "Failed to delete car")
	}

	s.cfg.Log.Info("Car deleted successfully", "id", id)
	s.publisher.Publish(ctx, events.CarDeleted, id, map[string]string{"id": id})
	return nil
}

func (s *carService) BookingCount(ctx context.Context, id string) (*model.CarBookingCount, error) {
	car, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.CarBookingCount{CarID: car.ID, BookingCount: car.BookingCount}, nil
}

// --- Helpers ---

func (s *carService) mapRepoError(err error, id, message string) error {
	switch {
	case errors.Is(err, carserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Car", id)
	case errors.Is(err, carserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid car ID format")
	default:
		s.cfg.Log.Error(message, "id", id, "error", err)
		return apperrors.Internal(message, err)
	}
}

func (s *carService) applyDefaults(car *model.Car) {
	car.ID = ""
	car.BookingCount = 0
	if car.Availability == "" {
		car.Availability = model.CarAvailable
	}
}

func (s *carService) sanitize(car *model.Car) {
	car.OwnerEmail = sanitizer.SanitizeEmail(car.OwnerEmail)
	car.Model = sanitizer.TrimAndNormalize(car.Model)
	car.RegistrationNumber = sanitizer.SanitizeRegistrationNumber(car.RegistrationNumber)
	car.Features = sanitizer.SanitizeSlice(car.Features, sanitizer.SanitizeFeature)
	car.Description = sanitizer.TrimAndNormalize(car.Description)
	car.ImageURL = sanitizer.SanitizeURL(car.ImageURL)
	car.Location = sanitizer.TrimAndNormalize(car.Location)
}

func (s *carService) sanitizeUpdate(u *model.CarUpdate) {
	if u.Model != nil {
		*u.Model = sanitizer.TrimAndNormalize(*u.Model)
	}
	if u.RegistrationNumber != nil {
		*u.RegistrationNumber = sanitizer.SanitizeRegistrationNumber(*u.RegistrationNumber)
	}
	if u.Features != nil {
		features := sanitizer.SanitizeSlice(*u.Features, sanitizer.SanitizeFeature)
		u.Features = &features
	}
	if u.Description != nil {
		*u.Description = sanitizer.TrimAndNormalize(*u.Description)
	}
	if u.ImageURL != nil {
		*u.ImageURL = sanitizer.SanitizeURL(*u.ImageURL)
	}
	if u.Location != nil {
		*u.Location = sanitizer.TrimAndNormalize(*u.Location)
	}
}
