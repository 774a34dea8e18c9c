package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"roadquest/internal/bookings/conflict"
	bookingserrors "roadquest/internal/bookings/errors"
	"roadquest/internal/bookings/repository"
	"roadquest/internal/bookings/validator"
	carserrors "roadquest/internal/cars/errors"
	carsrepo "roadquest/internal/cars/repository"
	"roadquest/internal/events"
	"roadquest/pkg/config"
	apperrors "roadquest/pkg/errors"
	"roadquest/pkg/model"
	"roadquest/pkg/sanitizer"
	"roadquest/pkg/validation"
)

type BookingService interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByEmail(ctx context.Context, email string, limit int, offset int64) ([]*model.Booking, int64, error)
	Update(ctx context.Context, id string, update *model.BookingUpdate) (*model.Booking, error)
	Cancel(ctx context.Context, id string) (*model.Booking, error)
	Search(ctx context.Context, carID string, start, end *time.Time) ([]*model.Booking, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	carRepo   carsrepo.CarRepository
	locker    *carLocker
	validator *validator.BookingValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.BookingLockRepository,
	carRepo carsrepo.CarRepository,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		carRepo:   carRepo,
		locker:    newCarLocker(lockRepo, cfg.LockTTL, cfg.LockRetryAttempts, cfg.LockRetryDelay, cfg.Log),
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *bookingService) Create(ctx context.Context, booking *model.Booking) error {
	s.applyDefaults(booking)
	s.sanitize(booking)
	if err := s.validator.ValidateCreate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return validation.ToAppError("Booking validation failed", err)
	}
	if err := conflict.CandidateFor(booking).Validate(); err != nil {
		return apperrors.InvalidInput("End date must be after start date")
	}

	release, err := s.locker.Acquire(ctx, booking.CarID)
	if err != nil {
		return err
	}
	defer release()

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		// The transaction body may be retried; let the store assign a fresh id.
		booking.ID = ""
		car, err := s.carRepo.FindByID(txCtx, booking.CarID)
		if err != nil {
			return s.mapCarError(err, booking.CarID)
		}
		booking.CarModel = car.Model

		if err := s.ensureNoConflict(txCtx, booking); err != nil {
			return err
		}

		if err := s.repo.Create(txCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}

		if err := s.carRepo.IncrementBookingCount(txCtx, booking.CarID, 1); err != nil {
			return s.mapCarError(err, booking.CarID)
		}
		return nil
	})
	if err != nil {
		return s.txError("Failed to create booking", err)
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"car_id", booking.CarID,
		"start_date", booking.StartDate,
		"end_date", booking.EndDate,
	)
	s.publisher.Publish(ctx, events.BookingCreated, booking.CarID, booking)
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to retrieve booking")
	}

	return booking, nil
}

func (s *bookingService) ListByEmail(ctx context.Context, email string, limit int, offset int64) ([]*model.Booking, int64, error) {
	email = sanitizer.SanitizeEmail(email)
	if email == "" {
		return nil, 0, apperrors.InvalidInput("Email parameter is required")
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByEmail(ctx, email)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindByEmail(ctx, email, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to fetch bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}

	return bookings, count, nil
}

func (s *bookingService) Update(ctx context.Context, id string, update *model.BookingUpdate) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	if update.IsEmpty() {
		return nil, apperrors.InvalidInput("No valid update fields provided")
	}
	s.normalizeUpdate(update)
	if err := s.validator.ValidateUpdate(update); err != nil {
		s.cfg.Log.Warn("Booking update validation failed", "id", id, "error", err)
		return nil, validation.ToAppError("Invalid update input", err)
	}

	return s.amend(ctx, id, update)
}

// Cancel moves a booking to canceled. Canceling twice returns the booking unchanged.
func (s *bookingService) Cancel(ctx context.Context, id string) (*model.Booking, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == model.BookingStatusCanceled {
		return existing, nil
	}

	status := model.BookingStatusCanceled
	return s.amend(ctx, id, &model.BookingUpdate{Status: &status})
}

func (s *bookingService) Search(ctx context.Context, carID string, start, end *time.Time) ([]*model.Booking, error) {
	carID = strings.TrimSpace(carID)
	if carID == "" {
		return nil, apperrors.InvalidInput("car_id is required")
	}
	if start != nil && end != nil && !end.After(*start) {
		return nil, apperrors.InvalidInput("end_time must be after start_time")
	}

	bookings, err := s.repo.FindActiveByCar(ctx, carID, "", start, end)
	if err != nil {
		s.cfg.Log.Error("Failed to search bookings", "car_id", carID, "error", err)
		return nil, apperrors.Internal("Failed to search bookings", err)
	}

	s.cfg.Log.Debug("Booking search completed", "car_id", carID, "count", len(bookings))
	return bookings, nil
}

// amend applies update under the car lock and inside a transaction, re-running
// the conflict check whenever an active booking's dates change.
func (s *bookingService) amend(ctx context.Context, id string, update *model.BookingUpdate) (*model.Booking, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to check booking existence")
	}

	release, err := s.locker.Acquire(ctx, existing.CarID)
	if err != nil {
		return nil, err
	}
	defer release()

	var updated *model.Booking
	var previousStatus string
	unchanged := false
	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return s.mapRepoError(err, id, "Failed to check booking existence")
		}

		// A concurrent cancel may have won the lock first.
		if current.Status == model.BookingStatusCanceled && update.IsCancelOnly() {
			updated = current
			unchanged = true
			return nil
		}

		merged, err := mergeBookingUpdate(current, update)
		if err != nil {
			return err
		}

		if merged.IsActive() && update.ChangesDates() {
			if err := s.ensureNoConflict(txCtx, merged); err != nil {
				return err
			}
		}

		if err := s.repo.Update(txCtx, id, merged); err != nil {
			return s.mapRepoError(err, id, "Failed to update booking")
		}

		updated = merged
		previousStatus = current.Status
		return nil
	})
	if err != nil {
		return nil, s.txError("Failed to update booking", err)
	}
	if unchanged {
		return updated, nil
	}

	eventType := events.BookingUpdated
	if updated.Status == model.BookingStatusCanceled && previousStatus != model.BookingStatusCanceled {
		eventType = events.BookingCanceled
	}

	s.cfg.Log.Info("Booking updated successfully", "id", id, "status", updated.Status)
	s.publisher.Publish(ctx, eventType, updated.CarID, updated)
	return updated, nil
}

// ensureNoConflict runs the conflict check for b against the car's active bookings.
func (s *bookingService) ensureNoConflict(ctx context.Context, b *model.Booking) error {
	candidate := conflict.CandidateFor(b)

	existing, err := s.repo.FindActiveByCar(ctx, b.CarID, b.ID, &b.StartDate, &b.EndDate)
	if err != nil {
		return apperrors.Internal("Failed to check existing bookings", err)
	}

	result, err := conflict.Check(candidate, conflict.FromBookings(existing))
	if err != nil {
		return apperrors.InvalidInput("End date must be after start date")
	}
	if result.Conflict {
		s.cfg.Log.Info("Booking conflict detected",
			"car_id", b.CarID,
			"blocking_booking_id", result.BlockingID,
		)
		return apperrors.Conflict("Booking time overlaps with an existing booking").WithDetails(map[string]any{
			"blocking_booking_id": result.BlockingID,
			"blocking_start":      result.BlockingStart.UTC().Format(time.RFC3339),
			"blocking_end":        result.BlockingEnd.UTC().Format(time.RFC3339),
		})
	}
	return nil
}

// --- Helpers ---

func mergeBookingUpdate(existing *model.Booking, update *model.BookingUpdate) (*model.Booking, error) {
	if existing.Status == model.BookingStatusCanceled {
		return nil, apperrors.Validation("Canceled bookings cannot be modified", map[string]any{
			"status": existing.Status,
		})
	}

	merged := *existing

	if update.Status != nil {
		if !model.CanTransition(existing.Status, *update.Status) {
			return nil, apperrors.Validation("Invalid status transition", map[string]any{
				"from": existing.Status,
				"to":   *update.Status,
			})
		}
		merged.Status = *update.Status
	}
	if update.StartDate != nil {
		merged.StartDate = *update.StartDate
	}
	if update.EndDate != nil {
		merged.EndDate = *update.EndDate
	}
	if update.TotalPrice != nil {
		merged.TotalPrice = *update.TotalPrice
	}

	if update.ChangesDates() && !merged.EndDate.After(merged.StartDate) {
		return nil, apperrors.InvalidInput("End date must be after start date")
	}

	return &merged, nil
}

func (s *bookingService) applyDefaults(b *model.Booking) {
	b.ID = ""
	if b.Status == "" {
		b.Status = model.BookingStatusPending
	}
	b.StartDate = normalizeTime(b.StartDate)
	b.EndDate = normalizeTime(b.EndDate)
}

func (s *bookingService) sanitize(b *model.Booking) {
	b.Email = sanitizer.SanitizeEmail(b.Email)
	b.CarID = strings.TrimSpace(b.CarID)
	b.Status = strings.ToLower(strings.TrimSpace(b.Status))
}

func (s *bookingService) normalizeUpdate(u *model.BookingUpdate) {
	if u.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*u.Status))
		u.Status = &status
	}
	if u.StartDate != nil {
		start := normalizeTime(*u.StartDate)
		u.StartDate = &start
	}
	if u.EndDate != nil {
		end := normalizeTime(*u.EndDate)
		u.EndDate = &end
	}
}

// normalizeTime matches the millisecond precision MongoDB stores.
func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Millisecond)
}

func (s *bookingService) mapRepoError(err error, id, message string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	default:
		s.cfg.Log.Error(message, "id", id, "error", err)
		return apperrors.Internal(message, err)
	}
}

func (s *bookingService) mapCarError(err error, carID string) error {
	switch {
	case errors.Is(err, carserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Car", carID)
	case errors.Is(err, carserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid car ID format")
	default:
		s.cfg.Log.Error("Failed to load car for booking", "car_id", carID, "error", err)
		return apperrors.Internal("Failed to load car", err)
	}
}

func (s *bookingService) txError(message string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	s.cfg.Log.Error(message, "error", err)
	return apperrors.Internal(message, err)
}
