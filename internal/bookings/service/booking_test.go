package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"roadquest/internal/bookings/validator"
	"roadquest/internal/events"
	apperrors "roadquest/pkg/errors"
	"roadquest/pkg/model"
)

func requireAppError(t *testing.T, err error, status int) *apperrors.AppError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d, got nil", status)
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}
	if appErr.StatusCode() != status {
		t.Fatalf("status = %d, want %d (%v)", appErr.StatusCode(), status, appErr)
	}
	return appErr
}

// ────────────────────────────────────────────────
// End-to-end booking scenario on one car
// ────────────────────────────────────────────────

func TestBookingScenario_Car1(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.booking(10, 12, model.BookingStatusConfirmed)
	if err := f.service.Create(ctx, a); err != nil {
		t.Fatalf("create A: %v", err)
	}
	assertNoOverlap(t, f.bookings.all())

	b := f.booking(11, 13, "")
	appErr := requireAppError(t, f.service.Create(ctx, b), http.StatusConflict)
	if appErr.Details["blocking_booking_id"] != a.ID {
		t.Errorf("blocking_booking_id = %v, want %s", appErr.Details["blocking_booking_id"], a.ID)
	}
	if appErr.Details["blocking_start"] != "2024-01-10T00:00:00Z" || appErr.Details["blocking_end"] != "2024-01-12T00:00:00Z" {
		t.Errorf("blocking interval = %v - %v", appErr.Details["blocking_start"], appErr.Details["blocking_end"])
	}
	assertNoOverlap(t, f.bookings.all())

	c := f.booking(12, 14, "")
	if err := f.service.Create(ctx, c); err != nil {
		t.Fatalf("create C (touching A): %v", err)
	}
	if c.Status != model.BookingStatusPending {
		t.Errorf("C status = %q, want pending", c.Status)
	}
	if c.CarModel != "Toyota Corolla" {
		t.Errorf("C car model = %q", c.CarModel)
	}
	assertNoOverlap(t, f.bookings.all())

	if got := f.cars.bookingCount(f.carID); got != 2 {
		t.Errorf("booking count = %d, want 2", got)
	}
	if len(f.bookings.all()) != 2 {
		t.Errorf("stored %d bookings, want 2", len(f.bookings.all()))
	}
	if f.locks.held("booking_lock_" + f.carID) {
		t.Error("lock must be released after each write")
	}

	types := f.publisher.types()
	if len(types) != 2 || types[0] != events.BookingCreated || types[1] != events.BookingCreated {
		t.Errorf("events = %v", types)
	}
}

// ────────────────────────────────────────────────
// Create
// ────────────────────────────────────────────────

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture, b *model.Booking)
		status int
	}{
		{"end before start", func(f *fixture, b *model.Booking) { b.StartDate, b.EndDate = day(12), day(10) }, http.StatusBadRequest},
		{"zero length", func(f *fixture, b *model.Booking) { b.EndDate = b.StartDate }, http.StatusBadRequest},
		{"missing start", func(f *fixture, b *model.Booking) { b.StartDate = time.Time{} }, http.StatusUnprocessableEntity},
		{"bad email", func(f *fixture, b *model.Booking) { b.Email = "not-an-email" }, http.StatusUnprocessableEntity},
		{"bad car id", func(f *fixture, b *model.Booking) { b.CarID = "car1" }, http.StatusUnprocessableEntity},
		{"negative price", func(f *fixture, b *model.Booking) { b.TotalPrice = -1 }, http.StatusUnprocessableEntity},
		{"created canceled", func(f *fixture, b *model.Booking) { b.Status = model.BookingStatusCanceled }, http.StatusUnprocessableEntity},
		{"unknown status", func(f *fixture, b *model.Booking) { b.Status = "returned" }, http.StatusUnprocessableEntity},
		{"unknown car", func(f *fixture, b *model.Booking) { b.CarID = "65a000000000000000000000" }, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			b := f.booking(10, 12, "")
			tt.mutate(f, b)

			requireAppError(t, f.service.Create(context.Background(), b), tt.status)
			if len(f.bookings.all()) != 0 {
				t.Error("nothing should be stored")
			}
			if len(f.publisher.types()) != 0 {
				t.Error("no event should be published")
			}
		})
	}
}

func TestCreate_NormalizesInput(t *testing.T) {
	f := newFixture(t)
	b := f.booking(10, 12, " Confirmed ")
	b.Email = "  Renter@Example.COM "
	b.ID = "client-supplied"
	b.StartDate = time.Date(2024, 1, 10, 2, 0, 0, 123456789, time.FixedZone("X", 2*3600))

	if err := f.service.Create(context.Background(), b); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if b.Email != "renter@example.com" {
		t.Errorf("email = %q", b.Email)
	}
	if b.Status != model.BookingStatusConfirmed {
		t.Errorf("status = %q", b.Status)
	}
	if b.ID == "client-supplied" {
		t.Error("client id must be replaced")
	}
	if b.StartDate.Location() != time.UTC || b.StartDate.Nanosecond() != 123000000 {
		t.Errorf("start = %v", b.StartDate)
	}
}

func TestCreate_CanceledBookingsDoNotBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.booking(10, 12, "")
	if err := f.service.Create(ctx, a); err != nil {
		t.Fatal(err)
	}
	if _, err := f.service.Cancel(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	if err := f.service.Create(ctx, f.booking(10, 12, "")); err != nil {
		t.Errorf("slot of a canceled booking should be free: %v", err)
	}
}

func TestCreate_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.bookings.findActiveErr = errors.New("connection reset")

	requireAppError(t, f.service.Create(context.Background(), f.booking(10, 12, "")), http.StatusInternalServerError)
	if f.locks.held("booking_lock_" + f.carID) {
		t.Error("lock must be released on failure")
	}
}

func TestCreate_ConcurrentWritersSameWindow(t *testing.T) {
	cfg := testConfig()
	cfg.LockRetryAttempts = 20
	f := newFixtureWithConfig(t, cfg)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.service.Create(context.Background(), f.booking(10, 12, ""))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !apperrors.HasCode(err, apperrors.CodeConflict) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d writers succeeded, want exactly 1", succeeded)
	}
	assertNoOverlap(t, f.bookings.all())
}

// ────────────────────────────────────────────────
// Lock
// ────────────────────────────────────────────────

func TestCreate_LockHeld(t *testing.T) {
	f := newFixture(t)
	lockID := model.BookingLockID(f.carID)
	_ = f.locks.Create(context.Background(), &model.BookingLock{
		ID:        lockID,
		Owner:     "someone-else",
		ExpiresAt: time.Now().Add(time.Minute),
	})

	appErr := requireAppError(t, f.service.Create(context.Background(), f.booking(10, 12, "")), http.StatusConflict)
	if appErr.Message != "car is currently being booked" {
		t.Errorf("message = %q", appErr.Message)
	}
	if f.locks.creates != 1+testConfig().LockRetryAttempts {
		t.Errorf("lock attempts = %d, want %d", f.locks.creates-1, testConfig().LockRetryAttempts)
	}
	if !f.locks.held(lockID) {
		t.Error("a foreign lock must not be released")
	}
}

func TestCreate_ExpiredLockIsReaped(t *testing.T) {
	f := newFixture(t)
	_ = f.locks.Create(context.Background(), &model.BookingLock{
		ID:        model.BookingLockID(f.carID),
		Owner:     "crashed-writer",
		ExpiresAt: time.Now().Add(-time.Second),
	})

	if err := f.service.Create(context.Background(), f.booking(10, 12, "")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

// ────────────────────────────────────────────────
// Update / Cancel
// ────────────────────────────────────────────────

func ptr[T any](v T) *T { return &v }

func TestUpdate(t *testing.T) {
	tests := []struct {
		name   string
		update func() *model.BookingUpdate
		status int
		check  func(t *testing.T, b *model.Booking)
	}{
		{
			name:   "empty update",
			update: func() *model.BookingUpdate { return &model.BookingUpdate{} },
			status: http.StatusBadRequest,
		},
		{
			name:   "confirm",
			update: func() *model.BookingUpdate { return &model.BookingUpdate{Status: ptr(model.BookingStatusConfirmed)} },
			check: func(t *testing.T, b *model.Booking) {
				if b.Status != model.BookingStatusConfirmed {
					t.Errorf("status = %q", b.Status)
				}
			},
		},
		{
			name:   "unknown status",
			update: func() *model.BookingUpdate { return &model.BookingUpdate{Status: ptr("returned")} },
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "shift within own slot",
			update: func() *model.BookingUpdate { return &model.BookingUpdate{StartDate: ptr(day(3)), EndDate: ptr(day(6))} },
			check: func(t *testing.T, b *model.Booking) {
				if !b.StartDate.Equal(day(3)) || !b.EndDate.Equal(day(6)) {
					t.Errorf("dates = %v - %v", b.StartDate, b.EndDate)
				}
			},
		},
		{
			name:   "extend into neighbour",
			update: func() *model.BookingUpdate { return &model.BookingUpdate{EndDate: ptr(day(11))} },
			status: http.StatusConflict,
		},
		{
			name:   "end before start",
			update: func() *model.BookingUpdate { return &model.BookingUpdate{EndDate: ptr(day(1))} },
			status: http.StatusBadRequest,
		},
		{
			name:   "price only",
			update: func() *model.BookingUpdate { return &model.BookingUpdate{TotalPrice: ptr(99.5)} },
			check: func(t *testing.T, b *model.Booking) {
				if b.TotalPrice != 99.5 {
					t.Errorf("price = %v", b.TotalPrice)
				}
			},
		},
		{
			name:   "negative price",
			update: func() *model.BookingUpdate { return &model.BookingUpdate{TotalPrice: ptr(-3.0)} },
			status: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			target := f.booking(2, 5, "")
			neighbour := f.booking(10, 12, model.BookingStatusConfirmed)
			for _, b := range []*model.Booking{target, neighbour} {
				if err := f.service.Create(ctx, b); err != nil {
					t.Fatal(err)
				}
			}

			updated, err := f.service.Update(ctx, target.ID, tt.update())
			if tt.status != 0 {
				requireAppError(t, err, tt.status)
				return
			}
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			tt.check(t, updated)
			assertNoOverlap(t, f.bookings.all())
		})
	}
}

func TestUpdate_ConflictDetailsNameBlocker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.booking(10, 12, model.BookingStatusConfirmed)
	c := f.booking(12, 14, "")
	for _, b := range []*model.Booking{a, c} {
		if err := f.service.Create(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	_, err := f.service.Update(ctx, c.ID, &model.BookingUpdate{StartDate: ptr(day(11))})
	appErr := requireAppError(t, err, http.StatusConflict)
	if appErr.Details["blocking_booking_id"] != a.ID {
		t.Errorf("blocking id = %v, want %s", appErr.Details["blocking_booking_id"], a.ID)
	}
}

func TestUpdate_IllegalTransitions(t *testing.T) {
	tests := []struct {
		from, to string
	}{
		{model.BookingStatusConfirmed, model.BookingStatusPending},
		{model.BookingStatusCanceled, model.BookingStatusPending},
		{model.BookingStatusCanceled, model.BookingStatusConfirmed},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			b := f.booking(10, 12, model.BookingStatusConfirmed)
			if err := f.service.Create(ctx, b); err != nil {
				t.Fatal(err)
			}
			if tt.from == model.BookingStatusCanceled {
				if _, err := f.service.Cancel(ctx, b.ID); err != nil {
					t.Fatal(err)
				}
			}

			_, err := f.service.Update(ctx, b.ID, &model.BookingUpdate{Status: ptr(tt.to)})
			requireAppError(t, err, http.StatusUnprocessableEntity)
		})
	}
}

func TestUpdate_NotFoundAndBadID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	update := &model.BookingUpdate{TotalPrice: ptr(1.0)}

	_, err := f.service.Update(ctx, "65a000000000000000000000", update)
	requireAppError(t, err, http.StatusNotFound)

	_, err = f.service.Update(ctx, "nope", update)
	requireAppError(t, err, http.StatusBadRequest)
}

// staleReadRepository serves a pre-lock snapshot for the first reads, as a
// request that lost the lock to a concurrent writer would see it.
type staleReadRepository struct {
	*memBookingRepository
	stale      *model.Booking
	staleReads int
}

func (r *staleReadRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if r.staleReads > 0 {
		r.staleReads--
		out := *r.stale
		return &out, nil
	}
	return r.memBookingRepository.FindByID(ctx, id)
}

func TestCancel_ConcurrentCancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.booking(10, 12, model.BookingStatusConfirmed)
	if err := f.service.Create(ctx, b); err != nil {
		t.Fatal(err)
	}
	stale, err := f.bookings.FindByID(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.service.Cancel(ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	loser := NewBookingService(
		// Cancel's existence check and amend's pre-lock read both see confirmed.
		&staleReadRepository{memBookingRepository: f.bookings, stale: stale, staleReads: 2},
		f.locks,
		f.cars,
		validator.NewBookingValidator(cfg.Log),
		f.publisher,
		cfg,
	)

	got, err := loser.Cancel(ctx, b.ID)
	if err != nil {
		t.Fatalf("Cancel() error = %v, want the already canceled booking", err)
	}
	if got.Status != model.BookingStatusCanceled {
		t.Errorf("status = %q", got.Status)
	}
	if types := f.publisher.types(); len(types) != 2 {
		t.Errorf("events = %v, the losing cancel must not publish", types)
	}
}

func TestUpdate_CanceledBookingStillRejectsChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.booking(10, 12, model.BookingStatusConfirmed)
	if err := f.service.Create(ctx, b); err != nil {
		t.Fatal(err)
	}
	if _, err := f.service.Cancel(ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	_, err := f.service.Update(ctx, b.ID, &model.BookingUpdate{
		Status:     ptr(model.BookingStatusCanceled),
		TotalPrice: ptr(10.0),
	})
	requireAppError(t, err, http.StatusUnprocessableEntity)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.booking(10, 12, model.BookingStatusConfirmed)
	if err := f.service.Create(ctx, b); err != nil {
		t.Fatal(err)
	}

	canceled, err := f.service.Cancel(ctx, b.ID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if canceled.Status != model.BookingStatusCanceled {
		t.Errorf("status = %q", canceled.Status)
	}

	again, err := f.service.Cancel(ctx, b.ID)
	if err != nil || again.Status != model.BookingStatusCanceled {
		t.Errorf("second Cancel() = %v, %v", again, err)
	}

	types := f.publisher.types()
	if len(types) != 2 || types[1] != events.BookingCanceled {
		t.Errorf("events = %v, want [created canceled]", types)
	}
	if got := f.cars.bookingCount(f.carID); got != 1 {
		t.Errorf("booking count = %d, cancel must not decrement it", got)
	}
}

// ────────────────────────────────────────────────
// Reads
// ────────────────────────────────────────────────

func TestListByEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.service.ListByEmail(ctx, "  ", 10, 0)
	requireAppError(t, err, http.StatusBadRequest)

	bookings, count, err := f.service.ListByEmail(ctx, "nobody@example.com", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if bookings == nil || len(bookings) != 0 || count != 0 {
		t.Errorf("got %v (%d), want empty non-nil list", bookings, count)
	}

	for _, d := range []int{1, 5, 9} {
		if err := f.service.Create(ctx, f.booking(d, d+2, "")); err != nil {
			t.Fatal(err)
		}
	}

	bookings, count, err = f.service.ListByEmail(ctx, "Renter@Example.com", 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 || len(bookings) != 2 {
		t.Fatalf("got %d bookings of %d, want 2 of 3", len(bookings), count)
	}
	if !bookings[0].StartDate.Equal(day(5)) {
		t.Errorf("first page item starts %v, want day 5", bookings[0].StartDate)
	}
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Search(ctx, "", nil, nil)
	requireAppError(t, err, http.StatusBadRequest)

	start, end := day(12), day(10)
	_, err = f.service.Search(ctx, f.carID, &start, &end)
	requireAppError(t, err, http.StatusBadRequest)

	a := f.booking(1, 3, "")
	b := f.booking(5, 8, "")
	for _, bk := range []*model.Booking{a, b} {
		if err := f.service.Create(ctx, bk); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.service.Cancel(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	all, err := f.service.Search(ctx, f.carID, nil, nil)
	if err != nil || len(all) != 1 || all[0].ID != b.ID {
		t.Errorf("Search(all) = %v, %v", all, err)
	}

	windowStart, windowEnd := day(8), day(9)
	touching, err := f.service.Search(ctx, f.carID, &windowStart, &windowEnd)
	if err != nil || len(touching) != 0 {
		t.Errorf("touching window should be empty, got %v, %v", touching, err)
	}
}

func TestGetByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.booking(1, 3, "")
	if err := f.service.Create(ctx, b); err != nil {
		t.Fatal(err)
	}

	got, err := f.service.GetByID(ctx, b.ID)
	if err != nil || got.ID != b.ID {
		t.Errorf("GetByID() = %v, %v", got, err)
	}

	_, err = f.service.GetByID(ctx, "")
	requireAppError(t, err, http.StatusBadRequest)
	_, err = f.service.GetByID(ctx, "xyz")
	requireAppError(t, err, http.StatusBadRequest)
	_, err = f.service.GetByID(ctx, "65a000000000000000000000")
	requireAppError(t, err, http.StatusNotFound)
}
