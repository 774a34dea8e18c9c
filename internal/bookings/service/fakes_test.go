package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	bookingserrors "roadquest/internal/bookings/errors"
	"roadquest/internal/bookings/validator"
	carserrors "roadquest/internal/cars/errors"
	carsrepo "roadquest/internal/cars/repository"
	"roadquest/pkg/config"
	mongotx "roadquest/pkg/db/mongo"
	"roadquest/pkg/logger"
	"roadquest/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ────────────────────────────────────────────────
// In-memory booking store
// ────────────────────────────────────────────────

type memBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking

	findActiveErr error
}

func newMemBookingRepository() *memBookingRepository {
	return &memBookingRepository{bookings: make(map[string]*model.Booking)}
}

func (m *memBookingRepository) Create(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b.ID = primitive.NewObjectID().Hex()
	now := time.Now().UTC()
	b.CreatedAt, b.LastModified = now, now
	stored := *b
	m.bookings[b.ID] = &stored
	return nil
}

func (m *memBookingRepository) FindByID(_ context.Context, id string) (*model.Booking, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, bookingserrors.ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	out := *b
	return &out, nil
}

func (m *memBookingRepository) FindByEmail(_ context.Context, email string, limit int, offset int64) ([]*model.Booking, error) {
	all := m.filter(func(b *model.Booking) bool { return b.Email == email })
	if offset >= int64(len(all)) {
		return []*model.Booking{}, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memBookingRepository) CountByEmail(_ context.Context, email string) (int64, error) {
	return int64(len(m.filter(func(b *model.Booking) bool { return b.Email == email }))), nil
}

func (m *memBookingRepository) FindActiveByCar(_ context.Context, carID, excludeID string, start, end *time.Time) ([]*model.Booking, error) {
	if m.findActiveErr != nil {
		return nil, m.findActiveErr
	}
	return m.filter(func(b *model.Booking) bool {
		if b.CarID != carID || b.ID == excludeID || !b.IsActive() {
			return false
		}
		if end != nil && !b.StartDate.Before(*end) {
			return false
		}
		if start != nil && !b.EndDate.After(*start) {
			return false
		}
		return true
	}), nil
}

func (m *memBookingRepository) Update(_ context.Context, id string, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bookings[id]; !ok {
		return bookingserrors.ErrNotFound
	}
	b.LastModified = time.Now().UTC()
	stored := *b
	m.bookings[id] = &stored
	return nil
}

func (m *memBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

func (m *memBookingRepository) filter(keep func(*model.Booking) bool) []*model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*model.Booking, 0)
	for _, b := range m.bookings {
		if keep(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memBookingRepository) all() []*model.Booking {
	return m.filter(func(*model.Booking) bool { return true })
}

// ────────────────────────────────────────────────
// In-memory lock store
// ────────────────────────────────────────────────

type memLockRepository struct {
	mu    sync.Mutex
	locks map[string]model.BookingLock

	creates int
}

func newMemLockRepository() *memLockRepository {
	return &memLockRepository{locks: make(map[string]model.BookingLock)}
}

func (m *memLockRepository) Create(_ context.Context, lock *model.BookingLock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creates++
	if _, held := m.locks[lock.ID]; held {
		return bookingserrors.ErrLockHeld
	}
	m.locks[lock.ID] = *lock
	return nil
}

func (m *memLockRepository) Delete(_ context.Context, lockID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.locks[lockID]; ok && l.Owner == owner {
		delete(m.locks, lockID)
	}
	return nil
}

func (m *memLockRepository) DeleteExpired(_ context.Context, lockID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.locks[lockID]; ok && !l.ExpiresAt.After(now) {
		delete(m.locks, lockID)
		return true, nil
	}
	return false, nil
}

func (m *memLockRepository) held(lockID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locks[lockID]
	return ok
}

// ────────────────────────────────────────────────
// In-memory car store
// ────────────────────────────────────────────────

type memCarRepository struct {
	mu   sync.Mutex
	cars map[string]*model.Car
}

func newMemCarRepository(cars ...*model.Car) *memCarRepository {
	m := &memCarRepository{cars: make(map[string]*model.Car)}
	for _, c := range cars {
		m.cars[c.ID] = c
	}
	return m
}

func (m *memCarRepository) Create(_ context.Context, car *model.Car) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	car.ID = primitive.NewObjectID().Hex()
	m.cars[car.ID] = car
	return nil
}

func (m *memCarRepository) FindByID(_ context.Context, id string) (*model.Car, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, carserrors.ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cars[id]
	if !ok {
		return nil, carserrors.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (m *memCarRepository) Find(context.Context, carsrepo.Filter, int, int64) ([]*model.Car, error) {
	return nil, nil
}

func (m *memCarRepository) Count(context.Context, carsrepo.Filter) (int64, error) {
	return int64(len(m.cars)), nil
}

func (m *memCarRepository) Update(context.Context, string, *model.CarUpdate) (*model.Car, error) {
	return nil, nil
}

func (m *memCarRepository) Delete(context.Context, string) error {
	return nil
}

func (m *memCarRepository) IncrementBookingCount(_ context.Context, id string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cars[id]
	if !ok {
		return carserrors.ErrNotFound
	}
	c.BookingCount += delta
	return nil
}

func (m *memCarRepository) bookingCount(id string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cars[id].BookingCount
}

// ────────────────────────────────────────────────
// Event recorder
// ────────────────────────────────────────────────

type publishedEvent struct {
	Type string
	Key  string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, eventType, key string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: eventType, Key: key})
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// ────────────────────────────────────────────────
// Fixture
// ────────────────────────────────────────────────

type fixture struct {
	service   BookingService
	bookings  *memBookingRepository
	locks     *memLockRepository
	cars      *memCarRepository
	publisher *recordingPublisher
	carID     string
}

func testConfig() *config.Config {
	return &config.Config{
		Log:               logger.Discard(),
		ReadTimeout:       time.Second,
		WriteTimeout:      time.Second,
		LockTTL:           30 * time.Second,
		LockRetryAttempts: 3,
		LockRetryDelay:    time.Millisecond,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, testConfig())
}

func newFixtureWithConfig(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()

	car := &model.Car{
		ID:                 primitive.NewObjectID().Hex(),
		OwnerEmail:         "owner@example.com",
		Model:              "Toyota Corolla",
		RegistrationNumber: "ABC-123",
		DailyPrice:         45,
		Availability:       model.CarAvailable,
	}

	f := &fixture{
		bookings:  newMemBookingRepository(),
		locks:     newMemLockRepository(),
		cars:      newMemCarRepository(car),
		publisher: &recordingPublisher{},
		carID:     car.ID,
	}
	f.service = NewBookingService(
		f.bookings,
		f.locks,
		f.cars,
		validator.NewBookingValidator(cfg.Log),
		f.publisher,
		cfg,
	)
	return f
}

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func (f *fixture) booking(start, end int, status string) *model.Booking {
	return &model.Booking{
		CarID:      f.carID,
		Email:      "renter@example.com",
		StartDate:  day(start),
		EndDate:    day(end),
		Status:     status,
		TotalPrice: float64(end-start) * 45,
	}
}

// assertNoOverlap checks that no two active bookings of a car overlap.
func assertNoOverlap(t *testing.T, bookings []*model.Booking) {
	t.Helper()
	for i, a := range bookings {
		for _, b := range bookings[i+1:] {
			if a.CarID != b.CarID || !a.IsActive() || !b.IsActive() {
				continue
			}
			if a.StartDate.Before(b.EndDate) && b.StartDate.Before(a.EndDate) {
				t.Fatalf("active bookings %s [%s,%s) and %s [%s,%s) overlap",
					a.ID, a.StartDate, a.EndDate, b.ID, b.StartDate, b.EndDate)
			}
		}
	}
}
