package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/collegetransit/booking-service/internal/database"
	"github.com/collegetransit/booking-service/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var testLoc = time.FixedZone("IST", 5*60*60+30*60)

// memoryStore mirrors the repository's uniqueness rules in memory
type memoryStore struct {
	mu       sync.Mutex
	bookings map[string]*models.Booking
	days     map[string]string
	seq      int
	err      error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		bookings: make(map[string]*models.Booking),
		days:     make(map[string]string),
	}
}

func (m *memoryStore) Create(ctx context.Context, b *models.Booking, day models.TravelDay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}

	for id, existing := range m.bookings {
		if b.IdempotencyKey != nil && existing.IdempotencyKey != nil &&
			existing.RiderID == b.RiderID && *existing.IdempotencyKey == *b.IdempotencyKey {
			return database.ErrIdempotencyKeyTaken
		}
		if existing.Status != models.BookingStatusConfirmed || existing.VehicleID != b.VehicleID || m.days[id] != day.Date {
			continue
		}
		if existing.SeatNumber == b.SeatNumber {
			return database.ErrSeatTaken
		}
		if existing.RiderID == b.RiderID {
			return database.ErrRiderAlreadyBooked
		}
	}

	m.seq++
	ticket := fmt.Sprintf("TKT%06d", m.seq)
	b.TicketNumber = &ticket
	b.CreatedAt = b.BookingDate
	b.UpdatedAt = b.BookingDate

	stored := *b
	m.bookings[b.ID] = &stored
	m.days[b.ID] = day.Date
	return nil
}

func (m *memoryStore) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, database.ErrBookingNotFound
	}
	copied := *b
	return &copied, nil
}

func (m *memoryStore) GetByIdempotencyKey(ctx context.Context, riderID, key string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.RiderID == riderID && b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			copied := *b
			return &copied, nil
		}
	}
	return nil, database.ErrBookingNotFound
}

// gatedStore holds the first parties idempotency lookups until all of them
// have arrived, so concurrent retries miss the key together
type gatedStore struct {
	*memoryStore
	mu      sync.Mutex
	parties int
	arrived int
	release chan struct{}
}

func newGatedStore(store *memoryStore, parties int) *gatedStore {
	return &gatedStore{memoryStore: store, parties: parties, release: make(chan struct{})}
}

func (g *gatedStore) GetByIdempotencyKey(ctx context.Context, riderID, key string) (*models.Booking, error) {
	g.mu.Lock()
	if g.arrived < g.parties {
		g.arrived++
		if g.arrived == g.parties {
			close(g.release)
		}
		g.mu.Unlock()
		<-g.release
	} else {
		g.mu.Unlock()
	}
	return g.memoryStore.GetByIdempotencyKey(ctx, riderID, key)
}

func (m *memoryStore) BookedSeats(ctx context.Context, vehicleID string, day models.TravelDay) ([]int, error) {
	var seats []int
	for _, b := range m.confirmedOn(vehicleID, day) {
		seats = append(seats, b.SeatNumber)
	}
	return seats, nil
}

func (m *memoryStore) HasConfirmedBooking(ctx context.Context, riderID, vehicleID string, day models.TravelDay) (bool, error) {
	for _, b := range m.confirmedOn(vehicleID, day) {
		if b.RiderID == riderID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) Cancel(ctx context.Context, id string, c models.Cancellation) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != models.BookingStatusConfirmed {
		return nil, database.ErrStatusChanged
	}
	b.Status = models.BookingStatusCancelled
	b.Cancellation = &c
	copied := *b
	return &copied, nil
}

func (m *memoryStore) TransitionFromConfirmed(ctx context.Context, id string, to models.BookingStatus) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != models.BookingStatusConfirmed {
		return nil, database.ErrStatusChanged
	}
	b.Status = to
	copied := *b
	return &copied, nil
}

func (m *memoryStore) ListByRider(ctx context.Context, riderID string, status *models.BookingStatus) ([]models.Booking, error) {
	return m.Search(ctx, models.BookingFilter{RiderID: &riderID, Status: status})
}

func (m *memoryStore) ListConfirmedByVehicleAndDay(ctx context.Context, vehicleID string, day models.TravelDay) ([]models.Booking, error) {
	bookings := m.confirmedOn(vehicleID, day)
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].SeatNumber < bookings[j].SeatNumber })
	return bookings, nil
}

func (m *memoryStore) StatsByDateRange(ctx context.Context, start, end time.Time) ([]models.BookingStatGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	groups := map[models.BookingStatus]*models.BookingStatGroup{}
	for _, b := range m.bookings {
		if b.TravelDate.Before(start) || b.TravelDate.After(end) {
			continue
		}
		g, ok := groups[b.Status]
		if !ok {
			g = &models.BookingStatGroup{Status: b.Status}
			groups[b.Status] = g
		}
		g.Count++
		g.TotalAmount += b.Amount
	}

	result := []models.BookingStatGroup{}
	for _, g := range groups {
		result = append(result, *g)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Status < result[j].Status })
	return result, nil
}

func (m *memoryStore) Search(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	matches := m.filter(filter)
	if filter.Limit > 0 {
		start := filter.Offset()
		if start > len(matches) {
			start = len(matches)
		}
		end := start + filter.Limit
		if end > len(matches) {
			end = len(matches)
		}
		matches = matches[start:end]
	}
	return matches, nil
}

func (m *memoryStore) Count(ctx context.Context, filter models.BookingFilter) (int, error) {
	return len(m.filter(filter)), nil
}

func (m *memoryStore) filter(filter models.BookingFilter) []models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []models.Booking{}
	for id, b := range m.bookings {
		switch {
		case filter.RiderID != nil && b.RiderID != *filter.RiderID,
			filter.VehicleID != nil && b.VehicleID != *filter.VehicleID,
			filter.Status != nil && b.Status != *filter.Status,
			filter.PaymentStatus != nil && b.PaymentStatus != *filter.PaymentStatus,
			filter.TravelDay != nil && m.days[id] != filter.TravelDay.Date:
			continue
		}
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].TravelDate.Equal(result[j].TravelDate) {
			return result[i].TravelDate.After(result[j].TravelDate)
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (m *memoryStore) confirmedOn(vehicleID string, day models.TravelDay) []models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.Booking
	for id, b := range m.bookings {
		if b.VehicleID == vehicleID && m.days[id] == day.Date && b.Status == models.BookingStatusConfirmed {
			result = append(result, *b)
		}
	}
	return result
}

type fakeVehicles map[string]*models.Bus

func (f fakeVehicles) GetByID(ctx context.Context, busID string) (*models.Bus, error) {
	bus, ok := f[busID]
	if !ok {
		return nil, database.ErrBusNotFound
	}
	return bus, nil
}

type fakeSchedules struct {
	schedules map[string]*models.Schedule
	routes    map[string]*models.Route
}

func (f *fakeSchedules) GetByID(ctx context.Context, scheduleID string) (*models.Schedule, error) {
	s, ok := f.schedules[scheduleID]
	if !ok {
		return nil, database.ErrScheduleNotFound
	}
	return s, nil
}

func (f *fakeSchedules) GetRoute(ctx context.Context, routeID string) (*models.Route, error) {
	r, ok := f.routes[routeID]
	if !ok {
		return nil, database.ErrRouteNotFound
	}
	return r, nil
}

type fakeRiders map[string]models.RiderCategory

func (f fakeRiders) GetRiderCategory(ctx context.Context, userID string) (models.RiderCategory, error) {
	c, ok := f[userID]
	if !ok {
		return "", database.ErrUserNotFound
	}
	return c, nil
}

type sentNotification struct {
	RiderID string
	Kind    NotificationKind
	Payload map[string]interface{}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, riderID string, kind NotificationKind, payload map[string]interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{RiderID: riderID, Kind: kind, Payload: payload})
	return n.err
}

func (n *recordingNotifier) kinds() []NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]NotificationKind, 0, len(n.sent))
	for _, s := range n.sent {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}

var errStoreDown = errors.New("connection refused")

const (
	vehicleID  = "5b6f0a8e-7c1d-4e2f-9a3b-1c2d3e4f5a6b"
	scheduleID = "a1b2c3d4-0000-4000-8000-000000000001"
	routeID    = "a1b2c3d4-0000-4000-8000-000000000099"
	riderA     = "11111111-1111-4111-8111-111111111111"
	riderB     = "22222222-2222-4222-8222-222222222222"
	adminID    = "99999999-9999-4999-8999-999999999999"
)

type harness struct {
	store     *memoryStore
	schedules *fakeSchedules
	notifier  *recordingNotifier
	logs      *test.Hook
	service   *BookingService
	queries   *BookingQueryService
	now       time.Time
}

// newHarness builds a service around a capacity-2 vehicle whose schedule has a flat fare of 100
func newHarness() *harness {
	store := newMemoryStore()
	vehicles := fakeVehicles{vehicleID: {ID: vehicleID, BusNumber: "KA-01-F-1234", Capacity: 2}}
	schedules := &fakeSchedules{
		schedules: map[string]*models.Schedule{scheduleID: {ID: scheduleID, BusID: vehicleID, Fare: 100}},
		routes:    map[string]*models.Route{},
	}
	notifier := &recordingNotifier{}
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := &harness{
		store:     store,
		schedules: schedules,
		notifier:  notifier,
		logs:      hook,
		now:       time.Date(2025, 5, 31, 10, 0, 0, 0, testLoc),
	}

	availability := NewSeatAvailabilityService(vehicles, store, testLoc)
	h.service = NewBookingService(store, availability, schedules, fakeRiders{riderA: models.RiderCategoryStudent, riderB: models.RiderCategoryStaff},
		notifier, NewLocalSeatLocker(), DefaultBookingPolicy(), logger)
	h.service.now = func() time.Time { return h.now }
	h.queries = NewBookingQueryService(store, testLoc, 10)
	return h
}

func (h *harness) input(riderID string, seat int, travelDate time.Time) CreateBookingInput {
	return CreateBookingInput{
		RiderID:    riderID,
		VehicleID:  vehicleID,
		ScheduleID: scheduleID,
		SeatNumber: seat,
		TravelDate: travelDate,
		Passenger:  models.PassengerDetails{Name: "Asha Rao", Phone: "9876543210"},
	}
}

// travelOn is 08:30 local on the given June 2025 day
func travelOn(day int) time.Time {
	return time.Date(2025, 6, day, 8, 30, 0, 0, testLoc)
}
