package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/collegetransit/booking-service/internal/database"
	"github.com/collegetransit/booking-service/internal/models"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const maxPageSize = 100

// BookingQueryStore is the read side of the booking store
type BookingQueryStore interface {
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	ListByRider(ctx context.Context, riderID string, status *models.BookingStatus) ([]models.Booking, error)
	ListConfirmedByVehicleAndDay(ctx context.Context, vehicleID string, day models.TravelDay) ([]models.Booking, error)
	StatsByDateRange(ctx context.Context, start, end time.Time) ([]models.BookingStatGroup, error)
	Search(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
	Count(ctx context.Context, filter models.BookingFilter) (int, error)
}

// BookingStats summarises bookings whose travel date falls in a range
type BookingStats struct {
	StartDate   time.Time                 `json:"start_date"`
	EndDate     time.Time                 `json:"end_date"`
	Groups      []models.BookingStatGroup `json:"groups"`
	TotalCount  int                       `json:"total_count"`
	TotalAmount float64                   `json:"total_amount"`
}

// BookingPage is one page of a booking search
type BookingPage struct {
	Bookings   []models.Booking  `json:"bookings"`
	Pagination models.Pagination `json:"pagination"`
}

// BookingQueryService answers read-only booking queries
type BookingQueryService struct {
	store           BookingQueryStore
	loc             *time.Location
	defaultPageSize int
}

// NewBookingQueryService creates a new BookingQueryService
func NewBookingQueryService(store BookingQueryStore, loc *time.Location, defaultPageSize int) *BookingQueryService {
	if defaultPageSize <= 0 {
		defaultPageSize = 10
	}
	return &BookingQueryService{
		store:           store,
		loc:             loc,
		defaultPageSize: defaultPageSize,
	}
}

// FindByRider returns the rider's bookings, newest travel date first,
// optionally narrowed to one status
func (s *BookingQueryService) FindByRider(ctx context.Context, riderID string, status *models.BookingStatus) ([]models.Booking, error) {
	bookings, err := s.store.ListByRider(ctx, riderID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list rider bookings: %w", err)
	}
	return bookings, nil
}

// FindByVehicleAndDate returns the confirmed bookings on a vehicle for the day
// containing date, ordered by seat number
func (s *BookingQueryService) FindByVehicleAndDate(ctx context.Context, vehicleID string, date time.Time) ([]models.Booking, error) {
	bookings, err := s.store.ListConfirmedByVehicleAndDay(ctx, vehicleID, models.NewTravelDay(date, s.loc))
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicle bookings: %w", err)
	}
	return bookings, nil
}

// StatsByDateRange groups bookings travelling within [start, end] by status.
// An empty range yields no groups and zero totals.
func (s *BookingQueryService) StatsByDateRange(ctx context.Context, start, end time.Time) (*BookingStats, error) {
	if start.After(end) {
		return nil, ErrInvalidDateRange
	}

	groups, err := s.store.StatsByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate bookings: %w", err)
	}

	return &BookingStats{
		StartDate: start,
		EndDate:   end,
		Groups:    groups,
		TotalCount: lo.SumBy(groups, func(g models.BookingStatGroup) int {
			return g.Count
		}),
		TotalAmount: roundCurrency(lo.SumBy(groups, func(g models.BookingStatGroup) float64 {
			return g.TotalAmount
		})),
	}, nil
}

// GetByID returns a booking the actor may see: their own, or any for an admin
func (s *BookingQueryService) GetByID(ctx context.Context, bookingID string, actor Actor) (*models.Booking, error) {
	booking, err := s.store.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, database.ErrBookingNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	if !actor.CanAccess(booking) {
		return nil, ErrAccessDenied
	}
	return booking, nil
}

// Search returns one page of bookings matching filter along with the total match count
func (s *BookingQueryService) Search(ctx context.Context, filter models.BookingFilter) (*BookingPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = s.defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}

	var (
		bookings []models.Booking
		total    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bookings, err = s.store.Search(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.store.Count(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to search bookings: %w", err)
	}

	return &BookingPage{
		Bookings:   bookings,
		Pagination: models.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}
