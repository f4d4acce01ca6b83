package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/collegetransit/booking-service/internal/database"
	"github.com/collegetransit/booking-service/internal/models"
	"github.com/samber/lo"
)

// VehicleRegistry resolves buses and their capacity
type VehicleRegistry interface {
	GetByID(ctx context.Context, busID string) (*models.Bus, error)
}

// SeatStore reports which seats confirmed bookings hold
type SeatStore interface {
	BookedSeats(ctx context.Context, vehicleID string, day models.TravelDay) ([]int, error)
}

// SeatAvailability is a point-in-time view of a vehicle's seats for one day
type SeatAvailability struct {
	VehicleID      string `json:"vehicle_id"`
	Date           string `json:"date"`
	Capacity       int    `json:"capacity"`
	AvailableSeats []int  `json:"available_seats"`
	BookedSeats    []int  `json:"booked_seats"`
}

// SeatAvailabilityService computes free seats from capacity and confirmed bookings
type SeatAvailabilityService struct {
	vehicles VehicleRegistry
	store    SeatStore
	loc      *time.Location
}

// NewSeatAvailabilityService creates a new SeatAvailabilityService
func NewSeatAvailabilityService(vehicles VehicleRegistry, store SeatStore, loc *time.Location) *SeatAvailabilityService {
	return &SeatAvailabilityService{
		vehicles: vehicles,
		store:    store,
		loc:      loc,
	}
}

// Location returns the time zone travel days are bounded in
func (s *SeatAvailabilityService) Location() *time.Location {
	return s.loc
}

// AvailableSeats returns the seat numbers in [1, capacity] not held by a
// confirmed booking on the day containing travelDate. The result may be stale
// by the time a reservation is attempted.
func (s *SeatAvailabilityService) AvailableSeats(ctx context.Context, vehicleID string, travelDate time.Time) ([]int, error) {
	availability, err := s.Availability(ctx, vehicleID, travelDate)
	if err != nil {
		return nil, err
	}
	return availability.AvailableSeats, nil
}

// Availability returns both free and held seats for the vehicle on the day containing travelDate
func (s *SeatAvailabilityService) Availability(ctx context.Context, vehicleID string, travelDate time.Time) (*SeatAvailability, error) {
	bus, err := s.vehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	day := models.NewTravelDay(travelDate, s.loc)
	booked, err := s.store.BookedSeats(ctx, vehicleID, day)
	if err != nil {
		return nil, err
	}

	return &SeatAvailability{
		VehicleID:      vehicleID,
		Date:           day.Date,
		Capacity:       bus.Capacity,
		AvailableSeats: freeSeats(bus, booked),
		BookedSeats:    lo.Intersect(bus.SeatRange(), booked),
	}, nil
}

// seatsForDay is AvailableSeats for an already resolved bus
func (s *SeatAvailabilityService) seatsForDay(ctx context.Context, bus *models.Bus, day models.TravelDay) ([]int, error) {
	booked, err := s.store.BookedSeats(ctx, bus.ID, day)
	if err != nil {
		return nil, err
	}
	return freeSeats(bus, booked), nil
}

func (s *SeatAvailabilityService) vehicle(ctx context.Context, vehicleID string) (*models.Bus, error) {
	bus, err := s.vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, database.ErrBusNotFound) {
			return nil, ErrVehicleNotFound
		}
		return nil, fmt.Errorf("failed to resolve vehicle: %w", err)
	}
	return bus, nil
}

func freeSeats(bus *models.Bus, booked []int) []int {
	return lo.Without(bus.SeatRange(), booked...)
}
