package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/collegetransit/booking-service/internal/database"
	"github.com/collegetransit/booking-service/internal/metrics"
	"github.com/collegetransit/booking-service/internal/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// BookingStore persists bookings. Create must reject a second confirmed
// booking for the same seat or the same rider on a vehicle-day, and the
// transitions must only apply to rows that are still confirmed.
type BookingStore interface {
	SeatStore
	Create(ctx context.Context, b *models.Booking, day models.TravelDay) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	GetByIdempotencyKey(ctx context.Context, riderID, key string) (*models.Booking, error)
	HasConfirmedBooking(ctx context.Context, riderID, vehicleID string, day models.TravelDay) (bool, error)
	Cancel(ctx context.Context, id string, c models.Cancellation) (*models.Booking, error)
	TransitionFromConfirmed(ctx context.Context, id string, to models.BookingStatus) (*models.Booking, error)
}

// ScheduleRegistry resolves schedules and the routes they run on
type ScheduleRegistry interface {
	GetByID(ctx context.Context, scheduleID string) (*models.Schedule, error)
	GetRoute(ctx context.Context, routeID string) (*models.Route, error)
}

// RiderDirectory resolves a rider's fare category
type RiderDirectory interface {
	GetRiderCategory(ctx context.Context, userID string) (models.RiderCategory, error)
}

// BookingPolicy holds the cancellation cutoff and refund tiers
type BookingPolicy struct {
	CancellationCutoff time.Duration
	FullRefundWindow   time.Duration
	EarlyRefundRate    float64
	LateRefundRate     float64
}

// DefaultBookingPolicy returns the standard policy: no cancellation within 2
// hours of travel, 80% back beyond 24 hours and 50% otherwise
func DefaultBookingPolicy() BookingPolicy {
	return BookingPolicy{
		CancellationCutoff: 2 * time.Hour,
		FullRefundWindow:   24 * time.Hour,
		EarlyRefundRate:    0.8,
		LateRefundRate:     0.5,
	}
}

// RefundFor returns the refund owed on amount when untilTravel remains before departure
func (p BookingPolicy) RefundFor(amount float64, untilTravel time.Duration) float64 {
	switch {
	case untilTravel > p.FullRefundWindow:
		return roundCurrency(amount * p.EarlyRefundRate)
	case untilTravel > p.CancellationCutoff:
		return roundCurrency(amount * p.LateRefundRate)
	}
	return 0
}

// Actor is the authenticated caller of a booking operation
type Actor struct {
	ID      string
	IsAdmin bool
}

// CanAccess reports whether the actor may act on b
func (a Actor) CanAccess(b *models.Booking) bool {
	return a.IsAdmin || b.IsOwnedBy(a.ID)
}

// CreateBookingInput carries a validated create request
type CreateBookingInput struct {
	RiderID         string
	VehicleID       string
	ScheduleID      string
	SeatNumber      int
	TravelDate      time.Time
	Passenger       models.PassengerDetails
	PaymentMethod   models.PaymentMethod
	PaymentDetails  *models.PaymentDetails
	BoardingPoint   *models.StopPoint
	DropPoint       *models.StopPoint
	SpecialRequests []string
	Notes           *string
	IdempotencyKey  string
}

// CreateBookingResult is the booking plus whether it was replayed from an earlier request
type CreateBookingResult struct {
	Booking  *models.Booking
	Replayed bool
}

// BookingService runs the booking lifecycle: create, cancel, complete and no-show
type BookingService struct {
	store        BookingStore
	availability *SeatAvailabilityService
	schedules    ScheduleRegistry
	riders       RiderDirectory
	notifier     Notifier
	locker       SeatLocker
	policy       BookingPolicy
	logger       logrus.FieldLogger
	now          func() time.Time
}

// NewBookingService creates a new BookingService
func NewBookingService(
	store BookingStore,
	availability *SeatAvailabilityService,
	schedules ScheduleRegistry,
	riders RiderDirectory,
	notifier Notifier,
	locker SeatLocker,
	policy BookingPolicy,
	logger logrus.FieldLogger,
) *BookingService {
	return &BookingService{
		store:        store,
		availability: availability,
		schedules:    schedules,
		riders:       riders,
		notifier:     notifier,
		locker:       locker,
		policy:       policy,
		logger:       logger,
		now:          time.Now,
	}
}

// Policy returns the cancellation and refund policy in force
func (s *BookingService) Policy() BookingPolicy {
	return s.policy
}

// Now returns the service clock's current time
func (s *BookingService) Now() time.Time {
	return s.now()
}

// Create reserves a seat for a rider. Preconditions are checked in a fixed
// order and the first failure is returned. The availability and duplicate
// checks and the insert run under the vehicle-day lock.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*CreateBookingResult, error) {
	var fingerprint string
	if in.IdempotencyKey != "" {
		fingerprint = requestFingerprint(in)
		if existing, err := s.replay(ctx, in, fingerprint); existing != nil || err != nil {
			return existing, err
		}
	}

	bus, err := s.availability.vehicle(ctx, in.VehicleID)
	if err != nil {
		if errors.Is(err, ErrVehicleNotFound) {
			return nil, s.reject(err, "vehicle_not_found")
		}
		return nil, err
	}

	schedule, err := s.schedules.GetByID(ctx, in.ScheduleID)
	if err != nil {
		if errors.Is(err, database.ErrScheduleNotFound) {
			return nil, s.reject(ErrScheduleNotFound, "schedule_not_found")
		}
		return nil, fmt.Errorf("failed to resolve schedule: %w", err)
	}
	if schedule.BusID != bus.ID {
		return nil, s.reject(ErrScheduleVehicleMismatch, "schedule_vehicle_mismatch")
	}

	result, err := s.reserve(ctx, in, bus, schedule, fingerprint)
	if err != nil {
		if errors.Is(err, database.ErrIdempotencyKeyTaken) {
			// a concurrent request with the same key won the insert
			if existing, replayErr := s.replay(ctx, in, fingerprint); existing != nil || replayErr != nil {
				return existing, replayErr
			}
		}
		return nil, err
	}
	if result.Replayed {
		return result, nil
	}
	booking := result.Booking

	metrics.BookingsCreated.Inc()
	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"rider_id":    booking.RiderID,
		"vehicle_id":  booking.VehicleID,
		"seat_number": booking.SeatNumber,
		"travel_date": booking.TravelDate.In(s.availability.Location()).Format("2006-01-02"),
	}).Info("Booking confirmed")

	s.notify(ctx, booking.RiderID, NotificationBookingConfirmed, map[string]interface{}{
		"booking_id":    booking.ID,
		"ticket_number": lo.FromPtr(booking.TicketNumber),
		"vehicle_id":    booking.VehicleID,
		"bus_number":    bus.BusNumber,
		"seat_number":   booking.SeatNumber,
		"travel_date":   booking.TravelDate.In(s.availability.Location()).Format("2006-01-02"),
		"amount":        booking.Amount,
	})

	return &CreateBookingResult{Booking: booking}, nil
}

// reserve holds the vehicle-day lock while checking the seat and the rider and
// writing the booking. A retry that queued on the lock behind the request that
// created its key is replayed instead of failing the seat check.
func (s *BookingService) reserve(ctx context.Context, in CreateBookingInput, bus *models.Bus, schedule *models.Schedule, fingerprint string) (*CreateBookingResult, error) {
	loc := s.availability.Location()
	day := models.NewTravelDay(in.TravelDate, loc)

	unlock, err := s.locker.Lock(ctx, SeatLockKey(bus.ID, day))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if in.IdempotencyKey != "" {
		if existing, err := s.replay(ctx, in, fingerprint); existing != nil || err != nil {
			return existing, err
		}
	}

	available, err := s.availability.seatsForDay(ctx, bus, day)
	if err != nil {
		return nil, err
	}
	if !lo.Contains(available, in.SeatNumber) {
		return nil, s.reject(ErrSeatUnavailable, "seat_unavailable")
	}

	duplicate, err := s.store.HasConfirmedBooking(ctx, in.RiderID, bus.ID, day)
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, s.reject(ErrDuplicateBooking, "duplicate_booking")
	}

	now := s.now()
	if day.Before(models.NewTravelDay(now, loc)) {
		return nil, s.reject(ErrTravelDateInPast, "travel_date_in_past")
	}

	amount, err := s.fareFor(ctx, in.RiderID, schedule)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:              uuid.NewString(),
		RiderID:         in.RiderID,
		VehicleID:       bus.ID,
		ScheduleID:      schedule.ID,
		SeatNumber:      in.SeatNumber,
		TravelDate:      in.TravelDate,
		BookingDate:     now,
		Status:          models.BookingStatusConfirmed,
		PaymentMethod:   lo.Ternary(in.PaymentMethod == "", models.PaymentMethodCash, in.PaymentMethod),
		PaymentDetails:  in.PaymentDetails,
		Amount:          amount,
		Passenger:       in.Passenger,
		BoardingPoint:   in.BoardingPoint,
		DropPoint:       in.DropPoint,
		SpecialRequests: models.StringList(in.SpecialRequests),
		Notes:           in.Notes,
	}
	booking.PaymentStatus = paymentStatusFor(booking, now)
	if in.IdempotencyKey != "" {
		booking.IdempotencyKey = lo.ToPtr(in.IdempotencyKey)
		booking.RequestHash = lo.ToPtr(fingerprint)
	}

	if err := s.store.Create(ctx, booking, day); err != nil {
		switch {
		case errors.Is(err, database.ErrSeatTaken):
			return nil, s.reject(ErrSeatUnavailable, "seat_unavailable")
		case errors.Is(err, database.ErrRiderAlreadyBooked):
			return nil, s.reject(ErrDuplicateBooking, "duplicate_booking")
		case errors.Is(err, database.ErrIdempotencyKeyTaken):
			return nil, err
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	return &CreateBookingResult{Booking: booking}, nil
}

// Replay returns the booking already created under in's idempotency key, or
// nil when the key is unused or absent
func (s *BookingService) Replay(ctx context.Context, in CreateBookingInput) (*CreateBookingResult, error) {
	if in.IdempotencyKey == "" {
		return nil, nil
	}
	return s.replay(ctx, in, requestFingerprint(in))
}

// replay returns the booking previously created under in's idempotency key,
// or ErrIdempotencyKeyReused if that booking came from a different request
func (s *BookingService) replay(ctx context.Context, in CreateBookingInput, fingerprint string) (*CreateBookingResult, error) {
	existing, err := s.store.GetByIdempotencyKey(ctx, in.RiderID, in.IdempotencyKey)
	if err != nil {
		if errors.Is(err, database.ErrBookingNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}

	if lo.FromPtr(existing.RequestHash) != fingerprint {
		return nil, ErrIdempotencyKeyReused
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":      existing.ID,
		"idempotency_key": in.IdempotencyKey,
	}).Info("Replaying booking for idempotency key")
	return &CreateBookingResult{Booking: existing, Replayed: true}, nil
}

// fareFor prices the schedule's route for the rider, falling back to the
// schedule's own fare when it has no route
func (s *BookingService) fareFor(ctx context.Context, riderID string, schedule *models.Schedule) (float64, error) {
	if schedule.RouteID == nil {
		return schedule.Fare, nil
	}

	route, err := s.schedules.GetRoute(ctx, *schedule.RouteID)
	if err != nil {
		if errors.Is(err, database.ErrRouteNotFound) {
			s.logger.WithField("schedule_id", schedule.ID).Warn("Schedule route not found, using schedule fare")
			return schedule.Fare, nil
		}
		return 0, fmt.Errorf("failed to resolve route: %w", err)
	}

	category, err := s.riders.GetRiderCategory(ctx, riderID)
	if err != nil {
		if !errors.Is(err, database.ErrUserNotFound) {
			return 0, fmt.Errorf("failed to resolve rider category: %w", err)
		}
		s.logger.WithField("rider_id", riderID).Warn("Rider not found in directory, pricing as other")
		category = models.RiderCategoryOther
	}

	return CalculateFare(route, category), nil
}

// Cancel cancels a confirmed booking owned by the actor (or any booking for an
// admin) and records the refund owed. Payment status is left for the payment
// flow to settle.
func (s *BookingService) Cancel(ctx context.Context, bookingID string, actor Actor, reason *string) (*models.Booking, error) {
	booking, err := s.get(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !actor.CanAccess(booking) {
		return nil, ErrAccessDenied
	}
	if booking.Status != models.BookingStatusConfirmed {
		return nil, ErrInvalidStateForCancellation
	}

	now := s.now()
	if !booking.CanBeCancelled(now, s.policy.CancellationCutoff) {
		return nil, ErrCancellationWindowClosed
	}

	refund := s.policy.RefundFor(booking.Amount, booking.TravelDate.Sub(now))
	cancelled, err := s.store.Cancel(ctx, bookingID, models.Cancellation{
		CancelledAt:  now,
		CancelledBy:  actor.ID,
		Reason:       reason,
		RefundAmount: refund,
		RefundStatus: models.RefundStatusPending,
	})
	if err != nil {
		if errors.Is(err, database.ErrStatusChanged) {
			return nil, ErrInvalidStateForCancellation
		}
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	metrics.BookingTransitions.WithLabelValues(string(models.BookingStatusCancelled)).Inc()
	metrics.RefundsIssued.Add(refund)
	s.logger.WithFields(logrus.Fields{
		"booking_id":    bookingID,
		"cancelled_by":  actor.ID,
		"refund_amount": refund,
	}).Info("Booking cancelled")

	s.notify(ctx, cancelled.RiderID, NotificationBookingCancelled, map[string]interface{}{
		"booking_id":    cancelled.ID,
		"ticket_number": lo.FromPtr(cancelled.TicketNumber),
		"refund_amount": refund,
		"reason":        lo.FromPtr(reason),
	})

	return cancelled, nil
}

// Complete marks a confirmed booking as travelled
func (s *BookingService) Complete(ctx context.Context, bookingID string) (*models.Booking, error) {
	return s.transition(ctx, bookingID, models.BookingStatusCompleted)
}

// MarkNoShow marks a confirmed booking whose rider did not board
func (s *BookingService) MarkNoShow(ctx context.Context, bookingID string) (*models.Booking, error) {
	return s.transition(ctx, bookingID, models.BookingStatusNoShow)
}

func (s *BookingService) transition(ctx context.Context, bookingID string, to models.BookingStatus) (*models.Booking, error) {
	booking, err := s.get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusConfirmed {
		return nil, ErrInvalidStateForTransition
	}

	updated, err := s.store.TransitionFromConfirmed(ctx, bookingID, to)
	if err != nil {
		if errors.Is(err, database.ErrStatusChanged) {
			return nil, ErrInvalidStateForTransition
		}
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	metrics.BookingTransitions.WithLabelValues(string(to)).Inc()
	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"status":     to,
	}).Info("Booking status updated")

	return updated, nil
}

func (s *BookingService) get(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := s.store.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, database.ErrBookingNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

func (s *BookingService) notify(ctx context.Context, riderID string, kind NotificationKind, payload map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, riderID, kind, payload); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"rider_id": riderID,
			"kind":     kind,
		}).Warn("Failed to send booking notification")
	}
}

func (s *BookingService) reject(err error, reason string) error {
	metrics.BookingsRejected.WithLabelValues(reason).Inc()
	return err
}

// paymentStatusFor marks a booking paid only when a non-cash payment arrives
// with a gateway transaction id
func paymentStatusFor(b *models.Booking, now time.Time) models.PaymentStatus {
	if b.PaymentMethod == models.PaymentMethodCash || b.PaymentDetails == nil || b.PaymentDetails.TransactionID == "" {
		return models.PaymentStatusPending
	}
	if b.PaymentDetails.PaidAt == nil {
		b.PaymentDetails.PaidAt = lo.ToPtr(now)
	}
	return models.PaymentStatusPaid
}
