package services

import "errors"

// Precondition, state and lookup failures of the booking core. Handlers map
// each one to an HTTP status and a stable error code.
var (
	ErrVehicleNotFound             = errors.New("vehicle not found")
	ErrScheduleNotFound            = errors.New("schedule not found")
	ErrScheduleVehicleMismatch     = errors.New("schedule does not match the selected vehicle")
	ErrSeatUnavailable             = errors.New("seat is not available")
	ErrDuplicateBooking            = errors.New("rider already has a booking for this vehicle on this date")
	ErrTravelDateInPast            = errors.New("travel date cannot be in the past")
	ErrBookingNotFound             = errors.New("booking not found")
	ErrAccessDenied                = errors.New("access denied")
	ErrInvalidStateForCancellation = errors.New("only confirmed bookings can be cancelled")
	ErrCancellationWindowClosed    = errors.New("booking cannot be cancelled less than the cutoff before travel")
	ErrInvalidStateForTransition   = errors.New("only confirmed bookings can change status")
	ErrInvalidDateRange            = errors.New("start date must not be after end date")
	ErrIdempotencyKeyReused        = errors.New("idempotency key was already used with a different request")
	ErrSeatLockTimeout             = errors.New("seat is being booked by another request, try again")
)
