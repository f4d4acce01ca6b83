package models

import (
	"strings"
	"time"
)

// PaymentStatus represents the payment status of a booking
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusNoShow    BookingStatus = "no_show"
)

// IsValid reports whether s is a known booking status
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted, BookingStatusNoShow:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed out of s
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted || s == BookingStatusNoShow
}

// IsValid reports whether s is a known payment status
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// PaymentMethod is how the rider intends to pay
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodUPI    PaymentMethod = "upi"
	PaymentMethodWallet PaymentMethod = "wallet"
)

// RefundStatus tracks the refund owed after a cancellation
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusProcessed RefundStatus = "processed"
	RefundStatusFailed    RefundStatus = "failed"
)

// PassengerDetails is captured at booking time and may differ from the rider's profile
type PassengerDetails struct {
	Name   string  `json:"name" binding:"required,min=1,max=100"`
	Phone  string  `json:"phone" binding:"required,mobile"`
	Email  *string `json:"email,omitempty" binding:"omitempty,email"`
	Age    *int    `json:"age,omitempty" binding:"omitempty,min=1,max=120"`
	Gender *string `json:"gender,omitempty" binding:"omitempty,oneof=male female other"`
}

// PaymentDetails records a payment captured by an external gateway
type PaymentDetails struct {
	TransactionID  string     `json:"transaction_id"`
	PaymentGateway *string    `json:"payment_gateway,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
}

// StopPoint is a boarding or drop location on the route
type StopPoint struct {
	Name string   `json:"name" binding:"required"`
	Lat  *float64 `json:"lat,omitempty"`
	Lng  *float64 `json:"lng,omitempty"`
	Time *string  `json:"time,omitempty"`
}

// Cancellation is populated only when a booking is cancelled
type Cancellation struct {
	CancelledAt  time.Time    `json:"cancelled_at"`
	CancelledBy  string       `json:"cancelled_by"`
	Reason       *string      `json:"reason,omitempty"`
	RefundAmount float64      `json:"refund_amount"`
	RefundStatus RefundStatus `json:"refund_status"`
}

// Booking represents a rider's seat reservation on a vehicle for a travel date
type Booking struct {
	ID              string           `json:"id"`
	TicketNumber    *string          `json:"ticket_number,omitempty"`
	RiderID         string           `json:"rider_id"`
	VehicleID       string           `json:"vehicle_id"`
	ScheduleID      string           `json:"schedule_id"`
	SeatNumber      int              `json:"seat_number"`
	TravelDate      time.Time        `json:"travel_date"`
	BookingDate     time.Time        `json:"booking_date"`
	Status          BookingStatus    `json:"status"`
	PaymentStatus   PaymentStatus    `json:"payment_status"`
	PaymentMethod   PaymentMethod    `json:"payment_method"`
	PaymentDetails  *PaymentDetails  `json:"payment_details,omitempty"`
	Amount          float64          `json:"amount"`
	Passenger       PassengerDetails `json:"passenger_details"`
	Cancellation    *Cancellation    `json:"cancellation,omitempty"`
	BoardingPoint   *StopPoint       `json:"boarding_point,omitempty"`
	DropPoint       *StopPoint       `json:"drop_point,omitempty"`
	SpecialRequests StringList       `json:"special_requests"`
	Notes           *string          `json:"notes,omitempty"`
	IdempotencyKey  *string          `json:"-"`
	RequestHash     *string          `json:"-"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// CanBeCancelled checks if the booking is confirmed and more than cutoff remains before travel
func (b *Booking) CanBeCancelled(now time.Time, cutoff time.Duration) bool {
	return b.Status == BookingStatusConfirmed && b.TravelDate.Sub(now) > cutoff
}

// IsActive checks if the booking is confirmed and travel has not started yet
func (b *Booking) IsActive(now time.Time) bool {
	return b.Status == BookingStatusConfirmed && !b.TravelDate.Before(now)
}

// BookingReference returns the short human-facing reference, e.g. CT9F3A01BC
func (b *Booking) BookingReference() string {
	id := strings.ToUpper(strings.ReplaceAll(b.ID, "-", ""))
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return "CT" + id
}

// IsOwnedBy reports whether riderID made the booking
func (b *Booking) IsOwnedBy(riderID string) bool {
	return b.RiderID == riderID
}

// BookingResponse is the read-side view of a booking with derived fields
type BookingResponse struct {
	*Booking
	BookingReference string `json:"booking_reference"`
	CanBeCancelled   bool   `json:"can_be_cancelled"`
	IsActive         bool   `json:"is_active"`
}

// NewBookingResponse computes the derived fields of b as of now
func NewBookingResponse(b *Booking, now time.Time, cutoff time.Duration) BookingResponse {
	return BookingResponse{
		Booking:          b,
		BookingReference: b.BookingReference(),
		CanBeCancelled:   b.CanBeCancelled(now, cutoff),
		IsActive:         b.IsActive(now),
	}
}

// CreateBookingRequest represents the request to create a booking
type CreateBookingRequest struct {
	VehicleID        string           `json:"vehicle_id" binding:"required,uuid"`
	ScheduleID       string           `json:"schedule_id" binding:"required,uuid"`
	SeatNumber       int              `json:"seat_number" binding:"required,min=1"`
	TravelDate       string           `json:"travel_date" binding:"required,bookingdate"`
	PassengerDetails PassengerDetails `json:"passenger_details" binding:"required"`
	PaymentMethod    *PaymentMethod   `json:"payment_method,omitempty" binding:"omitempty,oneof=cash card upi wallet"`
	PaymentDetails   *PaymentDetails  `json:"payment_details,omitempty"`
	BoardingPoint    *StopPoint       `json:"boarding_point,omitempty"`
	DropPoint        *StopPoint       `json:"drop_point,omitempty"`
	SpecialRequests  []string         `json:"special_requests,omitempty" binding:"omitempty,max=10,dive,max=200"`
	Notes            *string          `json:"notes,omitempty" binding:"omitempty,max=500"`
}

// CancelBookingRequest represents the request to cancel a booking
type CancelBookingRequest struct {
	Reason *string `json:"reason,omitempty" binding:"omitempty,min=1,max=200"`
}

// BookingStatGroup is the aggregate for one status over a date range
type BookingStatGroup struct {
	Status      BookingStatus `json:"status" db:"status"`
	Count       int           `json:"count" db:"count"`
	TotalAmount float64       `json:"total_amount" db:"total_amount"`
}

// BookingFilter narrows a booking search
type BookingFilter struct {
	RiderID       *string
	VehicleID     *string
	Status        *BookingStatus
	PaymentStatus *PaymentStatus
	TravelDay     *TravelDay
	Page          int
	Limit         int
}

// Offset returns the row offset for the filter's page
func (f BookingFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// Pagination describes a page of results
type Pagination struct {
	CurrentPage   int  `json:"current_page"`
	TotalPages    int  `json:"total_pages"`
	TotalBookings int  `json:"total_bookings"`
	HasNext       bool `json:"has_next"`
	HasPrev       bool `json:"has_prev"`
}

// NewPagination builds pagination metadata from a page, page size and total
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		CurrentPage:   page,
		TotalPages:    totalPages,
		TotalBookings: total,
		HasNext:       page < totalPages,
		HasPrev:       page > 1,
	}
}
