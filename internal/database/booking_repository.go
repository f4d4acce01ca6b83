package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/collegetransit/booking-service/internal/models"
	"github.com/lib/pq"
)

// Unique indexes backing the one-seat and one-rider-per-day rules
const (
	ConstraintConfirmedSeat  = "bookings_confirmed_seat_uq"
	ConstraintConfirmedRider = "bookings_confirmed_rider_uq"
	ConstraintIdempotencyKey = "bookings_rider_idempotency_uq"

	uniqueViolation = "23505"
)

var (
	// ErrBookingNotFound is returned when no booking matches the lookup
	ErrBookingNotFound = errors.New("booking not found")
	// ErrSeatTaken means another confirmed booking already holds the seat on that day
	ErrSeatTaken = errors.New("seat already taken")
	// ErrRiderAlreadyBooked means the rider already holds a confirmed booking on the vehicle that day
	ErrRiderAlreadyBooked = errors.New("rider already booked on vehicle for day")
	// ErrIdempotencyKeyTaken means the rider already used the idempotency key
	ErrIdempotencyKeyTaken = errors.New("idempotency key already used")
	// ErrStatusChanged means a conditional status update found the booking no longer confirmed
	ErrStatusChanged = errors.New("booking is no longer confirmed")
)

const bookingColumns = `
	id, ticket_number, rider_id, vehicle_id, schedule_id, seat_number,
	travel_date, booking_date, status, payment_status, payment_method,
	payment_transaction_id, payment_gateway, paid_at, amount,
	passenger_name, passenger_phone, passenger_email, passenger_age, passenger_gender,
	cancelled_at, cancelled_by, cancellation_reason, refund_amount, refund_status,
	boarding_point, drop_point, special_requests, notes,
	idempotency_key, request_hash, created_at, updated_at`

// bookingRow mirrors the bookings table
type bookingRow struct {
	ID                   string            `db:"id"`
	TicketNumber         sql.NullString    `db:"ticket_number"`
	RiderID              string            `db:"rider_id"`
	VehicleID            string            `db:"vehicle_id"`
	ScheduleID           string            `db:"schedule_id"`
	SeatNumber           int               `db:"seat_number"`
	TravelDate           time.Time         `db:"travel_date"`
	BookingDate          time.Time         `db:"booking_date"`
	Status               string            `db:"status"`
	PaymentStatus        string            `db:"payment_status"`
	PaymentMethod        string            `db:"payment_method"`
	PaymentTransactionID sql.NullString    `db:"payment_transaction_id"`
	PaymentGateway       sql.NullString    `db:"payment_gateway"`
	PaidAt               sql.NullTime      `db:"paid_at"`
	Amount               float64           `db:"amount"`
	PassengerName        string            `db:"passenger_name"`
	PassengerPhone       string            `db:"passenger_phone"`
	PassengerEmail       sql.NullString    `db:"passenger_email"`
	PassengerAge         sql.NullInt64     `db:"passenger_age"`
	PassengerGender      sql.NullString    `db:"passenger_gender"`
	CancelledAt          sql.NullTime      `db:"cancelled_at"`
	CancelledBy          sql.NullString    `db:"cancelled_by"`
	CancellationReason   sql.NullString    `db:"cancellation_reason"`
	RefundAmount         sql.NullFloat64   `db:"refund_amount"`
	RefundStatus         sql.NullString    `db:"refund_status"`
	BoardingPoint        []byte            `db:"boarding_point"`
	DropPoint            []byte            `db:"drop_point"`
	SpecialRequests      models.StringList `db:"special_requests"`
	Notes                sql.NullString    `db:"notes"`
	IdempotencyKey       sql.NullString    `db:"idempotency_key"`
	RequestHash          sql.NullString    `db:"request_hash"`
	CreatedAt            time.Time         `db:"created_at"`
	UpdatedAt            time.Time         `db:"updated_at"`
}

func (r *bookingRow) toModel() (*models.Booking, error) {
	b := &models.Booking{
		ID:              r.ID,
		TicketNumber:    nullStringPtr(r.TicketNumber),
		RiderID:         r.RiderID,
		VehicleID:       r.VehicleID,
		ScheduleID:      r.ScheduleID,
		SeatNumber:      r.SeatNumber,
		TravelDate:      r.TravelDate,
		BookingDate:     r.BookingDate,
		Status:          models.BookingStatus(r.Status),
		PaymentStatus:   models.PaymentStatus(r.PaymentStatus),
		PaymentMethod:   models.PaymentMethod(r.PaymentMethod),
		Amount:          r.Amount,
		SpecialRequests: r.SpecialRequests,
		Notes:           nullStringPtr(r.Notes),
		IdempotencyKey:  nullStringPtr(r.IdempotencyKey),
		RequestHash:     nullStringPtr(r.RequestHash),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		Passenger: models.PassengerDetails{
			Name:   r.PassengerName,
			Phone:  r.PassengerPhone,
			Email:  nullStringPtr(r.PassengerEmail),
			Gender: nullStringPtr(r.PassengerGender),
		},
	}
	if b.SpecialRequests == nil {
		b.SpecialRequests = models.StringList{}
	}

	if r.PassengerAge.Valid {
		age := int(r.PassengerAge.Int64)
		b.Passenger.Age = &age
	}

	if r.PaymentTransactionID.Valid {
		b.PaymentDetails = &models.PaymentDetails{
			TransactionID:  r.PaymentTransactionID.String,
			PaymentGateway: nullStringPtr(r.PaymentGateway),
		}
		if r.PaidAt.Valid {
			paidAt := r.PaidAt.Time
			b.PaymentDetails.PaidAt = &paidAt
		}
	}

	if r.CancelledAt.Valid {
		b.Cancellation = &models.Cancellation{
			CancelledAt:  r.CancelledAt.Time,
			CancelledBy:  r.CancelledBy.String,
			Reason:       nullStringPtr(r.CancellationReason),
			RefundAmount: r.RefundAmount.Float64,
			RefundStatus: models.RefundStatus(r.RefundStatus.String),
		}
	}

	var err error
	if b.BoardingPoint, err = decodeStopPoint(r.BoardingPoint); err != nil {
		return nil, fmt.Errorf("failed to decode boarding point: %w", err)
	}
	if b.DropPoint, err = decodeStopPoint(r.DropPoint); err != nil {
		return nil, fmt.Errorf("failed to decode drop point: %w", err)
	}

	return b, nil
}

// BookingRepository handles booking database operations
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a confirmed booking and assigns its ticket number from
// booking_ticket_seq. The partial unique indexes reject a second confirmed
// booking for the same seat or the same rider on the vehicle that day.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking, day models.TravelDay) error {
	boardingPoint, err := encodeStopPoint(b.BoardingPoint)
	if err != nil {
		return fmt.Errorf("failed to encode boarding point: %w", err)
	}
	dropPoint, err := encodeStopPoint(b.DropPoint)
	if err != nil {
		return fmt.Errorf("failed to encode drop point: %w", err)
	}

	var transactionID, gateway *string
	var paidAt *time.Time
	if b.PaymentDetails != nil {
		transactionID = &b.PaymentDetails.TransactionID
		gateway = b.PaymentDetails.PaymentGateway
		paidAt = b.PaymentDetails.PaidAt
	}

	query := `
		INSERT INTO bookings (
			id, ticket_number, rider_id, vehicle_id, schedule_id, seat_number,
			travel_date, travel_day, status, payment_status, payment_method,
			payment_transaction_id, payment_gateway, paid_at, amount,
			passenger_name, passenger_phone, passenger_email, passenger_age, passenger_gender,
			boarding_point, drop_point, special_requests, notes,
			idempotency_key, request_hash
		) VALUES (
			$1, 'TKT' || LPAD(nextval('booking_ticket_seq')::text, 6, '0'), $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25
		)
		RETURNING ticket_number, booking_date, created_at, updated_at`

	var ticketNumber string
	err = r.db.QueryRowxContext(ctx, query,
		b.ID, b.RiderID, b.VehicleID, b.ScheduleID, b.SeatNumber,
		b.TravelDate, day.Date, b.Status, b.PaymentStatus, b.PaymentMethod,
		transactionID, gateway, paidAt, b.Amount,
		b.Passenger.Name, b.Passenger.Phone, b.Passenger.Email, b.Passenger.Age, b.Passenger.Gender,
		boardingPoint, dropPoint, b.SpecialRequests, b.Notes,
		b.IdempotencyKey, b.RequestHash,
	).Scan(&ticketNumber, &b.BookingDate, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if mapped := mapConstraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	b.TicketNumber = &ticketNumber
	return nil
}

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	var row bookingRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to fetch booking: %w", err)
	}

	return row.toModel()
}

// GetByIdempotencyKey retrieves the booking a rider created with the given key
func (r *BookingRepository) GetByIdempotencyKey(ctx context.Context, riderID, key string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE rider_id = $1 AND idempotency_key = $2`

	var row bookingRow
	if err := r.db.GetContext(ctx, &row, query, riderID, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to fetch booking by idempotency key: %w", err)
	}

	return row.toModel()
}

// BookedSeats returns the seat numbers held by confirmed bookings on the vehicle for the day
func (r *BookingRepository) BookedSeats(ctx context.Context, vehicleID string, day models.TravelDay) ([]int, error) {
	query := `
		SELECT seat_number
		FROM bookings
		WHERE vehicle_id = $1 AND travel_day = $2 AND status = 'confirmed'
		ORDER BY seat_number`

	var seats []int
	if err := r.db.SelectContext(ctx, &seats, query, vehicleID, day.Date); err != nil {
		return nil, fmt.Errorf("failed to fetch booked seats: %w", err)
	}

	return seats, nil
}

// HasConfirmedBooking reports whether the rider already holds a confirmed booking on the vehicle for the day
func (r *BookingRepository) HasConfirmedBooking(ctx context.Context, riderID, vehicleID string, day models.TravelDay) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE rider_id = $1 AND vehicle_id = $2 AND travel_day = $3 AND status = 'confirmed'
		)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, riderID, vehicleID, day.Date); err != nil {
		return false, fmt.Errorf("failed to check existing booking: %w", err)
	}

	return exists, nil
}

// Cancel moves a confirmed booking to cancelled and records the cancellation
func (r *BookingRepository) Cancel(ctx context.Context, id string, c models.Cancellation) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET status = 'cancelled',
		    cancelled_at = $2,
		    cancelled_by = $3,
		    cancellation_reason = $4,
		    refund_amount = $5,
		    refund_status = $6,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'confirmed'
		RETURNING ` + bookingColumns

	var row bookingRow
	err := r.db.QueryRowxContext(ctx, query,
		id, c.CancelledAt, c.CancelledBy, c.Reason, c.RefundAmount, c.RefundStatus,
	).StructScan(&row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatusChanged
		}
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	return row.toModel()
}

// TransitionFromConfirmed moves a confirmed booking to a terminal status other than cancelled
func (r *BookingRepository) TransitionFromConfirmed(ctx context.Context, id string, to models.BookingStatus) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'confirmed'
		RETURNING ` + bookingColumns

	var row bookingRow
	if err := r.db.QueryRowxContext(ctx, query, id, to).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatusChanged
		}
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	return row.toModel()
}

// ListByRider returns a rider's bookings, newest travel date first
func (r *BookingRepository) ListByRider(ctx context.Context, riderID string, status *models.BookingStatus) ([]models.Booking, error) {
	return r.Search(ctx, models.BookingFilter{RiderID: &riderID, Status: status})
}

// ListConfirmedByVehicleAndDay returns confirmed bookings on the vehicle for the day ordered by seat
func (r *BookingRepository) ListConfirmedByVehicleAndDay(ctx context.Context, vehicleID string, day models.TravelDay) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE vehicle_id = $1 AND travel_day = $2 AND status = 'confirmed'
		ORDER BY seat_number`

	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, query, vehicleID, day.Date); err != nil {
		return nil, fmt.Errorf("failed to fetch vehicle bookings: %w", err)
	}

	return toModels(rows)
}

// StatsByDateRange groups bookings travelling within [start, end] by status
func (r *BookingRepository) StatsByDateRange(ctx context.Context, start, end time.Time) ([]models.BookingStatGroup, error) {
	query := `
		SELECT status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total_amount
		FROM bookings
		WHERE travel_date >= $1 AND travel_date <= $2
		GROUP BY status
		ORDER BY status`

	var stats []models.BookingStatGroup
	if err := r.db.SelectContext(ctx, &stats, query, start, end); err != nil {
		return nil, fmt.Errorf("failed to fetch booking stats: %w", err)
	}

	return stats, nil
}

// Search returns bookings matching the filter ordered by travel date then creation time,
// both newest first. A zero Limit returns every match.
func (r *BookingRepository) Search(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	where, args := buildBookingWhere(filter)

	query := `SELECT ` + bookingColumns + ` FROM bookings` + where +
		` ORDER BY travel_date DESC, created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search bookings: %w", err)
	}

	return toModels(rows)
}

// Count returns the number of bookings matching the filter, ignoring pagination
func (r *BookingRepository) Count(ctx context.Context, filter models.BookingFilter) (int, error) {
	where, args := buildBookingWhere(filter)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM bookings`+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	return total, nil
}

func buildBookingWhere(filter models.BookingFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.RiderID != nil {
		add("rider_id", *filter.RiderID)
	}
	if filter.VehicleID != nil {
		add("vehicle_id", *filter.VehicleID)
	}
	if filter.Status != nil {
		add("status", string(*filter.Status))
	}
	if filter.PaymentStatus != nil {
		add("payment_status", string(*filter.PaymentStatus))
	}
	if filter.TravelDay != nil {
		add("travel_day", filter.TravelDay.Date)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func toModels(rows []bookingRow) ([]models.Booking, error) {
	bookings := make([]models.Booking, 0, len(rows))
	for i := range rows {
		b, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, nil
}

// mapConstraintError translates unique violations on the booking indexes
func mapConstraintError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}

	switch pqErr.Constraint {
	case ConstraintConfirmedSeat:
		return ErrSeatTaken
	case ConstraintConfirmedRider:
		return ErrRiderAlreadyBooked
	case ConstraintIdempotencyKey:
		return ErrIdempotencyKeyTaken
	}
	return nil
}

func encodeStopPoint(p *models.StopPoint) (*string, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func decodeStopPoint(data []byte) (*models.StopPoint, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var p models.StopPoint
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
