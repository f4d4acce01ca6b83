package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/collegetransit/booking-service/internal/database"
	"github.com/collegetransit/booking-service/internal/utils"
	"github.com/google/uuid"
)

// Audit actions recorded against bookings
const (
	AuditActionBookingCreated   = "booking_created"
	AuditActionBookingReplayed  = "booking_replayed"
	AuditActionBookingCancelled = "booking_cancelled"
	AuditActionBookingCompleted = "booking_completed"
	AuditActionBookingNoShow    = "booking_no_show"
	AuditActionAccessDenied     = "booking_access_denied"
)

// AuditService handles audit logging for booking events
type AuditService struct {
	db database.DB
}

// NewAuditService creates a new audit service
func NewAuditService(db database.DB) *AuditService {
	return &AuditService{
		db: db,
	}
}

// AuditEvent represents a booking event to be logged
type AuditEvent struct {
	ActorID   string                 // user who performed the action
	Action    string                 // one of the AuditAction constants
	BookingID string                 // may be empty when the booking was never created
	IPAddress string
	UserAgent string
	Details   map[string]interface{} // stored as JSONB
}

// AuditRecord is a stored audit event
type AuditRecord struct {
	ID        string          `json:"id" db:"id"`
	ActorID   *string         `json:"actor_id,omitempty" db:"actor_id"`
	Action    string          `json:"action" db:"action"`
	BookingID *string         `json:"booking_id,omitempty" db:"booking_id"`
	IPAddress *string         `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent *string         `json:"user_agent,omitempty" db:"user_agent"`
	Details   json.RawMessage `json:"details" db:"details"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// LogBookingEvent records event with the caller's parsed device info
func (s *AuditService) LogBookingEvent(ctx context.Context, event AuditEvent) error {
	details := make(map[string]interface{}, len(event.Details)+2)
	for k, v := range event.Details {
		details[k] = v
	}
	details["device_info"] = utils.ParseUserAgent(event.UserAgent)
	if correlationID := utils.CorrelationIDFromContext(ctx); correlationID != "" {
		details["correlation_id"] = correlationID
	}

	encoded, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	query := `
		INSERT INTO booking_audit_logs (id, actor_id, action, booking_id, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	_, err = s.db.ExecContext(ctx, query,
		uuid.NewString(),
		emptyToNil(event.ActorID),
		event.Action,
		emptyToNil(event.BookingID),
		event.IPAddress,
		event.UserAgent,
		string(encoded),
	)
	if err != nil {
		return fmt.Errorf("failed to log audit event: %w", err)
	}

	return nil
}

// EventsForBooking returns the most recent audit events for a booking, newest first
func (s *AuditService) EventsForBooking(ctx context.Context, bookingID string, limit int) ([]AuditRecord, error) {
	query := `
		SELECT id, actor_id, action, booking_id, ip_address, user_agent, details, created_at
		FROM booking_audit_logs
		WHERE booking_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	records := []AuditRecord{}
	if err := s.db.SelectContext(ctx, &records, query, bookingID, limit); err != nil {
		return nil, fmt.Errorf("failed to get audit events: %w", err)
	}

	return records, nil
}

func emptyToNil(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
