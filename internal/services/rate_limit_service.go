package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/collegetransit/booking-service/internal/database"
	"github.com/collegetransit/booking-service/internal/metrics"
)

// RateLimitConfig caps how many bookings a rider or client IP may create per window.
// A zero max disables that check.
type RateLimitConfig struct {
	MaxRiderBookings int
	RiderWindow      time.Duration
	MaxIPBookings    int
	IPWindow         time.Duration
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRiderBookings: 10,
		RiderWindow:      time.Hour,
		MaxIPBookings:    50,
		IPWindow:         time.Hour,
	}
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // "rider" or "ip"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// RateLimitService throttles booking creation using the booking audit trail
type RateLimitService struct {
	db     database.DB
	config RateLimitConfig
	now    func() time.Time
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(db database.DB, config RateLimitConfig) *RateLimitService {
	return &RateLimitService{
		db:     db,
		config: config,
		now:    time.Now,
	}
}

// CheckBookingRateLimit returns a *RateLimitError when riderID or ip created too many bookings recently
func (s *RateLimitService) CheckBookingRateLimit(ctx context.Context, riderID, ip string) error {
	if riderID != "" && s.config.MaxRiderBookings > 0 {
		count, last, err := s.recentBookings(ctx, "actor_id", riderID, s.config.RiderWindow)
		if err != nil {
			return fmt.Errorf("failed to check rider rate limit: %w", err)
		}
		if count >= s.config.MaxRiderBookings {
			return s.exceeded("rider", "Too many bookings from this account", last.Add(s.config.RiderWindow))
		}
	}

	if ip != "" && s.config.MaxIPBookings > 0 {
		count, last, err := s.recentBookings(ctx, "ip_address", ip, s.config.IPWindow)
		if err != nil {
			return fmt.Errorf("failed to check IP rate limit: %w", err)
		}
		if count >= s.config.MaxIPBookings {
			return s.exceeded("ip", "Too many bookings from this IP address", last.Add(s.config.IPWindow))
		}
	}

	return nil
}

func (s *RateLimitService) exceeded(kind, message string, retryAfter time.Time) error {
	metrics.BookingsRejected.WithLabelValues("rate_limited").Inc()
	return &RateLimitError{
		Message:    fmt.Sprintf("%s. Please try again after %s", message, retryAfter.Format("15:04:05")),
		RetryAfter: retryAfter,
		Type:       kind,
	}
}

// recentBookings counts booking_created audit entries for column = value within the window.
// column is always one of the two constants passed above.
func (s *RateLimitService) recentBookings(ctx context.Context, column, value string, window time.Duration) (int, time.Time, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*), COALESCE(MAX(created_at), NOW())
		FROM booking_audit_logs
		WHERE %s = $1
		  AND action = $2
		  AND created_at > $3
	`, column)

	var count int
	var last time.Time

	err := s.db.QueryRowxContext(ctx, query, value, AuditActionBookingCreated, s.now().Add(-window)).Scan(&count, &last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, err
	}

	return count, last, nil
}
