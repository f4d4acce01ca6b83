package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/collegetransit/booking-service/internal/models"
)

var (
	// ErrScheduleNotFound is returned when the schedule id does not resolve
	ErrScheduleNotFound = errors.New("schedule not found")
	// ErrRouteNotFound is returned when the route id does not resolve
	ErrRouteNotFound = errors.New("route not found")
)

// ScheduleRepository reads schedules and their routes
type ScheduleRepository struct {
	db DB
}

// NewScheduleRepository creates a new ScheduleRepository
func NewScheduleRepository(db DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// GetByID retrieves a schedule by ID
func (r *ScheduleRepository) GetByID(ctx context.Context, scheduleID string) (*models.Schedule, error) {
	query := `
		SELECT id, bus_id, route_id, departure_time, arrival_time, fare, created_at, updated_at
		FROM schedules
		WHERE id = $1
	`

	schedule := &models.Schedule{}
	if err := r.db.GetContext(ctx, schedule, query, scheduleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to fetch schedule: %w", err)
	}

	return schedule, nil
}

// GetRoute retrieves a route and its fare configuration by ID
func (r *ScheduleRepository) GetRoute(ctx context.Context, routeID string) (*models.Route, error) {
	query := `
		SELECT id, name, start_location, end_location, distance_km,
		       base_fare, per_km_rate, student_discount, staff_discount,
		       created_at, updated_at
		FROM routes
		WHERE id = $1
	`

	route := &models.Route{}
	if err := r.db.GetContext(ctx, route, query, routeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRouteNotFound
		}
		return nil, fmt.Errorf("failed to fetch route: %w", err)
	}

	return route, nil
}
