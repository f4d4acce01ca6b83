package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/collegetransit/booking-service/internal/models"
)

// ErrBusNotFound is returned when the bus id does not resolve
var ErrBusNotFound = errors.New("bus not found")

// BusRepository reads buses from the vehicle registry
type BusRepository struct {
	db DB
}

// NewBusRepository creates a new BusRepository
func NewBusRepository(db DB) *BusRepository {
	return &BusRepository{db: db}
}

// GetByID retrieves a bus by ID
func (r *BusRepository) GetByID(ctx context.Context, busID string) (*models.Bus, error) {
	query := `
		SELECT id, bus_number, name, capacity, status, created_at, updated_at
		FROM buses
		WHERE id = $1
	`

	bus := &models.Bus{}
	if err := r.db.GetContext(ctx, bus, query, busID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBusNotFound
		}
		return nil, fmt.Errorf("failed to fetch bus: %w", err)
	}

	return bus, nil
}
