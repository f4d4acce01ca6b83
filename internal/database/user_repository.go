package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/collegetransit/booking-service/internal/models"
)

// ErrUserNotFound is returned when the user id does not resolve
var ErrUserNotFound = errors.New("user not found")

// UserRepository reads rider identity from the users table
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetRiderCategory returns the fare category for the user's current role
func (r *UserRepository) GetRiderCategory(ctx context.Context, userID string) (models.RiderCategory, error) {
	var role string
	err := r.db.GetContext(ctx, &role, `SELECT role FROM users WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to fetch user role: %w", err)
	}

	return models.CategoryFromRole(role), nil
}
