package models

import "time"

// BusStatus represents the current operational status of a bus
type BusStatus string

const (
	BusStatusActive      BusStatus = "active"
	BusStatusMaintenance BusStatus = "maintenance"
	BusStatusInactive    BusStatus = "inactive"
)

// Bus is the vehicle registry's view of a bus; the booking core only needs its capacity
type Bus struct {
	ID        string    `json:"id" db:"id"`
	BusNumber string    `json:"bus_number" db:"bus_number"`
	Name      string    `json:"name" db:"name"`
	Capacity  int       `json:"capacity" db:"capacity"`
	Status    BusStatus `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SeatRange returns every seat number on the bus, 1..Capacity
func (b *Bus) SeatRange() []int {
	seats := make([]int, 0, b.Capacity)
	for i := 1; i <= b.Capacity; i++ {
		seats = append(seats, i)
	}
	return seats
}
