package models

import "time"

// Schedule pairs a bus with a route at a recurring departure time
type Schedule struct {
	ID            string    `json:"id" db:"id"`
	BusID         string    `json:"bus_id" db:"bus_id"`
	RouteID       *string   `json:"route_id,omitempty" db:"route_id"`
	DepartureTime string    `json:"departure_time" db:"departure_time"` // HH:MM
	ArrivalTime   string    `json:"arrival_time" db:"arrival_time"`     // HH:MM
	Fare          float64   `json:"fare" db:"fare"`                     // flat fare, used when the route is unavailable
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Route is a start/end pair with its fare configuration
type Route struct {
	ID              string    `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	StartLocation   string    `json:"start_location" db:"start_location"`
	EndLocation     string    `json:"end_location" db:"end_location"`
	DistanceKm      float64   `json:"distance_km" db:"distance_km"`
	BaseFare        float64   `json:"base_fare" db:"base_fare"`
	PerKmRate       float64   `json:"per_km_rate" db:"per_km_rate"`
	StudentDiscount float64   `json:"student_discount" db:"student_discount"` // fraction, 0.2 = 20% off
	StaffDiscount   float64   `json:"staff_discount" db:"staff_discount"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
