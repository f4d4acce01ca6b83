package services

import (
	"math"

	"github.com/collegetransit/booking-service/internal/models"
)

// CalculateFare prices a trip on route for a rider of the given category:
// base fare plus distance charge, less the category discount, rounded to
// two decimal places.
func CalculateFare(route *models.Route, category models.RiderCategory) float64 {
	fare := route.BaseFare + route.PerKmRate*route.DistanceKm

	switch category {
	case models.RiderCategoryStudent:
		fare *= 1 - route.StudentDiscount
	case models.RiderCategoryStaff:
		fare *= 1 - route.StaffDiscount
	}

	return roundCurrency(fare)
}

func roundCurrency(amount float64) float64 {
	return math.Round(amount*100) / 100
}
