package services

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"golang.org/x/crypto/blake2b"
)

// requestFingerprint hashes the fields of a create request that determine the
// booking, so a replayed Idempotency-Key can be told apart from a reused one.
func requestFingerprint(in CreateBookingInput) string {
	canonical := struct {
		RiderID         string      `json:"rider_id"`
		VehicleID       string      `json:"vehicle_id"`
		ScheduleID      string      `json:"schedule_id"`
		SeatNumber      int         `json:"seat_number"`
		TravelDate      string      `json:"travel_date"`
		Passenger       interface{} `json:"passenger"`
		PaymentMethod   string      `json:"payment_method"`
		PaymentDetails  interface{} `json:"payment_details"`
		BoardingPoint   interface{} `json:"boarding_point"`
		DropPoint       interface{} `json:"drop_point"`
		SpecialRequests []string    `json:"special_requests"`
		Notes           *string     `json:"notes"`
	}{
		RiderID:         in.RiderID,
		VehicleID:       in.VehicleID,
		ScheduleID:      in.ScheduleID,
		SeatNumber:      in.SeatNumber,
		TravelDate:      in.TravelDate.UTC().Format(time.RFC3339Nano),
		Passenger:       in.Passenger,
		PaymentMethod:   string(in.PaymentMethod),
		PaymentDetails:  in.PaymentDetails,
		BoardingPoint:   in.BoardingPoint,
		DropPoint:       in.DropPoint,
		SpecialRequests: in.SpecialRequests,
		Notes:           in.Notes,
	}

	// Marshal cannot fail: every field is a plain value
	encoded, _ := json.Marshal(canonical)
	sum := blake2b.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
