package models

import (
	"fmt"
	"time"
)

const travelDayLayout = "2006-01-02"

// TravelDay is a calendar day in the service time zone. Bookings whose travel
// date falls anywhere inside [Start, End] belong to the same day for seat
// availability and the one-booking-per-rider rule.
type TravelDay struct {
	Date  string // YYYY-MM-DD, stored in bookings.travel_day
	Start time.Time
	End   time.Time
}

// NewTravelDay returns the day containing t in loc
func NewTravelDay(t time.Time, loc *time.Location) TravelDay {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return TravelDay{
		Date:  start.Format(travelDayLayout),
		Start: start,
		End:   start.AddDate(0, 0, 1).Add(-time.Millisecond),
	}
}

// ParseTravelDay parses a YYYY-MM-DD date or an RFC 3339 timestamp into its day in loc
func ParseTravelDay(value string, loc *time.Location) (TravelDay, error) {
	t, err := ParseTravelDate(value, loc)
	if err != nil {
		return TravelDay{}, err
	}
	return NewTravelDay(t, loc), nil
}

// ParseTravelDate accepts YYYY-MM-DD (midnight in loc) or an RFC 3339 timestamp
func ParseTravelDate(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(travelDayLayout, value, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", value)
}

// Before reports whether d is an earlier calendar day than other
func (d TravelDay) Before(other TravelDay) bool {
	return d.Date < other.Date
}

// Contains reports whether t falls within the day
func (d TravelDay) Contains(t time.Time) bool {
	return !t.Before(d.Start) && !t.After(d.End)
}
