package validator

import (
	"fmt"
	"time"

	playground "github.com/go-playground/validator/v10"
)

const travelDateLayout = "2006-01-02"

var mobile = NewMobileValidator()

// RegisterBindings adds the booking API's custom tags to v:
//
//	mobile      - a passenger mobile number accepted by MobileValidator
//	bookingdate - a travel date as YYYY-MM-DD or an RFC 3339 timestamp
func RegisterBindings(v *playground.Validate) error {
	if err := v.RegisterValidation("mobile", isMobile); err != nil {
		return fmt.Errorf("failed to register mobile validator: %w", err)
	}
	if err := v.RegisterValidation("bookingdate", isBookingDate); err != nil {
		return fmt.Errorf("failed to register bookingdate validator: %w", err)
	}
	return nil
}

func isMobile(fl playground.FieldLevel) bool {
	return mobile.IsValid(fl.Field().String())
}

// isBookingDate checks format only; whether the date is in the past depends
// on the service clock and time zone and is decided when the booking is made.
func isBookingDate(fl playground.FieldLevel) bool {
	value := fl.Field().String()
	if _, err := time.Parse(travelDateLayout, value); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, value)
	return err == nil
}
