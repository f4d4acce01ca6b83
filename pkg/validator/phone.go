package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits and an optional leading +")

	// ErrInvalidLength indicates phone number is too short or too long
	ErrInvalidLength = errors.New("phone number must have between 10 and 15 digits")

	// ErrInvalidPrefix indicates a national number that is not a mobile number
	ErrInvalidPrefix = errors.New("mobile number must start with 6, 7, 8 or 9")
)

// phoneRegex matches an optional leading + followed by digits
var phoneRegex = regexp.MustCompile(`^\+?\d+$`)

// separators are stripped before validation
var separators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// MobileValidator validates passenger mobile numbers. Ten-digit numbers are
// treated as Indian national mobiles; longer ones must be in international form.
type MobileValidator struct{}

// NewMobileValidator creates a new mobile validator instance
func NewMobileValidator() *MobileValidator {
	return &MobileValidator{}
}

// Validate checks phone and returns it in E.164 form, e.g. +919876543210
// Accepts: 9876543210, 98765 43210, 098765-43210, +91 98765 43210, +44 7700 900123
func (v *MobileValidator) Validate(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.Sanitize(phone)
	if !phoneRegex.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}

	international := strings.HasPrefix(sanitized, "+")
	digits := strings.TrimPrefix(sanitized, "+")

	if !international {
		// trunk prefix
		if len(digits) == 11 && digits[0] == '0' {
			digits = digits[1:]
		}
		if len(digits) == 12 && strings.HasPrefix(digits, "91") {
			digits = digits[2:]
		}
		if len(digits) != 10 {
			return "", ErrInvalidLength
		}
		if !isIndianMobilePrefix(digits) {
			return "", ErrInvalidPrefix
		}
		return "+91" + digits, nil
	}

	if len(digits) < 10 || len(digits) > 15 {
		return "", ErrInvalidLength
	}
	if digits[0] == '0' {
		return "", ErrInvalidFormat
	}
	if strings.HasPrefix(digits, "91") && (len(digits) != 12 || !isIndianMobilePrefix(digits[2:])) {
		return "", ErrInvalidPrefix
	}

	return "+" + digits, nil
}

// Sanitize removes common separators from phone
func (v *MobileValidator) Sanitize(phone string) string {
	return separators.Replace(strings.TrimSpace(phone))
}

// IsValid is a convenience method that returns true if phone is valid
func (v *MobileValidator) IsValid(phone string) bool {
	_, err := v.Validate(phone)
	return err == nil
}

func isIndianMobilePrefix(national string) bool {
	return len(national) > 0 && national[0] >= '6' && national[0] <= '9'
}
