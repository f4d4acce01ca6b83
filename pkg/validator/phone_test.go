package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidNumbers(t *testing.T) {
	validator := NewMobileValidator()

	validNumbers := []struct {
		input    string
		expected string
		name     string
	}{
		{"9876543210", "+919876543210", "National"},
		{"98765 43210", "+919876543210", "With spaces"},
		{"98765-43210", "+919876543210", "With dashes"},
		{"(987) 654.3210", "+919876543210", "With parentheses and dots"},
		{"09876543210", "+919876543210", "Trunk prefix"},
		{"919876543210", "+919876543210", "Country code without plus"},
		{"+91 98765 43210", "+919876543210", "International Indian"},
		{"6123456789", "+916123456789", "Starts with 6"},
		{"+44 7700 900123", "+447700900123", "International UK"},
		{"+1 (415) 555-0132", "+14155550132", "International US"},
	}

	for _, tc := range validNumbers {
		t.Run(tc.name, func(t *testing.T) {
			normalized, err := validator.Validate(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, normalized)
		})
	}
}

func TestValidate_InvalidNumbers(t *testing.T) {
	validator := NewMobileValidator()

	invalidNumbers := []struct {
		input string
		err   error
		name  string
	}{
		{"", ErrEmptyPhone, "Empty"},
		{"   ", ErrEmptyPhone, "Blank"},
		{"98765abcde", ErrInvalidFormat, "Letters"},
		{"98+76543210", ErrInvalidFormat, "Plus in the middle"},
		{"987654321", ErrInvalidLength, "Too short"},
		{"98765432100", ErrInvalidLength, "Too long national"},
		{"5876543210", ErrInvalidPrefix, "Landline prefix"},
		{"+91 5876543210", ErrInvalidPrefix, "International landline"},
		{"+123456789", ErrInvalidLength, "International too short"},
		{"+1234567890123456", ErrInvalidLength, "International too long"},
		{"+0919876543210", ErrInvalidFormat, "International leading zero"},
	}

	for _, tc := range invalidNumbers {
		t.Run(tc.name, func(t *testing.T) {
			_, err := validator.Validate(tc.input)
			assert.ErrorIs(t, err, tc.err)
			assert.False(t, validator.IsValid(tc.input))
		})
	}
}

func TestSanitize(t *testing.T) {
	validator := NewMobileValidator()
	assert.Equal(t, "+919876543210", validator.Sanitize(" +91 (98765) 432.10 "))
}
