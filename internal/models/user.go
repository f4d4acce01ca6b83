package models

import "github.com/samber/lo"

// Roles carried in access tokens
const (
	RoleStudent = "student"
	RoleStaff   = "staff"
	RoleAdmin   = "admin"
	RoleDriver  = "driver"
)

// RiderCategory decides which fare discount applies to a rider
type RiderCategory string

const (
	RiderCategoryStudent RiderCategory = "student"
	RiderCategoryStaff   RiderCategory = "staff"
	RiderCategoryOther   RiderCategory = "other"
)

// CategoryFromRole maps a user role to its fare category
func CategoryFromRole(role string) RiderCategory {
	switch role {
	case RoleStudent:
		return RiderCategoryStudent
	case RoleStaff:
		return RiderCategoryStaff
	default:
		return RiderCategoryOther
	}
}

// HasRole reports whether role appears in roles
func HasRole(roles []string, role string) bool {
	return lo.Contains(roles, role)
}
