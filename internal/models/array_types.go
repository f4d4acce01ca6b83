package models

import (
	"database/sql/driver"

	"github.com/lib/pq"
)

// StringList is a TEXT[] column that is never nil once scanned
type StringList []string

// Value implements the driver.Valuer interface
func (a StringList) Value() (driver.Value, error) {
	if a == nil {
		return pq.Array([]string{}).Value()
	}
	return pq.Array([]string(a)).Value()
}

// Scan implements the sql.Scanner interface
func (a *StringList) Scan(src interface{}) error {
	if src == nil {
		*a = StringList{}
		return nil
	}
	slice := (*[]string)(a)
	if err := pq.Array(slice).Scan(src); err != nil {
		return err
	}
	if *a == nil {
		*a = StringList{}
	}
	return nil
}
