package attendance

import (
	"time"

	"madrasa/internal/apperrors"
)

// Date is a civil calendar day in YYYY-MM-DD form. It carries no time zone.
type Date string

// ParseDate validates raw as YYYY-MM-DD.
func ParseDate(raw string) (Date, error) {
	if raw == "" {
		return "", apperrors.Validation("Please select a date.")
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil || t.Format(time.DateOnly) != raw {
		return "", apperrors.Validation("date must be formatted as YYYY-MM-DD")
	}
	return Date(raw), nil
}

// DateOf returns the civil day of t in t's own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(time.DateOnly))
}

func (d Date) String() string { return string(d) }
