package apiutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func ParsePositiveInt64Field(raw string, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, FieldError{Field: field, Reason: "is required"}
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, FieldError{Field: field, Reason: "must be greater than 0"}
	}
	return value, nil
}

// ParseDateField reads a calendar date in "2006-01-02" form.
func ParseDateField(raw string, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, FieldError{Field: field, Reason: "is required"}
	}
	parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return time.Time{}, FieldError{Field: field, Reason: "must be a date in 2006-01-02 form"}
	}
	return parsed, nil
}

// ParseClockField reads a clock time in "15:04" form onto the given date.
func ParseClockField(date time.Time, raw string, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, FieldError{Field: field, Reason: "is required"}
	}
	parsed, err := time.ParseInLocation("15:04", raw, time.Local)
	if err != nil {
		return time.Time{}, FieldError{Field: field, Reason: "must be a time in 15:04 form"}
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, date.Location()), nil
}

// ParseDurationMinutesField reads an optional positive minute count.
func ParseDurationMinutesField(raw string, field string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	minutes, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || minutes <= 0 {
		return 0, FieldError{Field: field, Reason: "must be a positive minute count"}
	}
	return time.Duration(minutes) * time.Minute, nil
}

func FormatPriceCents(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}
