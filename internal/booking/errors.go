// internal/booking/errors.go
package booking

import (
	"errors"
	"fmt"
)

// Every failure that crosses the engine boundary is one of these kinds, so
// callers can branch with errors.Is/errors.As instead of string matching.
var (
	ErrUnknownResource           = errors.New("unknown resource")
	ErrOutsideOperatingHours     = errors.New("outside operating hours")
	ErrBlackout                  = errors.New("blackout")
	ErrSlotUnavailable           = errors.New("slot unavailable")
	ErrInvalidInterval           = errors.New("invalid interval")
	ErrInvalidDuration           = errors.New("invalid duration")
	ErrInvalidDiscount           = errors.New("invalid discount")
	ErrInvalidBookingSource      = errors.New("invalid booking source")
	ErrInvalidPaymentStatus      = errors.New("invalid payment status")
	ErrCancellationWindowExpired = errors.New("cancellation window expired")
	ErrSlotNotFull               = errors.New("slot not full")
	ErrCheckInNotAllowed         = errors.New("check-in not allowed")
	ErrNotFound                  = errors.New("not found")
)

// PartialConflictError reports a recurrence expansion where at least one
// occurrence could not be booked. The confirmed siblings stay booked; the
// full per-date report travels with the error.
type PartialConflictError struct {
	Result *SeriesResult
}

func (e *PartialConflictError) Error() string {
	return fmt.Sprintf("recurrence partially booked: %d confirmed, %d conflicts",
		e.Result.Confirmed, e.Result.Conflicts)
}
