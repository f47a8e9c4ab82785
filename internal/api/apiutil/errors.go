package apiutil

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/openclub/courtbook/internal/booking"
)

// BookingError maps an engine error onto an HTTP status and a safe message.
// Unknown errors become opaque 500s.
func BookingError(err error) HandlerError {
	var fieldErr FieldError
	if errors.As(err, &fieldErr) {
		return HandlerError{Status: http.StatusBadRequest, Message: fieldErr.Error(), Err: err}
	}

	switch {
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, booking.ErrUnknownResource):
		return HandlerError{Status: http.StatusNotFound, Message: "not found", Err: err}
	case errors.Is(err, booking.ErrSlotUnavailable):
		return HandlerError{Status: http.StatusConflict, Message: "slot unavailable", Err: err}
	case errors.Is(err, booking.ErrSlotNotFull):
		return HandlerError{Status: http.StatusConflict, Message: "slot is still bookable", Err: err}
	case errors.Is(err, booking.ErrCancellationWindowExpired):
		return HandlerError{Status: http.StatusConflict, Message: "cancellation window expired", Err: err}
	case errors.Is(err, booking.ErrCheckInNotAllowed):
		return HandlerError{Status: http.StatusConflict, Message: "check-in not allowed", Err: err}
	case errors.Is(err, booking.ErrOutsideOperatingHours):
		return HandlerError{Status: http.StatusUnprocessableEntity, Message: "outside operating hours", Err: err}
	case errors.Is(err, booking.ErrBlackout):
		return HandlerError{Status: http.StatusUnprocessableEntity, Message: "court is blacked out", Err: err}
	case errors.Is(err, booking.ErrInvalidInterval),
		errors.Is(err, booking.ErrInvalidDuration),
		errors.Is(err, booking.ErrInvalidDiscount),
		errors.Is(err, booking.ErrInvalidBookingSource),
		errors.Is(err, booking.ErrInvalidPaymentStatus):
		return HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
	}
	return HandlerError{Status: http.StatusInternalServerError, Message: "internal error", Err: err}
}

// WriteBookingError logs the underlying error and writes the mapped status
// with a JSON error body.
func WriteBookingError(w http.ResponseWriter, r *http.Request, err error) {
	handlerErr := BookingError(err)
	logEvent := log.Ctx(r.Context()).Warn()
	if handlerErr.Status >= http.StatusInternalServerError {
		logEvent = log.Ctx(r.Context()).Error()
	}
	logEvent.Err(err).Int("status", handlerErr.Status).Msg("Request failed")

	_ = WriteJSON(w, handlerErr.Status, map[string]string{"error": handlerErr.Message})
}
