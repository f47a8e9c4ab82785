// internal/api/payments/handlers.go

// Package payments receives the external gateway's status callbacks. The
// engine records the verdict; it never initiates or reverses charges itself.
package payments

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclub/courtbook/internal/api/apiutil"
	"github.com/openclub/courtbook/internal/booking"
	"github.com/openclub/courtbook/internal/tenant"
)

var (
	engine     *booking.Engine
	engineOnce sync.Once
)

const paymentQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(e *booking.Engine) {
	if e == nil {
		return
	}
	engineOnce.Do(func() {
		engine = e
	})
}

type callbackRequest struct {
	Status string `json:"status"`
}

type callbackResponse struct {
	ReservationID int64  `json:"reservation_id"`
	PaymentStatus string `json:"payment_status"`
}

// POST /api/v1/reservations/{id}/payment
func HandlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	e := engine
	if e == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	scope, err := tenant.ScopeFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := apiutil.ParsePositiveInt64Field(r.PathValue("id"), "id")
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}

	var body callbackRequest
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), paymentQueryTimeout)
	defer cancel()

	updated, err := e.ApplyPaymentStatus(ctx, scope, id, booking.PaymentStatus(body.Status))
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}

	resp := callbackResponse{
		ReservationID: updated.ID,
		PaymentStatus: updated.PaymentStatus,
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write payment response")
	}
}
