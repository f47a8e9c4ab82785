// internal/api/waitlist/handlers.go
package waitlist

import (
	"context"
	"net/http"
	"strconv"
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

const waitlistQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(e *booking.Engine) {
	if e == nil {
		return
	}
	engineOnce.Do(func() {
		engine = e
	})
}

type joinRequest struct {
	CourtID   int64  `json:"court_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`

	ClientID   *int64 `json:"client_id,omitempty"`
	GuestName  string `json:"guest_name,omitempty"`
	GuestPhone string `json:"guest_phone,omitempty"`
}

type entryResponse struct {
	ID        int64  `json:"id"`
	CourtID   int64  `json:"court_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Position  int64  `json:"position"`
	Status    string `json:"status"`
}

// POST /api/v1/waitlist
func HandleWaitlistJoin(w http.ResponseWriter, r *http.Request) {
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

	var body joinRequest
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	date, err := apiutil.ParseDateField(body.Date, "date")
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}
	start, err := apiutil.ParseClockField(date, body.StartTime, "start_time")
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}
	end, err := apiutil.ParseClockField(date, body.EndTime, "end_time")
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}

	requester := body.GuestPhone
	if body.ClientID != nil {
		requester = "client:" + strconv.FormatInt(*body.ClientID, 10)
	}
	if !apiutil.EnforceBookingLimit(w, r, requester) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), waitlistQueryTimeout)
	defer cancel()

	entry, err := e.Waitlist().Enqueue(ctx, scope, booking.EnqueueRequest{
		CourtID: body.CourtID,
		Start:   start,
		End:     end,
		Source: booking.BookingSource{
			ClientID:   body.ClientID,
			GuestName:  body.GuestName,
			GuestPhone: body.GuestPhone,
		},
	})
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}
	apiutil.RecordBookingWrite(r, requester)

	resp := entryResponse{
		ID:        entry.ID,
		CourtID:   entry.CourtID,
		Date:      entry.Date,
		StartTime: entry.StartTime,
		EndTime:   entry.EndTime,
		Position:  entry.Position,
		Status:    entry.Status,
	}
	if err := apiutil.WriteJSON(w, http.StatusCreated, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write waitlist response")
	}
}

// DELETE /api/v1/waitlist/{id}
func HandleWaitlistWithdraw(w http.ResponseWriter, r *http.Request) {
	e := engine
	if e == nil {
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

	ctx, cancel := context.WithTimeout(r.Context(), waitlistQueryTimeout)
	defer cancel()

	if err := e.Waitlist().Withdraw(ctx, scope, id); err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
