// internal/api/availability/handlers.go
package availability

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

const availabilityQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(e *booking.Engine) {
	if e == nil {
		return
	}
	engineOnce.Do(func() {
		engine = e
	})
}

type slotResponse struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
}

type availabilityResponse struct {
	CourtID int64          `json:"court_id"`
	Date    string         `json:"date"`
	Slots   []slotResponse `json:"slots"`
}

// GET /api/v1/availability?court_id=&date=&duration_minutes=
func HandleAvailability(w http.ResponseWriter, r *http.Request) {
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

	courtID, err := apiutil.ParsePositiveInt64Field(r.URL.Query().Get("court_id"), "court_id")
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}
	date, err := apiutil.ParseDateField(r.URL.Query().Get("date"), "date")
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}
	duration, err := apiutil.ParseDurationMinutesField(r.URL.Query().Get("duration_minutes"), "duration_minutes")
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), availabilityQueryTimeout)
	defer cancel()

	slots, err := e.Availability().Slots(ctx, scope, courtID, date, duration)
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}

	resp := availabilityResponse{
		CourtID: courtID,
		Date:    date.Format("2006-01-02"),
		Slots:   make([]slotResponse, 0, len(slots)),
	}
	for _, slot := range slots {
		resp.Slots = append(resp.Slots, slotResponse{
			StartTime: slot.Start.Format("15:04"),
			EndTime:   slot.End.Format("15:04"),
			Available: slot.Available,
		})
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write availability response")
	}
}
