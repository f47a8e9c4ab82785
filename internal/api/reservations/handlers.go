// internal/api/reservations/handlers.go
package reservations

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclub/courtbook/internal/api/apiutil"
	"github.com/openclub/courtbook/internal/booking"
	"github.com/openclub/courtbook/internal/db"
	"github.com/openclub/courtbook/internal/tenant"
)

var (
	engine     *booking.Engine
	engineOnce sync.Once
)

const reservationQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(e *booking.Engine) {
	if e == nil {
		return
	}
	engineOnce.Do(func() {
		engine = e
	})
}

func loadEngine() *booking.Engine {
	return engine
}

type createRequest struct {
	CourtID   int64  `json:"court_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`

	ClientID   *int64 `json:"client_id,omitempty"`
	GuestName  string `json:"guest_name,omitempty"`
	GuestPhone string `json:"guest_phone,omitempty"`

	ReservationType    string  `json:"reservation_type,omitempty"`
	PartySize          int64   `json:"party_size,omitempty"`
	GuestCount         int64   `json:"guest_count,omitempty"`
	SpecialPriceCents  *int64  `json:"special_price_cents,omitempty"`
	DiscountPercentage float64 `json:"discount_percentage,omitempty"`
	DiscountReason     string  `json:"discount_reason,omitempty"`
	IsSplitPayment     bool    `json:"is_split_payment,omitempty"`
	SplitCount         *int64  `json:"split_count,omitempty"`
	PaymentMethod      string  `json:"payment_method,omitempty"`
	CancellationPolicy string  `json:"cancellation_policy,omitempty"`

	Recurrence *recurrenceRequest `json:"recurrence,omitempty"`
}

type recurrenceRequest struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count,omitempty"`
	Until string `json:"until,omitempty"`
}

type reservationResponse struct {
	ID                   int64   `json:"id"`
	CourtID              int64   `json:"court_id"`
	Date                 string  `json:"date"`
	StartTime            string  `json:"start_time"`
	EndTime              string  `json:"end_time"`
	DurationMinutes      int64   `json:"duration_minutes"`
	Status               string  `json:"status"`
	PaymentStatus        string  `json:"payment_status"`
	ReservationType      string  `json:"reservation_type"`
	PriceCents           int64   `json:"price_cents"`
	Price                string  `json:"price"`
	PartySize            int64   `json:"party_size"`
	GuestCount           int64   `json:"guest_count"`
	ClientID             *int64  `json:"client_id,omitempty"`
	GuestName            string  `json:"guest_name,omitempty"`
	CancellationPolicy   string  `json:"cancellation_policy"`
	CancellationDeadline string  `json:"cancellation_deadline,omitempty"`
	CancellationFeeCents *int64  `json:"cancellation_fee_cents,omitempty"`
	RecurrenceID         *int64  `json:"recurrence_id,omitempty"`
	CheckedInAt          string  `json:"checked_in_at,omitempty"`
	CreatedAt            string  `json:"created_at"`
}

func toResponse(reservation *db.Reservation) reservationResponse {
	resp := reservationResponse{
		ID:                 reservation.ID,
		CourtID:            reservation.CourtID,
		Date:               reservation.Date,
		StartTime:          reservation.StartTime,
		EndTime:            reservation.EndTime,
		DurationMinutes:    reservation.DurationMinutes,
		Status:             reservation.Status,
		PaymentStatus:      reservation.PaymentStatus,
		ReservationType:    reservation.ReservationType,
		PriceCents:         reservation.PriceCents,
		Price:              apiutil.FormatPriceCents(reservation.PriceCents),
		PartySize:          reservation.PartySize,
		GuestCount:         reservation.GuestCount,
		GuestName:          reservation.GuestName.String,
		CancellationPolicy: reservation.CancellationPolicy,
		CreatedAt:          reservation.CreatedAt.Format(time.RFC3339),
	}
	if reservation.ClientID.Valid {
		value := reservation.ClientID.Int64
		resp.ClientID = &value
	}
	if reservation.CancellationDeadline.Valid {
		resp.CancellationDeadline = reservation.CancellationDeadline.String
	}
	if reservation.CancellationFeeCents.Valid {
		value := reservation.CancellationFeeCents.Int64
		resp.CancellationFeeCents = &value
	}
	if reservation.RecurrenceID.Valid {
		value := reservation.RecurrenceID.Int64
		resp.RecurrenceID = &value
	}
	if reservation.CheckedInAt.Valid {
		resp.CheckedInAt = reservation.CheckedInAt.String
	}
	return resp
}

// POST /api/v1/reservations
func HandleReservationCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	e := loadEngine()
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

	var body createRequest
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req, err := toReserveRequest(body)
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}

	requester := requesterIdentifier(body.ClientID, body.GuestPhone)
	if !apiutil.EnforceBookingLimit(w, r, requester) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	if body.Recurrence != nil {
		handleSeriesCreate(ctx, w, r, e, scope, req, *body.Recurrence)
		apiutil.RecordBookingWrite(r, requester)
		return
	}

	created, err := e.Reserve(ctx, scope, req)
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}
	apiutil.RecordBookingWrite(r, requester)

	if err := apiutil.WriteJSON(w, http.StatusCreated, toResponse(created)); err != nil {
		logger.Error().Err(err).Msg("Failed to write reservation response")
	}
}

// requesterIdentifier keys the rate limiter: client id when present, guest
// phone otherwise.
func requesterIdentifier(clientID *int64, guestPhone string) string {
	if clientID != nil {
		return "client:" + strconv.FormatInt(*clientID, 10)
	}
	return guestPhone
}

func toReserveRequest(body createRequest) (booking.ReserveRequest, error) {
	date, err := apiutil.ParseDateField(body.Date, "date")
	if err != nil {
		return booking.ReserveRequest{}, err
	}
	start, err := apiutil.ParseClockField(date, body.StartTime, "start_time")
	if err != nil {
		return booking.ReserveRequest{}, err
	}
	end, err := apiutil.ParseClockField(date, body.EndTime, "end_time")
	if err != nil {
		return booking.ReserveRequest{}, err
	}

	return booking.ReserveRequest{
		CourtID: body.CourtID,
		Start:   start,
		End:     end,
		Source: booking.BookingSource{
			ClientID:   body.ClientID,
			GuestName:  body.GuestName,
			GuestPhone: body.GuestPhone,
		},
		ReservationType:    body.ReservationType,
		PartySize:          body.PartySize,
		GuestCount:         body.GuestCount,
		SpecialPriceCents:  body.SpecialPriceCents,
		DiscountPercentage: body.DiscountPercentage,
		DiscountReason:     body.DiscountReason,
		IsSplitPayment:     body.IsSplitPayment,
		SplitCount:         body.SplitCount,
		PaymentMethod:      body.PaymentMethod,
		CancellationPolicy: body.CancellationPolicy,
	}, nil
}

type occurrenceResponse struct {
	Date          string `json:"date"`
	ReservationID int64  `json:"reservation_id,omitempty"`
	Booked        bool   `json:"booked"`
	Reason        string `json:"reason,omitempty"`
}

type seriesResponse struct {
	SeriesID    int64                `json:"series_id"`
	Confirmed   int                  `json:"confirmed"`
	Conflicts   int                  `json:"conflicts"`
	Occurrences []occurrenceResponse `json:"occurrences"`
}

func toSeriesResponse(result *booking.SeriesResult) seriesResponse {
	resp := seriesResponse{
		SeriesID:  result.SeriesID,
		Confirmed: result.Confirmed,
		Conflicts: result.Conflicts,
	}
	for _, occurrence := range result.Occurrences {
		resp.Occurrences = append(resp.Occurrences, occurrenceResponse{
			Date:          occurrence.Date.Format("2006-01-02"),
			ReservationID: occurrence.ReservationID,
			Booked:        occurrence.Booked,
			Reason:        occurrence.Reason,
		})
	}
	return resp
}

func handleSeriesCreate(ctx context.Context, w http.ResponseWriter, r *http.Request, e *booking.Engine, scope tenant.Scope, req booking.ReserveRequest, recurrence recurrenceRequest) {
	logger := log.Ctx(r.Context())

	pattern := booking.Pattern{
		Kind:    booking.PatternKind(recurrence.Kind),
		Weekday: req.Start.Weekday(),
		Count:   recurrence.Count,
	}
	if recurrence.Until != "" {
		until, err := apiutil.ParseDateField(recurrence.Until, "recurrence.until")
		if err != nil {
			apiutil.WriteBookingError(w, r, err)
			return
		}
		pattern.Until = until
	}

	result, err := e.ReserveSeries(ctx, scope, req, pattern)
	if err != nil {
		var partial *booking.PartialConflictError
		if errors.As(err, &partial) {
			// Confirmed siblings stay booked; the report says which dates
			// did not make it.
			if err := apiutil.WriteJSON(w, http.StatusConflict, toSeriesResponse(partial.Result)); err != nil {
				logger.Error().Err(err).Msg("Failed to write series conflict response")
			}
			return
		}
		apiutil.WriteBookingError(w, r, err)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusCreated, toSeriesResponse(result)); err != nil {
		logger.Error().Err(err).Msg("Failed to write series response")
	}
}

// GET /api/v1/reservations?court_id=&date=
func HandleReservationList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	e := loadEngine()
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

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	reservations, err := e.ListForDate(ctx, scope, courtID, date)
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}

	responses := make([]reservationResponse, 0, len(reservations))
	for i := range reservations {
		responses = append(responses, toResponse(&reservations[i]))
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"reservations": responses}); err != nil {
		logger.Error().Err(err).Msg("Failed to write reservation list")
	}
}

// GET /api/v1/reservations/{id}
func HandleReservationGet(w http.ResponseWriter, r *http.Request) {
	e := loadEngine()
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

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	reservation, err := e.Get(ctx, scope, id)
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, toResponse(reservation))
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

type cancelResponse struct {
	ReservationID int64  `json:"reservation_id"`
	CancelledAt   string `json:"cancelled_at"`
	FeeCents      int64  `json:"fee_cents"`
	Fee           string `json:"fee"`
	RefundCents   int64  `json:"refund_cents"`
	Refund        string `json:"refund"`
	Reason        string `json:"reason,omitempty"`
}

// POST /api/v1/reservations/{id}/cancel
func HandleReservationCancel(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	e := loadEngine()
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

	var body cancelRequest
	if r.ContentLength > 0 {
		if err := apiutil.DecodeJSON(r, &body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	record, err := e.Cancel(ctx, scope, id, body.Reason)
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}

	resp := cancelResponse{
		ReservationID: record.ReservationID,
		CancelledAt:   record.CancelledAt,
		FeeCents:      record.FeeCents,
		Fee:           apiutil.FormatPriceCents(record.FeeCents),
		RefundCents:   record.RefundCents,
		Refund:        apiutil.FormatPriceCents(record.RefundCents),
		Reason:        record.Reason,
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write cancellation response")
	}
}

// POST /api/v1/reservations/{id}/checkin
func HandleReservationCheckIn(w http.ResponseWriter, r *http.Request) {
	e := loadEngine()
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

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	updated, err := e.CheckIn(ctx, scope, id)
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, toResponse(updated))
}

type seriesCancelResponse struct {
	SeriesID  int64   `json:"series_id"`
	Cancelled []int64 `json:"cancelled"`
	Skipped   []int64 `json:"skipped"`
}

// POST /api/v1/series/{id}/cancel
func HandleSeriesCancel(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	e := loadEngine()
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

	var body cancelRequest
	if r.ContentLength > 0 {
		if err := apiutil.DecodeJSON(r, &body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	result, err := e.CancelSeries(ctx, scope, id, body.Reason)
	if err != nil {
		apiutil.WriteBookingError(w, r, err)
		return
	}

	resp := seriesCancelResponse{
		SeriesID:  result.SeriesID,
		Cancelled: result.Cancelled,
		Skipped:   result.Skipped,
	}
	if resp.Cancelled == nil {
		resp.Cancelled = []int64{}
	}
	if resp.Skipped == nil {
		resp.Skipped = []int64{}
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write series cancel response")
	}
}
