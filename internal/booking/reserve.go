// internal/booking/reserve.go
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclub/courtbook/internal/db"
	"github.com/openclub/courtbook/internal/events"
	"github.com/openclub/courtbook/internal/tenant"
)

// EngineConfig carries the club-independent knobs an Engine needs.
type EngineConfig struct {
	// DefaultPolicy is the cancellation descriptor used when a request does
	// not name one. Empty means DefaultPolicy.
	DefaultPolicy string
	// PhoneRegion is the default region for guest phone validation.
	PhoneRegion string
	// DefaultGranularityMinutes is the slot grid for clubs that carry no
	// granularity of their own. Zero means 30 minutes.
	DefaultGranularityMinutes int
	// Rules are the club's recurring price adjustments (peak hours).
	Rules []PriceRule
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Engine is the booking core: it owns the reservation lifecycle and wires the
// calendar, availability, pricing, policy, and waitlist pieces together. All
// writes go through it.
type Engine struct {
	store         *db.DB
	calendar      *Calendar
	availability  *Availability
	waitlist      *Waitlist
	emitter       events.Emitter
	defaultPolicy Policy
	rules         []PriceRule
	phoneRegion   string
	now           func() time.Time
}

func NewEngine(store *db.DB, emitter events.Emitter, cfg EngineConfig) (*Engine, error) {
	descriptor := cfg.DefaultPolicy
	if descriptor == "" {
		descriptor = DefaultPolicy
	}
	policy, err := ParsePolicy(descriptor)
	if err != nil {
		return nil, fmt.Errorf("default cancellation policy: %w", err)
	}

	region := cfg.PhoneRegion
	if region == "" {
		region = "US"
	}
	clock := cfg.Now
	if clock == nil {
		clock = time.Now
	}
	if emitter == nil {
		emitter = events.LogEmitter{}
	}

	calendar := NewCalendar(store.Queries, time.Duration(cfg.DefaultGranularityMinutes)*time.Minute)
	engine := &Engine{
		store:         store,
		calendar:      calendar,
		availability:  NewAvailability(store.Queries, calendar),
		emitter:       emitter,
		defaultPolicy: policy,
		rules:         cfg.Rules,
		phoneRegion:   region,
		now:           clock,
	}
	engine.waitlist = &Waitlist{engine: engine}
	return engine, nil
}

func (e *Engine) Calendar() *Calendar         { return e.calendar }
func (e *Engine) Availability() *Availability { return e.availability }
func (e *Engine) Waitlist() *Waitlist         { return e.waitlist }

// ReserveRequest describes one slot to book.
type ReserveRequest struct {
	CourtID int64
	Start   time.Time
	End     time.Time
	Source  BookingSource

	ReservationType    string
	PartySize          int64
	GuestCount         int64
	SpecialPriceCents  *int64
	DiscountPercentage float64
	DiscountReason     string
	IsSplitPayment     bool
	SplitCount         *int64
	PaymentMethod      string

	// CancellationPolicy overrides the engine default, descriptor form.
	CancellationPolicy string

	recurrenceID sql.NullInt64
	parentID     sql.NullInt64
}

func (r *ReserveRequest) normalize() {
	if r.ReservationType == "" {
		r.ReservationType = "standard"
	}
	if r.PartySize <= 0 {
		r.PartySize = 1
	}
}

// Reserve books one slot. The open-window and overlap checks up front give
// precise errors; the slot-table insert inside the transaction is what makes
// the no-overlap guarantee hold under concurrency.
func (e *Engine) Reserve(ctx context.Context, scope tenant.Scope, req ReserveRequest) (*db.Reservation, error) {
	req.normalize()
	if err := req.Source.Validate(e.phoneRegion); err != nil {
		return nil, err
	}

	// Request times are wall clock; anchor them in the club's zone so the
	// cancellation deadline and the sweeps compare against the right instant.
	loc, err := e.calendar.Location(ctx, scope)
	if err != nil {
		return nil, err
	}
	req.Start = rebase(req.Start, loc)
	req.End = rebase(req.End, loc)

	court, granularity, err := e.admit(ctx, scope, req.CourtID, req.Start, req.End)
	if err != nil {
		return nil, err
	}

	policy, descriptor, err := e.resolvePolicy(req.CancellationPolicy)
	if err != nil {
		return nil, err
	}

	quote, err := QuotePrice(QuoteInput{
		HourlyPriceCents:   court.HourlyPriceCents,
		Start:              req.Start,
		End:                req.End,
		Granularity:        granularity,
		SpecialPriceCents:  req.SpecialPriceCents,
		DiscountPercentage: req.DiscountPercentage,
		Rules:              e.rules,
	})
	if err != nil {
		return nil, err
	}

	var created db.Reservation
	err = e.store.RunInTx(ctx, func(txDB *db.DB) error {
		var txErr error
		created, txErr = e.insertReservation(ctx, txDB.Queries, scope, req, quote, policy, descriptor, granularity)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	e.emitter.Emit(ctx, events.New(events.KindReservationConfirmed, map[string]any{
		"reservation_id": created.ID,
		"court_id":       created.CourtID,
		"date":           created.Date,
		"start_time":     created.StartTime,
		"end_time":       created.EndTime,
		"price_cents":    created.PriceCents,
	}))
	return &created, nil
}

// admit runs the shared pre-checks: court exists and is active, the interval
// is well formed and granularity-aligned, and it lies inside the open
// calendar. An interval inside the raw weekday window but removed by a
// blackout reports ErrBlackout rather than ErrOutsideOperatingHours.
func (e *Engine) admit(ctx context.Context, scope tenant.Scope, courtID int64, start, end time.Time) (db.Court, time.Duration, error) {
	court, err := e.calendar.Court(ctx, scope, courtID)
	if err != nil {
		return db.Court{}, 0, err
	}
	granularity, err := e.calendar.Granularity(ctx, scope)
	if err != nil {
		return db.Court{}, 0, err
	}

	requested := Interval{Start: start, End: end}
	if requested.Empty() {
		return db.Court{}, 0, fmt.Errorf("start must precede end: %w", ErrInvalidInterval)
	}
	if !midnightOf(start).Equal(midnightOf(end)) && !end.Equal(midnightOf(start).Add(24*time.Hour)) {
		return db.Court{}, 0, fmt.Errorf("reservation must not cross midnight: %w", ErrInvalidInterval)
	}
	if !requested.AlignedTo(granularity) {
		return db.Court{}, 0, fmt.Errorf("interval not aligned to %s grid: %w", granularity, ErrInvalidInterval)
	}

	raw, open, err := e.calendar.operatingWindow(ctx, scope, courtID, start)
	if err != nil {
		return db.Court{}, 0, err
	}
	if !open || !raw.Contains(requested) {
		return db.Court{}, 0, fmt.Errorf("%s-%s on %s: %w",
			start.Format(TimeLayout), end.Format(TimeLayout), start.Format(DateLayout), ErrOutsideOperatingHours)
	}

	windows, err := e.calendar.OpenWindows(ctx, scope, courtID, start)
	if err != nil {
		return db.Court{}, 0, err
	}
	if !containedInAny(requested, windows) {
		return db.Court{}, 0, fmt.Errorf("%s-%s on %s: %w",
			start.Format(TimeLayout), end.Format(TimeLayout), start.Format(DateLayout), ErrBlackout)
	}
	return court, granularity, nil
}

// insertReservation writes the reservation row and claims every granularity
// step in reservation_slots. A primary-key collision on any step means a live
// reservation already overlaps; the transaction rolls back and the caller
// sees ErrSlotUnavailable.
func (e *Engine) insertReservation(ctx context.Context, q *db.Queries, scope tenant.Scope, req ReserveRequest, quote Quote, policy Policy, descriptor string, granularity time.Duration) (db.Reservation, error) {
	deadline := sql.NullString{}
	if len(policy) > 0 {
		deadline = sql.NullString{String: policy.Deadline(req.Start).Format(DateTimeLayout), Valid: true}
	}

	var splitCount sql.NullInt64
	if req.SplitCount != nil {
		splitCount = sql.NullInt64{Int64: *req.SplitCount, Valid: true}
	}
	var paymentMethod sql.NullString
	if req.PaymentMethod != "" {
		paymentMethod = sql.NullString{String: req.PaymentMethod, Valid: true}
	}
	var discountReason sql.NullString
	if req.DiscountReason != "" {
		discountReason = sql.NullString{String: req.DiscountReason, Valid: true}
	}
	var specialPrice sql.NullInt64
	if req.SpecialPriceCents != nil {
		specialPrice = sql.NullInt64{Int64: *req.SpecialPriceCents, Valid: true}
	}

	created, err := q.CreateReservation(ctx, db.CreateReservationParams{
		OrganizationID:       scope.OrganizationID,
		ClubID:               scope.ClubID,
		CourtID:              req.CourtID,
		Date:                 req.Start.Format(DateLayout),
		StartTime:            req.Start.Format(TimeLayout),
		EndTime:              req.End.Format(TimeLayout),
		DurationMinutes:      int64(req.End.Sub(req.Start) / time.Minute),
		Status:               string(StatusConfirmed),
		ReservationType:      req.ReservationType,
		PriceCents:           quote.TotalCents,
		SpecialPriceCents:    specialPrice,
		DiscountPercentage:   req.DiscountPercentage,
		DiscountReason:       discountReason,
		PartySize:            req.PartySize,
		GuestCount:           req.GuestCount,
		ClientID:             req.Source.clientID(),
		GuestName:            req.Source.guestName(),
		GuestPhone:           req.Source.guestPhone(),
		IsSplitPayment:       req.IsSplitPayment,
		SplitCount:           splitCount,
		PaymentMethod:        paymentMethod,
		CancellationPolicy:   descriptor,
		CancellationDeadline: deadline,
		RecurrenceID:         req.recurrenceID,
		ParentReservationID:  req.parentID,
	})
	if err != nil {
		return db.Reservation{}, fmt.Errorf("create reservation: %w", err)
	}

	for step := req.Start; step.Before(req.End); step = step.Add(granularity) {
		err := q.InsertReservationSlot(ctx, db.InsertReservationSlotParams{
			ReservationID: created.ID,
			CourtID:       req.CourtID,
			SlotStart:     step.Format(DateTimeLayout),
		})
		if err != nil {
			if db.IsUniqueViolation(err) {
				return db.Reservation{}, fmt.Errorf("court %d at %s: %w",
					req.CourtID, step.Format(DateTimeLayout), ErrSlotUnavailable)
			}
			return db.Reservation{}, fmt.Errorf("claim slot: %w", err)
		}
	}
	return created, nil
}

// resolvePolicy parses the request override or falls back to the engine
// default, returning both the parsed policy and the descriptor to store.
func (e *Engine) resolvePolicy(override string) (Policy, string, error) {
	if strings.TrimSpace(override) == "" {
		return e.defaultPolicy, e.defaultPolicy.String(), nil
	}
	policy, err := ParsePolicy(override)
	if err != nil {
		return nil, "", fmt.Errorf("cancellation policy: %w: %w", err, ErrInvalidInterval)
	}
	return policy, policy.String(), nil
}

// Cancel ends a live reservation, assesses the fee from the policy frozen at
// booking time, and frees the slots. Cancelling an already-cancelled
// reservation returns the original record unchanged.
func (e *Engine) Cancel(ctx context.Context, scope tenant.Scope, reservationID int64, reason string) (*db.CancellationRecord, error) {
	reservation, err := e.getReservation(ctx, scope, reservationID)
	if err != nil {
		return nil, err
	}

	switch Status(reservation.Status) {
	case StatusCancelled:
		record, err := e.store.Queries.GetCancellationRecordByReservation(ctx, reservation.ID)
		if err != nil {
			return nil, fmt.Errorf("load cancellation record: %w", err)
		}
		return &record, nil
	case StatusCompleted, StatusNoShow:
		return nil, fmt.Errorf("reservation %d is %s: %w", reservation.ID, reservation.Status, ErrCancellationWindowExpired)
	}

	start, err := e.reservationStart(ctx, scope, reservation)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if !now.Before(start) {
		return nil, fmt.Errorf("reservation %d already started: %w", reservation.ID, ErrCancellationWindowExpired)
	}

	policy, err := ParsePolicy(reservation.CancellationPolicy)
	if err != nil {
		return nil, fmt.Errorf("stored cancellation policy %q: %w", reservation.CancellationPolicy, err)
	}
	feeCents, refundCents := policy.Assess(reservation.PriceCents, start, now)

	var record db.CancellationRecord
	err = e.store.RunInTx(ctx, func(txDB *db.DB) error {
		rows, err := txDB.Queries.MarkReservationCancelled(ctx, db.MarkReservationCancelledParams{
			ID:       reservation.ID,
			FeeCents: feeCents,
		})
		if err != nil {
			return fmt.Errorf("mark cancelled: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("reservation %d changed state: %w", reservation.ID, ErrCancellationWindowExpired)
		}
		if err := txDB.Queries.DeleteReservationSlots(ctx, reservation.ID); err != nil {
			return fmt.Errorf("release slots: %w", err)
		}
		record, err = txDB.Queries.CreateCancellationRecord(ctx, db.CreateCancellationRecordParams{
			ReservationID: reservation.ID,
			CancelledAt:   now.In(start.Location()).Format(DateTimeLayout),
			FeeCents:      feeCents,
			RefundCents:   refundCents,
			Reason:        reason,
		})
		if err != nil {
			return fmt.Errorf("record cancellation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.emitter.Emit(ctx, events.New(events.KindReservationCancelled, map[string]any{
		"reservation_id": reservation.ID,
		"court_id":       reservation.CourtID,
		"date":           reservation.Date,
		"start_time":     reservation.StartTime,
		"fee_cents":      feeCents,
		"refund_cents":   refundCents,
	}))

	// Best effort: the cancellation stands even if promotion fails.
	e.promoteAfterRelease(ctx, scope, reservation)

	return &record, nil
}

func (e *Engine) promoteAfterRelease(ctx context.Context, scope tenant.Scope, reservation *db.Reservation) {
	_, err := e.waitlist.PromoteNext(ctx, scope, SlotKey{
		CourtID:   reservation.CourtID,
		Date:      reservation.Date,
		StartTime: reservation.StartTime,
		EndTime:   reservation.EndTime,
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).
			Int64("court_id", reservation.CourtID).
			Str("date", reservation.Date).
			Str("start_time", reservation.StartTime).
			Msg("Waitlist promotion after cancellation failed")
	}
}

// CheckIn marks a confirmed reservation as arrived. Repeating it is an error;
// the front desk should see the double scan.
func (e *Engine) CheckIn(ctx context.Context, scope tenant.Scope, reservationID int64) (*db.Reservation, error) {
	reservation, err := e.getReservation(ctx, scope, reservationID)
	if err != nil {
		return nil, err
	}

	loc, err := e.calendar.Location(ctx, scope)
	if err != nil {
		return nil, err
	}
	rows, err := e.store.Queries.SetReservationCheckedIn(ctx, db.SetReservationCheckedInParams{
		ID:          reservation.ID,
		CheckedInAt: e.now().In(loc).Format(DateTimeLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("check in: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("reservation %d is %s or already checked in: %w",
			reservation.ID, reservation.Status, ErrCheckInNotAllowed)
	}

	updated, err := e.getReservation(ctx, scope, reservationID)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ApplyPaymentStatus records the payment gateway's verdict. Payment state
// never changes reservation status.
func (e *Engine) ApplyPaymentStatus(ctx context.Context, scope tenant.Scope, reservationID int64, status PaymentStatus) (*db.Reservation, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("payment status %q: %w", status, ErrInvalidPaymentStatus)
	}

	reservation, err := e.getReservation(ctx, scope, reservationID)
	if err != nil {
		return nil, err
	}

	if _, err := e.store.Queries.UpdatePaymentStatus(ctx, db.UpdatePaymentStatusParams{
		ID:            reservation.ID,
		PaymentStatus: string(status),
	}); err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	e.emitter.Emit(ctx, events.New(events.KindPaymentUpdated, map[string]any{
		"reservation_id": reservation.ID,
		"payment_status": string(status),
	}))

	updated, err := e.getReservation(ctx, scope, reservationID)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Get returns one reservation in scope.
func (e *Engine) Get(ctx context.Context, scope tenant.Scope, reservationID int64) (*db.Reservation, error) {
	return e.getReservation(ctx, scope, reservationID)
}

// ListForDate returns every reservation on a court for a date, any status.
func (e *Engine) ListForDate(ctx context.Context, scope tenant.Scope, courtID int64, date time.Time) ([]db.Reservation, error) {
	if _, err := e.calendar.Court(ctx, scope, courtID); err != nil {
		return nil, err
	}
	reservations, err := e.store.Queries.ListReservationsForDate(ctx, db.ListReservationsForDateParams{
		CourtID: courtID,
		Date:    date.Format(DateLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return reservations, nil
}

func (e *Engine) getReservation(ctx context.Context, scope tenant.Scope, reservationID int64) (*db.Reservation, error) {
	reservation, err := e.store.Queries.GetReservation(ctx, db.GetReservationParams{
		ID:             reservationID,
		ClubID:         scope.ClubID,
		OrganizationID: scope.OrganizationID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reservation %d: %w", reservationID, ErrNotFound)
		}
		return nil, fmt.Errorf("load reservation: %w", err)
	}
	return &reservation, nil
}

// reservationStart resolves the stored wall-clock start to the instant it
// names in the club's zone.
func (e *Engine) reservationStart(ctx context.Context, scope tenant.Scope, reservation *db.Reservation) (time.Time, error) {
	loc, err := e.calendar.Location(ctx, scope)
	if err != nil {
		return time.Time{}, err
	}
	date, err := time.ParseInLocation(DateLayout, reservation.Date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse reservation date %q: %w", reservation.Date, err)
	}
	return combineDateTime(date, reservation.StartTime)
}
