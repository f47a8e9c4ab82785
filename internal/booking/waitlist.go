// internal/booking/waitlist.go
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclub/courtbook/internal/db"
	"github.com/openclub/courtbook/internal/events"
	"github.com/openclub/courtbook/internal/tenant"
)

const enqueueRetryLimit = 3

// SlotKey identifies the exact slot a waitlist queue hangs off: court, date,
// and the precise start/end strings. Overlapping but different intervals are
// different queues.
type SlotKey struct {
	CourtID   int64
	Date      string // "2006-01-02"
	StartTime string // "15:04"
	EndTime   string
}

// Waitlist manages FIFO queues of would-be holders for full slots. It books
// through the owning Engine, so promoted entries pass the same checks as any
// direct reservation.
type Waitlist struct {
	engine *Engine
}

// EnqueueRequest asks to join the queue for one slot.
type EnqueueRequest struct {
	CourtID int64
	Start   time.Time
	End     time.Time
	Source  BookingSource
}

// Enqueue appends to the slot's queue. Joining a slot that is still free is
// refused; the caller should just book it.
func (w *Waitlist) Enqueue(ctx context.Context, scope tenant.Scope, req EnqueueRequest) (*db.WaitlistEntry, error) {
	if err := req.Source.Validate(w.engine.phoneRegion); err != nil {
		return nil, err
	}
	loc, err := w.engine.calendar.Location(ctx, scope)
	if err != nil {
		return nil, err
	}
	req.Start = rebase(req.Start, loc)
	req.End = rebase(req.End, loc)
	if _, _, err := w.engine.admit(ctx, scope, req.CourtID, req.Start, req.End); err != nil {
		return nil, err
	}

	free, err := w.engine.availability.IsAvailable(ctx, scope, req.CourtID, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if free {
		return nil, fmt.Errorf("court %d at %s is still bookable: %w",
			req.CourtID, req.Start.Format(DateTimeLayout), ErrSlotNotFull)
	}

	params := db.CreateWaitlistEntryParams{
		OrganizationID: scope.OrganizationID,
		ClubID:         scope.ClubID,
		CourtID:        req.CourtID,
		Date:           req.Start.Format(DateLayout),
		StartTime:      req.Start.Format(TimeLayout),
		EndTime:        req.End.Format(TimeLayout),
		ClientID:       req.Source.clientID(),
		GuestName:      req.Source.guestName(),
		GuestPhone:     req.Source.guestPhone(),
	}

	// The insert computes the position itself, but concurrent joiners can
	// still collide on the queue's unique position index; the loser re-reads
	// and takes the next slot.
	for attempt := 0; ; attempt++ {
		entry, err := w.engine.store.Queries.CreateWaitlistEntry(ctx, params)
		if err == nil {
			return &entry, nil
		}
		if !db.IsUniqueViolation(err) || attempt >= enqueueRetryLimit {
			return nil, fmt.Errorf("create waitlist entry: %w", err)
		}
	}
}

// PromoteNext books the slot for the lowest queued position. An entry whose
// booking fails for its own reasons (stale source data, say) is skipped and
// the next is tried; once someone holds the slot the loop stops. Returns the
// promoted reservation, or nil when nobody could be promoted.
func (w *Waitlist) PromoteNext(ctx context.Context, scope tenant.Scope, key SlotKey) (*db.Reservation, error) {
	entries, err := w.engine.store.Queries.ListQueuedWaitlistEntries(ctx, db.WaitlistKeyParams(key))
	if err != nil {
		return nil, fmt.Errorf("list queued entries: %w", err)
	}

	for _, entry := range entries {
		reservation, err := w.promote(ctx, scope, entry, key)
		if err != nil {
			if errors.Is(err, ErrSlotUnavailable) {
				// Someone beat the queue to the slot. Entries stay queued for
				// the next release.
				return nil, nil
			}
			log.Ctx(ctx).Warn().Err(err).
				Int64("waitlist_entry_id", entry.ID).
				Int64("position", entry.Position).
				Msg("Waitlist entry skipped during promotion")
			continue
		}

		w.engine.emitter.Emit(ctx, events.New(events.KindWaitlistPromoted, map[string]any{
			"waitlist_entry_id": entry.ID,
			"reservation_id":    reservation.ID,
			"court_id":          key.CourtID,
			"date":              key.Date,
			"start_time":        key.StartTime,
		}))
		return reservation, nil
	}
	return nil, nil
}

// promote books the entry's slot and marks it promoted in one transaction,
// so a crash cannot leave a booked reservation behind a still-queued entry.
func (w *Waitlist) promote(ctx context.Context, scope tenant.Scope, entry db.WaitlistEntry, key SlotKey) (*db.Reservation, error) {
	loc, err := w.engine.calendar.Location(ctx, scope)
	if err != nil {
		return nil, err
	}
	date, err := time.ParseInLocation(DateLayout, key.Date, loc)
	if err != nil {
		return nil, fmt.Errorf("parse waitlist date %q: %w", key.Date, err)
	}
	start, err := combineDateTime(date, key.StartTime)
	if err != nil {
		return nil, fmt.Errorf("parse waitlist start %q: %w", key.StartTime, err)
	}
	end, err := combineDateTime(date, key.EndTime)
	if err != nil {
		return nil, fmt.Errorf("parse waitlist end %q: %w", key.EndTime, err)
	}

	req := ReserveRequest{
		CourtID: key.CourtID,
		Start:   start,
		End:     end,
		Source:  sourceFromEntry(entry.ClientID, entry.GuestName, entry.GuestPhone),
	}
	req.normalize()

	court, granularity, err := w.engine.admit(ctx, scope, req.CourtID, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	policy, descriptor, err := w.engine.resolvePolicy("")
	if err != nil {
		return nil, err
	}
	// Promotion re-prices at promotion time, not at enqueue time.
	quote, err := QuotePrice(QuoteInput{
		HourlyPriceCents: court.HourlyPriceCents,
		Start:            req.Start,
		End:              req.End,
		Granularity:      granularity,
		Rules:            w.engine.rules,
	})
	if err != nil {
		return nil, err
	}

	var created db.Reservation
	err = w.engine.store.RunInTx(ctx, func(txDB *db.DB) error {
		var txErr error
		created, txErr = w.engine.insertReservation(ctx, txDB.Queries, scope, req, quote, policy, descriptor, granularity)
		if txErr != nil {
			return txErr
		}
		rows, txErr := txDB.Queries.UpdateWaitlistStatus(ctx, db.UpdateWaitlistStatusParams{
			ID:     entry.ID,
			Status: string(WaitlistPromoted),
		})
		if txErr != nil {
			return fmt.Errorf("mark entry promoted: %w", txErr)
		}
		if rows == 0 {
			return fmt.Errorf("waitlist entry %d disappeared: %w", entry.ID, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.engine.emitter.Emit(ctx, events.New(events.KindReservationConfirmed, map[string]any{
		"reservation_id": created.ID,
		"court_id":       created.CourtID,
		"date":           created.Date,
		"start_time":     created.StartTime,
		"end_time":       created.EndTime,
		"price_cents":    created.PriceCents,
	}))
	return &created, nil
}

// Withdraw removes a queued entry from its queue. Withdrawing an entry that
// already left the queue (promoted, expired, or withdrawn before) is a no-op;
// positions of entries behind it never shift.
func (w *Waitlist) Withdraw(ctx context.Context, scope tenant.Scope, entryID int64) error {
	entry, err := w.engine.store.Queries.GetWaitlistEntry(ctx, db.GetWaitlistEntryParams{
		ID:             entryID,
		ClubID:         scope.ClubID,
		OrganizationID: scope.OrganizationID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("waitlist entry %d: %w", entryID, ErrNotFound)
		}
		return fmt.Errorf("load waitlist entry: %w", err)
	}

	if WaitlistStatus(entry.Status) != WaitlistQueued {
		return nil
	}

	if _, err := w.engine.store.Queries.UpdateWaitlistStatus(ctx, db.UpdateWaitlistStatusParams{
		ID:     entry.ID,
		Status: string(WaitlistWithdrawn),
	}); err != nil {
		return fmt.Errorf("withdraw entry: %w", err)
	}
	return nil
}

// Get returns one waitlist entry in scope.
func (w *Waitlist) Get(ctx context.Context, scope tenant.Scope, entryID int64) (*db.WaitlistEntry, error) {
	entry, err := w.engine.store.Queries.GetWaitlistEntry(ctx, db.GetWaitlistEntryParams{
		ID:             entryID,
		ClubID:         scope.ClubID,
		OrganizationID: scope.OrganizationID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("waitlist entry %d: %w", entryID, ErrNotFound)
		}
		return nil, fmt.Errorf("load waitlist entry: %w", err)
	}
	return &entry, nil
}
