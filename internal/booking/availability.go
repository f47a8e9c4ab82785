// internal/booking/availability.go
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/openclub/courtbook/internal/db"
	"github.com/openclub/courtbook/internal/tenant"
)

// Slot is one candidate [Start, End) interval on a court for a date.
type Slot struct {
	Start     time.Time
	End       time.Time
	Available bool
}

// Availability generates the candidate slot grid for a date and marks each
// slot free or taken. Results are a plain recomputable snapshot; the write
// path re-validates, so momentary staleness here is acceptable.
type Availability struct {
	queries  *db.Queries
	calendar *Calendar
}

func NewAvailability(queries *db.Queries, calendar *Calendar) *Availability {
	return &Availability{queries: queries, calendar: calendar}
}

// Slots lists the granularity-aligned candidate slots of the given duration.
// A zero duration lists single-granularity slots.
func (a *Availability) Slots(ctx context.Context, scope tenant.Scope, courtID int64, date time.Time, duration time.Duration) ([]Slot, error) {
	granularity, err := a.calendar.Granularity(ctx, scope)
	if err != nil {
		return nil, err
	}
	if duration == 0 {
		duration = granularity
	}
	if duration < 0 || duration%granularity != 0 {
		return nil, fmt.Errorf("duration %s not aligned to %s: %w", duration, granularity, ErrInvalidDuration)
	}

	windows, err := a.calendar.OpenWindows(ctx, scope, courtID, date)
	if err != nil {
		return nil, err
	}

	taken, err := a.takenIntervals(ctx, courtID, date)
	if err != nil {
		return nil, err
	}

	var slots []Slot
	for _, window := range windows {
		for start := window.Start; !start.Add(duration).After(window.End); start = start.Add(granularity) {
			candidate := Interval{Start: start, End: start.Add(duration)}
			slots = append(slots, Slot{
				Start:     candidate.Start,
				End:       candidate.End,
				Available: !overlapsAny(candidate, taken),
			})
		}
	}
	return slots, nil
}

// IsAvailable answers the single-slot question ConflictResolver asks before
// opening a transaction. It is a pre-check only; the slot table is what
// actually arbitrates races.
func (a *Availability) IsAvailable(ctx context.Context, scope tenant.Scope, courtID int64, start, end time.Time) (bool, error) {
	requested := Interval{Start: start, End: end}
	if requested.Empty() {
		return false, fmt.Errorf("start must precede end: %w", ErrInvalidInterval)
	}

	windows, err := a.calendar.OpenWindows(ctx, scope, courtID, start)
	if err != nil {
		return false, err
	}
	if !containedInAny(requested, windows) {
		return false, nil
	}

	taken, err := a.takenIntervals(ctx, courtID, start)
	if err != nil {
		return false, err
	}
	return !overlapsAny(requested, taken), nil
}

// takenIntervals returns the intervals of pending/confirmed reservations for
// the date.
func (a *Availability) takenIntervals(ctx context.Context, courtID int64, date time.Time) ([]Interval, error) {
	reservations, err := a.queries.ListLiveReservationsForDate(ctx, db.ListReservationsForDateParams{
		CourtID: courtID,
		Date:    date.Format(DateLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}

	intervals := make([]Interval, 0, len(reservations))
	for _, reservation := range reservations {
		start, err := combineDateTime(date, reservation.StartTime)
		if err != nil {
			return nil, fmt.Errorf("parse reservation start %q: %w", reservation.StartTime, err)
		}
		end, err := combineDateTime(date, reservation.EndTime)
		if err != nil {
			return nil, fmt.Errorf("parse reservation end %q: %w", reservation.EndTime, err)
		}
		intervals = append(intervals, Interval{Start: start, End: end})
	}
	return intervals, nil
}

func overlapsAny(candidate Interval, taken []Interval) bool {
	for _, iv := range taken {
		if candidate.Overlaps(iv) {
			return true
		}
	}
	return false
}

func containedInAny(candidate Interval, windows []Interval) bool {
	for _, window := range windows {
		if window.Contains(candidate) {
			return true
		}
	}
	return false
}
