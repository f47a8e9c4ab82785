// internal/booking/recurrence.go
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclub/courtbook/internal/db"
	"github.com/openclub/courtbook/internal/tenant"
)

// PatternKind names a recurrence cadence.
type PatternKind string

const (
	PatternWeekly   PatternKind = "weekly"
	PatternBiweekly PatternKind = "biweekly"
	PatternMonthly  PatternKind = "monthly"
)

func (k PatternKind) Valid() bool {
	switch k {
	case PatternWeekly, PatternBiweekly, PatternMonthly:
		return true
	}
	return false
}

// maxOccurrences caps how far a series can expand regardless of the bound
// the caller picked.
const maxOccurrences = 52

// Pattern describes a recurrence: a weekday cadence bounded by either a
// fixed occurrence count or an end date, never both.
type Pattern struct {
	Kind    PatternKind
	Weekday time.Weekday
	Count   int64
	Until   time.Time
}

func (p Pattern) Validate() error {
	if !p.Kind.Valid() {
		return fmt.Errorf("pattern kind %q: %w", p.Kind, ErrInvalidInterval)
	}
	if p.Weekday < time.Sunday || p.Weekday > time.Saturday {
		return fmt.Errorf("pattern weekday %d: %w", p.Weekday, ErrInvalidInterval)
	}
	hasCount := p.Count > 0
	hasUntil := !p.Until.IsZero()
	if hasCount == hasUntil {
		return fmt.Errorf("pattern needs exactly one of count or until: %w", ErrInvalidInterval)
	}
	if hasCount && p.Count > maxOccurrences {
		return fmt.Errorf("pattern count %d exceeds %d: %w", p.Count, maxOccurrences, ErrInvalidInterval)
	}
	return nil
}

// Dates expands the pattern into occurrence dates, starting at the first
// matching weekday on or after from. Monthly means the nth weekday of the
// month that the first occurrence falls on; months without that nth weekday
// are skipped.
func (p Pattern) Dates(from time.Time) []time.Time {
	first := midnightOf(from)
	for first.Weekday() != p.Weekday {
		first = first.AddDate(0, 0, 1)
	}

	var dates []time.Time
	keep := func(date time.Time) bool {
		if p.Count > 0 && int64(len(dates)) >= p.Count {
			return false
		}
		if !p.Until.IsZero() && date.After(midnightOf(p.Until)) {
			return false
		}
		if len(dates) >= maxOccurrences {
			return false
		}
		dates = append(dates, date)
		return true
	}

	switch p.Kind {
	case PatternWeekly, PatternBiweekly:
		step := 7
		if p.Kind == PatternBiweekly {
			step = 14
		}
		for date := first; keep(date); date = date.AddDate(0, 0, step) {
		}
	case PatternMonthly:
		nth := (first.Day()-1)/7 + 1
		for month := 0; ; month++ {
			anchor := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, first.Location()).AddDate(0, month, 0)
			date, ok := nthWeekdayOfMonth(anchor, p.Weekday, nth)
			if !ok {
				// A fifth-Tuesday pattern skips months with only four.
				if bound := boundExceeded(dates, p, anchor); bound {
					return dates
				}
				continue
			}
			if date.Before(first) {
				continue
			}
			if !keep(date) {
				return dates
			}
		}
	}
	return dates
}

// nthWeekdayOfMonth finds the nth weekday within anchor's month. ok is false
// when the month has no nth occurrence of that weekday.
func nthWeekdayOfMonth(anchor time.Time, weekday time.Weekday, nth int) (time.Time, bool) {
	date := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location())
	for date.Weekday() != weekday {
		date = date.AddDate(0, 0, 1)
	}
	date = date.AddDate(0, 0, (nth-1)*7)
	if date.Month() != anchor.Month() {
		return time.Time{}, false
	}
	return date, true
}

// boundExceeded stops the monthly loop once a skipped month falls past the
// until bound, so an until-only pattern cannot iterate forever.
func boundExceeded(dates []time.Time, p Pattern, anchor time.Time) bool {
	if len(dates) >= maxOccurrences {
		return true
	}
	if p.Count > 0 && int64(len(dates)) >= p.Count {
		return true
	}
	if !p.Until.IsZero() && anchor.After(midnightOf(p.Until)) {
		return true
	}
	return false
}

// OccurrenceResult reports the outcome for one expanded date.
type OccurrenceResult struct {
	Date          time.Time
	ReservationID int64
	Booked        bool
	Reason        string
}

// SeriesResult is the full per-date report of a recurrence expansion.
type SeriesResult struct {
	SeriesID    int64
	Occurrences []OccurrenceResult
	Confirmed   int
	Conflicts   int
}

// ReserveSeries expands the pattern from the template's date and books each
// occurrence independently. Conflicting dates never roll back their booked
// siblings; when any occurrence fails the whole report travels back inside a
// PartialConflictError.
func (e *Engine) ReserveSeries(ctx context.Context, scope tenant.Scope, req ReserveRequest, pattern Pattern) (*SeriesResult, error) {
	req.normalize()
	if err := req.Source.Validate(e.phoneRegion); err != nil {
		return nil, err
	}
	if err := pattern.Validate(); err != nil {
		return nil, err
	}
	if (Interval{Start: req.Start, End: req.End}).Empty() {
		return nil, fmt.Errorf("start must precede end: %w", ErrInvalidInterval)
	}

	dates := pattern.Dates(req.Start)
	if len(dates) == 0 {
		return nil, fmt.Errorf("pattern expands to no occurrences: %w", ErrInvalidInterval)
	}

	var count sql.NullInt64
	if pattern.Count > 0 {
		count = sql.NullInt64{Int64: pattern.Count, Valid: true}
	}
	var until sql.NullString
	if !pattern.Until.IsZero() {
		until = sql.NullString{String: pattern.Until.Format(DateLayout), Valid: true}
	}
	series, err := e.store.Queries.CreateRecurrenceSeries(ctx, db.CreateRecurrenceSeriesParams{
		OrganizationID:  scope.OrganizationID,
		ClubID:          scope.ClubID,
		CourtID:         req.CourtID,
		PatternKind:     string(pattern.Kind),
		Weekday:         int64(pattern.Weekday),
		OccurrenceCount: count,
		UntilDate:       until,
		StartTime:       req.Start.Format(TimeLayout),
		EndTime:         req.End.Format(TimeLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("create recurrence series: %w", err)
	}

	result := &SeriesResult{SeriesID: series.ID}
	var parentID sql.NullInt64
	for _, date := range dates {
		occurrence := req
		occurrence.Start = combineClock(date, req.Start)
		occurrence.End = combineClock(date, req.End)
		occurrence.recurrenceID = sql.NullInt64{Int64: series.ID, Valid: true}
		occurrence.parentID = parentID

		created, err := e.Reserve(ctx, scope, occurrence)
		switch {
		case err == nil:
			if !parentID.Valid {
				parentID = sql.NullInt64{Int64: created.ID, Valid: true}
			}
			result.Occurrences = append(result.Occurrences, OccurrenceResult{
				Date:          date,
				ReservationID: created.ID,
				Booked:        true,
			})
			result.Confirmed++
		case errors.Is(err, ErrSlotUnavailable),
			errors.Is(err, ErrOutsideOperatingHours),
			errors.Is(err, ErrBlackout):
			result.Occurrences = append(result.Occurrences, OccurrenceResult{
				Date:   date,
				Reason: conflictReason(err),
			})
			result.Conflicts++
		default:
			return nil, err
		}
	}

	if result.Conflicts > 0 {
		return nil, &PartialConflictError{Result: result}
	}
	return result, nil
}

func conflictReason(err error) string {
	switch {
	case errors.Is(err, ErrSlotUnavailable):
		return "slot unavailable"
	case errors.Is(err, ErrBlackout):
		return "blackout"
	case errors.Is(err, ErrOutsideOperatingHours):
		return "outside operating hours"
	}
	return err.Error()
}

// combineClock places req's clock time on the occurrence date.
func combineClock(date, clock time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), 0, 0, date.Location())
}

// SeriesCancelResult lists which occurrences a series cancellation touched.
type SeriesCancelResult struct {
	SeriesID  int64
	Cancelled []int64
	Skipped   []int64
}

// CancelSeries cancels every remaining live occurrence of a series, today or
// later. Past, completed, and already-cancelled occurrences are left alone.
func (e *Engine) CancelSeries(ctx context.Context, scope tenant.Scope, seriesID int64, reason string) (*SeriesCancelResult, error) {
	series, err := e.store.Queries.GetRecurrenceSeries(ctx, db.GetRecurrenceSeriesParams{
		ID:             seriesID,
		ClubID:         scope.ClubID,
		OrganizationID: scope.OrganizationID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("series %d: %w", seriesID, ErrNotFound)
		}
		return nil, fmt.Errorf("load series: %w", err)
	}

	occurrences, err := e.store.Queries.ListSeriesOccurrences(ctx, series.ID)
	if err != nil {
		return nil, fmt.Errorf("list series occurrences: %w", err)
	}

	loc, err := e.calendar.Location(ctx, scope)
	if err != nil {
		return nil, err
	}
	today := midnightOf(e.now().In(loc)).Format(DateLayout)
	result := &SeriesCancelResult{SeriesID: series.ID}
	for _, occurrence := range occurrences {
		if !Status(occurrence.Status).Live() || occurrence.Date < today {
			result.Skipped = append(result.Skipped, occurrence.ID)
			continue
		}
		if _, err := e.Cancel(ctx, scope, occurrence.ID, reason); err != nil {
			log.Ctx(ctx).Warn().Err(err).
				Int64("reservation_id", occurrence.ID).
				Int64("series_id", series.ID).
				Msg("Series occurrence cancellation skipped")
			result.Skipped = append(result.Skipped, occurrence.ID)
			continue
		}
		result.Cancelled = append(result.Cancelled, occurrence.ID)
	}
	return result, nil
}
