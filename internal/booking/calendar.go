// internal/booking/calendar.go
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/openclub/courtbook/internal/db"
	"github.com/openclub/courtbook/internal/tenant"
)

const defaultGranularity = 30 * time.Minute

// Calendar resolves a court's bookable windows for a date: the weekday's
// operating window minus any blackout overlap.
type Calendar struct {
	queries             *db.Queries
	fallbackGranularity time.Duration
}

// NewCalendar builds a Calendar. fallback is the slot grid for clubs that
// carry no granularity of their own; zero means 30 minutes.
func NewCalendar(queries *db.Queries, fallback time.Duration) *Calendar {
	if fallback <= 0 {
		fallback = defaultGranularity
	}
	return &Calendar{queries: queries, fallbackGranularity: fallback}
}

// Court loads a court visible in the tenant scope. Courts outside the scope
// and inactive courts are indistinguishable from missing ones.
func (c *Calendar) Court(ctx context.Context, scope tenant.Scope, courtID int64) (db.Court, error) {
	court, err := c.queries.GetCourt(ctx, db.GetCourtParams{
		ID:             courtID,
		ClubID:         scope.ClubID,
		OrganizationID: scope.OrganizationID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.Court{}, fmt.Errorf("court %d: %w", courtID, ErrUnknownResource)
		}
		return db.Court{}, fmt.Errorf("load court: %w", err)
	}
	if !court.Active {
		return db.Court{}, fmt.Errorf("court %d: %w", courtID, ErrUnknownResource)
	}
	return court, nil
}

// Granularity returns the club's slot granularity.
func (c *Calendar) Granularity(ctx context.Context, scope tenant.Scope) (time.Duration, error) {
	club, err := c.queries.GetClub(ctx, db.GetClubParams{
		ID:             scope.ClubID,
		OrganizationID: scope.OrganizationID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("club %d: %w", scope.ClubID, ErrUnknownResource)
		}
		return 0, fmt.Errorf("load club: %w", err)
	}
	if club.SlotGranularityMinutes <= 0 {
		return c.fallbackGranularity, nil
	}
	return time.Duration(club.SlotGranularityMinutes) * time.Minute, nil
}

// Location returns the club's time zone. Reservation datetimes are stored as
// club-local wall clock; this is the zone they resolve against.
func (c *Calendar) Location(ctx context.Context, scope tenant.Scope) (*time.Location, error) {
	club, err := c.queries.GetClub(ctx, db.GetClubParams{
		ID:             scope.ClubID,
		OrganizationID: scope.OrganizationID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("club %d: %w", scope.ClubID, ErrUnknownResource)
		}
		return nil, fmt.Errorf("load club: %w", err)
	}
	if club.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(club.Timezone)
	if err != nil {
		return nil, fmt.Errorf("club %d timezone %q: %w", scope.ClubID, club.Timezone, err)
	}
	return loc, nil
}

// OpenWindows returns the ordered, disjoint open intervals for the date.
// A day without operating hours, or one whose window is fully blacked out,
// yields an empty list.
func (c *Calendar) OpenWindows(ctx context.Context, scope tenant.Scope, courtID int64, date time.Time) ([]Interval, error) {
	window, ok, err := c.operatingWindow(ctx, scope, courtID, date)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	holes, err := c.blackouts(ctx, courtID, date)
	if err != nil {
		return nil, err
	}

	return subtractAll([]Interval{window}, holes), nil
}

// operatingWindow resolves the raw weekday window before blackout
// subtraction. ok is false when the court is closed that weekday.
func (c *Calendar) operatingWindow(ctx context.Context, scope tenant.Scope, courtID int64, date time.Time) (Interval, bool, error) {
	court, err := c.Court(ctx, scope, courtID)
	if err != nil {
		return Interval{}, false, err
	}

	hours, err := c.queries.GetOperatingHours(ctx, db.GetOperatingHoursParams{
		CourtID:   court.ID,
		DayOfWeek: int64(date.Weekday()),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Interval{}, false, nil
		}
		return Interval{}, false, fmt.Errorf("load operating hours: %w", err)
	}

	opens, err := combineDateTime(date, hours.OpensAt)
	if err != nil {
		return Interval{}, false, fmt.Errorf("parse opens_at %q: %w", hours.OpensAt, err)
	}
	closes, err := combineDateTime(date, hours.ClosesAt)
	if err != nil {
		return Interval{}, false, fmt.Errorf("parse closes_at %q: %w", hours.ClosesAt, err)
	}

	window := Interval{Start: opens, End: closes}
	if window.Empty() {
		return Interval{}, false, nil
	}
	return window, true, nil
}

// blackouts returns blackout intervals overlapping the date, clamped to it.
func (c *Calendar) blackouts(ctx context.Context, courtID int64, date time.Time) ([]Interval, error) {
	dayStart := midnightOf(date)
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := c.queries.ListBlackouts(ctx, db.ListBlackoutsParams{
		CourtID:      courtID,
		EndsAfter:    dayStart.Format(DateTimeLayout),
		StartsBefore: dayEnd.Format(DateTimeLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("load blackouts: %w", err)
	}

	intervals := make([]Interval, 0, len(rows))
	for _, row := range rows {
		start, err := time.ParseInLocation(DateTimeLayout, row.StartsAt, date.Location())
		if err != nil {
			return nil, fmt.Errorf("parse blackout start %q: %w", row.StartsAt, err)
		}
		end, err := time.ParseInLocation(DateTimeLayout, row.EndsAt, date.Location())
		if err != nil {
			return nil, fmt.Errorf("parse blackout end %q: %w", row.EndsAt, err)
		}
		intervals = append(intervals, Interval{Start: start, End: end})
	}
	return intervals, nil
}
