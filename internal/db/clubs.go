// internal/db/clubs.go
package db

import (
	"context"
	"time"
)

type Club struct {
	ID                     int64
	OrganizationID         int64
	Name                   string
	Slug                   string
	Timezone               string
	SlotGranularityMinutes int64
	CreatedAt              time.Time
}

type Court struct {
	ID               int64
	ClubID           int64
	OrganizationID   int64
	Name             string
	HourlyPriceCents int64
	Active           bool
	CreatedAt        time.Time
}

type OperatingHours struct {
	ID        int64
	CourtID   int64
	DayOfWeek int64
	OpensAt   string
	ClosesAt  string
}

type Blackout struct {
	ID       int64
	CourtID  int64
	StartsAt string
	EndsAt   string
	Reason   string
}

type GetClubParams struct {
	ID             int64
	OrganizationID int64
}

func (q *Queries) GetClub(ctx context.Context, arg GetClubParams) (Club, error) {
	const query = `
SELECT id, organization_id, name, slug, timezone, slot_granularity_minutes, created_at
FROM clubs
WHERE id = ? AND organization_id = ?`
	var c Club
	err := q.db.QueryRowContext(ctx, query, arg.ID, arg.OrganizationID).Scan(
		&c.ID, &c.OrganizationID, &c.Name, &c.Slug, &c.Timezone,
		&c.SlotGranularityMinutes, &c.CreatedAt,
	)
	return c, err
}

type GetCourtParams struct {
	ID             int64
	ClubID         int64
	OrganizationID int64
}

func (q *Queries) GetCourt(ctx context.Context, arg GetCourtParams) (Court, error) {
	const query = `
SELECT id, club_id, organization_id, name, hourly_price_cents, active, created_at
FROM courts
WHERE id = ? AND club_id = ? AND organization_id = ?`
	var c Court
	err := q.db.QueryRowContext(ctx, query, arg.ID, arg.ClubID, arg.OrganizationID).Scan(
		&c.ID, &c.ClubID, &c.OrganizationID, &c.Name, &c.HourlyPriceCents,
		&c.Active, &c.CreatedAt,
	)
	return c, err
}

type ListCourtsParams struct {
	ClubID         int64
	OrganizationID int64
}

func (q *Queries) ListCourts(ctx context.Context, arg ListCourtsParams) ([]Court, error) {
	const query = `
SELECT id, club_id, organization_id, name, hourly_price_cents, active, created_at
FROM courts
WHERE club_id = ? AND organization_id = ?
ORDER BY id`
	rows, err := q.db.QueryContext(ctx, query, arg.ClubID, arg.OrganizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courts []Court
	for rows.Next() {
		var c Court
		if err := rows.Scan(
			&c.ID, &c.ClubID, &c.OrganizationID, &c.Name, &c.HourlyPriceCents,
			&c.Active, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		courts = append(courts, c)
	}
	return courts, rows.Err()
}

type GetOperatingHoursParams struct {
	CourtID   int64
	DayOfWeek int64
}

func (q *Queries) GetOperatingHours(ctx context.Context, arg GetOperatingHoursParams) (OperatingHours, error) {
	const query = `
SELECT id, court_id, day_of_week, opens_at, closes_at
FROM operating_hours
WHERE court_id = ? AND day_of_week = ?`
	var h OperatingHours
	err := q.db.QueryRowContext(ctx, query, arg.CourtID, arg.DayOfWeek).Scan(
		&h.ID, &h.CourtID, &h.DayOfWeek, &h.OpensAt, &h.ClosesAt,
	)
	return h, err
}

type UpsertOperatingHoursParams struct {
	CourtID   int64
	DayOfWeek int64
	OpensAt   string
	ClosesAt  string
}

func (q *Queries) UpsertOperatingHours(ctx context.Context, arg UpsertOperatingHoursParams) (OperatingHours, error) {
	const query = `
INSERT INTO operating_hours (court_id, day_of_week, opens_at, closes_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (court_id, day_of_week) DO UPDATE SET opens_at = excluded.opens_at, closes_at = excluded.closes_at
RETURNING id, court_id, day_of_week, opens_at, closes_at`
	var h OperatingHours
	err := q.db.QueryRowContext(ctx, query, arg.CourtID, arg.DayOfWeek, arg.OpensAt, arg.ClosesAt).Scan(
		&h.ID, &h.CourtID, &h.DayOfWeek, &h.OpensAt, &h.ClosesAt,
	)
	return h, err
}

type ListBlackoutsParams struct {
	CourtID      int64
	EndsAfter    string
	StartsBefore string
}

// ListBlackouts returns blackouts overlapping the half-open window
// [EndsAfter, StartsBefore).
func (q *Queries) ListBlackouts(ctx context.Context, arg ListBlackoutsParams) ([]Blackout, error) {
	const query = `
SELECT id, court_id, starts_at, ends_at, reason
FROM blackouts
WHERE court_id = ? AND ends_at > ? AND starts_at < ?
ORDER BY starts_at`
	rows, err := q.db.QueryContext(ctx, query, arg.CourtID, arg.EndsAfter, arg.StartsBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blackouts []Blackout
	for rows.Next() {
		var b Blackout
		if err := rows.Scan(&b.ID, &b.CourtID, &b.StartsAt, &b.EndsAt, &b.Reason); err != nil {
			return nil, err
		}
		blackouts = append(blackouts, b)
	}
	return blackouts, rows.Err()
}

type CreateBlackoutParams struct {
	CourtID  int64
	StartsAt string
	EndsAt   string
	Reason   string
}

func (q *Queries) CreateBlackout(ctx context.Context, arg CreateBlackoutParams) (Blackout, error) {
	const query = `
INSERT INTO blackouts (court_id, starts_at, ends_at, reason)
VALUES (?, ?, ?, ?)
RETURNING id, court_id, starts_at, ends_at, reason`
	var b Blackout
	err := q.db.QueryRowContext(ctx, query, arg.CourtID, arg.StartsAt, arg.EndsAt, arg.Reason).Scan(
		&b.ID, &b.CourtID, &b.StartsAt, &b.EndsAt, &b.Reason,
	)
	return b, err
}
