// internal/db/series.go
package db

import (
	"context"
	"database/sql"
	"time"
)

type RecurrenceSeries struct {
	ID              int64
	OrganizationID  int64
	ClubID          int64
	CourtID         int64
	PatternKind     string
	Weekday         int64
	OccurrenceCount sql.NullInt64
	UntilDate       sql.NullString
	StartTime       string
	EndTime         string
	CreatedAt       time.Time
}

type CreateRecurrenceSeriesParams struct {
	OrganizationID  int64
	ClubID          int64
	CourtID         int64
	PatternKind     string
	Weekday         int64
	OccurrenceCount sql.NullInt64
	UntilDate       sql.NullString
	StartTime       string
	EndTime         string
}

func (q *Queries) CreateRecurrenceSeries(ctx context.Context, arg CreateRecurrenceSeriesParams) (RecurrenceSeries, error) {
	const query = `
INSERT INTO recurrence_series (
    organization_id, club_id, court_id, pattern_kind, weekday,
    occurrence_count, until_date, start_time, end_time
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id, organization_id, club_id, court_id, pattern_kind, weekday,
    occurrence_count, until_date, start_time, end_time, created_at`
	var s RecurrenceSeries
	err := q.db.QueryRowContext(ctx, query,
		arg.OrganizationID, arg.ClubID, arg.CourtID, arg.PatternKind,
		arg.Weekday, arg.OccurrenceCount, arg.UntilDate, arg.StartTime,
		arg.EndTime,
	).Scan(
		&s.ID, &s.OrganizationID, &s.ClubID, &s.CourtID, &s.PatternKind,
		&s.Weekday, &s.OccurrenceCount, &s.UntilDate, &s.StartTime,
		&s.EndTime, &s.CreatedAt,
	)
	return s, err
}

type GetRecurrenceSeriesParams struct {
	ID             int64
	ClubID         int64
	OrganizationID int64
}

func (q *Queries) GetRecurrenceSeries(ctx context.Context, arg GetRecurrenceSeriesParams) (RecurrenceSeries, error) {
	const query = `
SELECT id, organization_id, club_id, court_id, pattern_kind, weekday,
    occurrence_count, until_date, start_time, end_time, created_at
FROM recurrence_series
WHERE id = ? AND club_id = ? AND organization_id = ?`
	var s RecurrenceSeries
	err := q.db.QueryRowContext(ctx, query, arg.ID, arg.ClubID, arg.OrganizationID).Scan(
		&s.ID, &s.OrganizationID, &s.ClubID, &s.CourtID, &s.PatternKind,
		&s.Weekday, &s.OccurrenceCount, &s.UntilDate, &s.StartTime,
		&s.EndTime, &s.CreatedAt,
	)
	return s, err
}
