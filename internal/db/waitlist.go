// internal/db/waitlist.go
package db

import (
	"context"
	"database/sql"
	"time"
)

type WaitlistEntry struct {
	ID             int64
	OrganizationID int64
	ClubID         int64
	CourtID        int64
	Date           string
	StartTime      string
	EndTime        string
	ClientID       sql.NullInt64
	GuestName      sql.NullString
	GuestPhone     sql.NullString
	Position       int64
	Status         string
	CreatedAt      time.Time
}

const waitlistColumns = `
id, organization_id, club_id, court_id, date, start_time, end_time,
client_id, guest_name, guest_phone, position, status, created_at`

func scanWaitlistEntry(row interface{ Scan(dest ...any) error }) (WaitlistEntry, error) {
	var e WaitlistEntry
	err := row.Scan(
		&e.ID, &e.OrganizationID, &e.ClubID, &e.CourtID, &e.Date, &e.StartTime,
		&e.EndTime, &e.ClientID, &e.GuestName, &e.GuestPhone, &e.Position,
		&e.Status, &e.CreatedAt,
	)
	return e, err
}

type WaitlistKeyParams struct {
	CourtID   int64
	Date      string
	StartTime string
	EndTime   string
}

type CreateWaitlistEntryParams struct {
	OrganizationID int64
	ClubID         int64
	CourtID        int64
	Date           string
	StartTime      string
	EndTime        string
	ClientID       sql.NullInt64
	GuestName      sql.NullString
	GuestPhone     sql.NullString
}

// CreateWaitlistEntry appends to the slot's queue. The position subquery runs
// under the insert's write lock, so positions are strictly increasing and
// never reused; MAX is over all statuses.
func (q *Queries) CreateWaitlistEntry(ctx context.Context, arg CreateWaitlistEntryParams) (WaitlistEntry, error) {
	query := `
INSERT INTO waitlist_entries (
    organization_id, club_id, court_id, date, start_time, end_time,
    client_id, guest_name, guest_phone, position
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?,
    (SELECT COALESCE(MAX(position), 0) + 1
     FROM waitlist_entries
     WHERE court_id = ? AND date = ? AND start_time = ? AND end_time = ?))
RETURNING ` + waitlistColumns
	row := q.db.QueryRowContext(ctx, query,
		arg.OrganizationID, arg.ClubID, arg.CourtID, arg.Date, arg.StartTime,
		arg.EndTime, arg.ClientID, arg.GuestName, arg.GuestPhone,
		arg.CourtID, arg.Date, arg.StartTime, arg.EndTime,
	)
	return scanWaitlistEntry(row)
}

func (q *Queries) ListQueuedWaitlistEntries(ctx context.Context, arg WaitlistKeyParams) ([]WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + `
FROM waitlist_entries
WHERE court_id = ? AND date = ? AND start_time = ? AND end_time = ? AND status = 'queued'
ORDER BY position`
	rows, err := q.db.QueryContext(ctx, query, arg.CourtID, arg.Date, arg.StartTime, arg.EndTime)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []WaitlistEntry
	for rows.Next() {
		e, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type GetWaitlistEntryParams struct {
	ID             int64
	ClubID         int64
	OrganizationID int64
}

func (q *Queries) GetWaitlistEntry(ctx context.Context, arg GetWaitlistEntryParams) (WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + `
FROM waitlist_entries
WHERE id = ? AND club_id = ? AND organization_id = ?`
	row := q.db.QueryRowContext(ctx, query, arg.ID, arg.ClubID, arg.OrganizationID)
	return scanWaitlistEntry(row)
}

type UpdateWaitlistStatusParams struct {
	ID     int64
	Status string
}

func (q *Queries) UpdateWaitlistStatus(ctx context.Context, arg UpdateWaitlistStatusParams) (int64, error) {
	const query = `UPDATE waitlist_entries SET status = ? WHERE id = ?`
	result, err := q.db.ExecContext(ctx, query, arg.Status, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
