// internal/db/reservations.go
package db

import (
	"context"
	"database/sql"
	"time"
)

type Reservation struct {
	ID                   int64
	OrganizationID       int64
	ClubID               int64
	CourtID              int64
	Date                 string
	StartTime            string
	EndTime              string
	DurationMinutes      int64
	Status               string
	PaymentStatus        string
	ReservationType      string
	PriceCents           int64
	SpecialPriceCents    sql.NullInt64
	DiscountPercentage   float64
	DiscountReason       sql.NullString
	PartySize            int64
	GuestCount           int64
	ClientID             sql.NullInt64
	GuestName            sql.NullString
	GuestPhone           sql.NullString
	IsSplitPayment       bool
	SplitCount           sql.NullInt64
	PaymentMethod        sql.NullString
	CancellationPolicy   string
	CancellationDeadline sql.NullString
	CancellationFeeCents sql.NullInt64
	RecurrenceID         sql.NullInt64
	ParentReservationID  sql.NullInt64
	CheckedInAt          sql.NullString
	CreatedAt            time.Time
}

const reservationColumns = `
id, organization_id, club_id, court_id, date, start_time, end_time,
duration_minutes, status, payment_status, reservation_type, price_cents,
special_price_cents, discount_percentage, discount_reason, party_size,
guest_count, client_id, guest_name, guest_phone, is_split_payment,
split_count, payment_method, cancellation_policy, cancellation_deadline,
cancellation_fee_cents, recurrence_id, parent_reservation_id, checked_in_at,
created_at`

func scanReservation(row interface{ Scan(dest ...any) error }) (Reservation, error) {
	var r Reservation
	err := row.Scan(
		&r.ID, &r.OrganizationID, &r.ClubID, &r.CourtID, &r.Date, &r.StartTime,
		&r.EndTime, &r.DurationMinutes, &r.Status, &r.PaymentStatus,
		&r.ReservationType, &r.PriceCents, &r.SpecialPriceCents,
		&r.DiscountPercentage, &r.DiscountReason, &r.PartySize, &r.GuestCount,
		&r.ClientID, &r.GuestName, &r.GuestPhone, &r.IsSplitPayment,
		&r.SplitCount, &r.PaymentMethod, &r.CancellationPolicy,
		&r.CancellationDeadline, &r.CancellationFeeCents, &r.RecurrenceID,
		&r.ParentReservationID, &r.CheckedInAt, &r.CreatedAt,
	)
	return r, err
}

type CreateReservationParams struct {
	OrganizationID       int64
	ClubID               int64
	CourtID              int64
	Date                 string
	StartTime            string
	EndTime              string
	DurationMinutes      int64
	Status               string
	ReservationType      string
	PriceCents           int64
	SpecialPriceCents    sql.NullInt64
	DiscountPercentage   float64
	DiscountReason       sql.NullString
	PartySize            int64
	GuestCount           int64
	ClientID             sql.NullInt64
	GuestName            sql.NullString
	GuestPhone           sql.NullString
	IsSplitPayment       bool
	SplitCount           sql.NullInt64
	PaymentMethod        sql.NullString
	CancellationPolicy   string
	CancellationDeadline sql.NullString
	RecurrenceID         sql.NullInt64
	ParentReservationID  sql.NullInt64
}

func (q *Queries) CreateReservation(ctx context.Context, arg CreateReservationParams) (Reservation, error) {
	const query = `
INSERT INTO reservations (
    organization_id, club_id, court_id, date, start_time, end_time,
    duration_minutes, status, reservation_type, price_cents,
    special_price_cents, discount_percentage, discount_reason, party_size,
    guest_count, client_id, guest_name, guest_phone, is_split_payment,
    split_count, payment_method, cancellation_policy, cancellation_deadline,
    recurrence_id, parent_reservation_id
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + reservationColumns
	row := q.db.QueryRowContext(ctx, query,
		arg.OrganizationID, arg.ClubID, arg.CourtID, arg.Date, arg.StartTime,
		arg.EndTime, arg.DurationMinutes, arg.Status, arg.ReservationType,
		arg.PriceCents, arg.SpecialPriceCents, arg.DiscountPercentage,
		arg.DiscountReason, arg.PartySize, arg.GuestCount, arg.ClientID,
		arg.GuestName, arg.GuestPhone, arg.IsSplitPayment, arg.SplitCount,
		arg.PaymentMethod, arg.CancellationPolicy, arg.CancellationDeadline,
		arg.RecurrenceID, arg.ParentReservationID,
	)
	return scanReservation(row)
}

type InsertReservationSlotParams struct {
	ReservationID int64
	CourtID       int64
	SlotStart     string
}

// InsertReservationSlot claims one granularity step for a reservation. A
// unique violation here means another live reservation already holds the
// step.
func (q *Queries) InsertReservationSlot(ctx context.Context, arg InsertReservationSlotParams) error {
	const query = `
INSERT INTO reservation_slots (reservation_id, court_id, slot_start)
VALUES (?, ?, ?)`
	_, err := q.db.ExecContext(ctx, query, arg.ReservationID, arg.CourtID, arg.SlotStart)
	return err
}

func (q *Queries) DeleteReservationSlots(ctx context.Context, reservationID int64) error {
	const query = `DELETE FROM reservation_slots WHERE reservation_id = ?`
	_, err := q.db.ExecContext(ctx, query, reservationID)
	return err
}

type GetReservationParams struct {
	ID             int64
	ClubID         int64
	OrganizationID int64
}

func (q *Queries) GetReservation(ctx context.Context, arg GetReservationParams) (Reservation, error) {
	query := `SELECT ` + reservationColumns + `
FROM reservations
WHERE id = ? AND club_id = ? AND organization_id = ?`
	row := q.db.QueryRowContext(ctx, query, arg.ID, arg.ClubID, arg.OrganizationID)
	return scanReservation(row)
}

type ListReservationsForDateParams struct {
	CourtID int64
	Date    string
}

func (q *Queries) ListReservationsForDate(ctx context.Context, arg ListReservationsForDateParams) ([]Reservation, error) {
	query := `SELECT ` + reservationColumns + `
FROM reservations
WHERE court_id = ? AND date = ?
ORDER BY start_time`
	return q.listReservations(ctx, query, arg.CourtID, arg.Date)
}

// ListLiveReservationsForDate returns only reservations that still hold
// their interval (pending or confirmed).
func (q *Queries) ListLiveReservationsForDate(ctx context.Context, arg ListReservationsForDateParams) ([]Reservation, error) {
	query := `SELECT ` + reservationColumns + `
FROM reservations
WHERE court_id = ? AND date = ? AND status IN ('pending', 'confirmed')
ORDER BY start_time`
	return q.listReservations(ctx, query, arg.CourtID, arg.Date)
}

func (q *Queries) ListSeriesOccurrences(ctx context.Context, recurrenceID int64) ([]Reservation, error) {
	query := `SELECT ` + reservationColumns + `
FROM reservations
WHERE recurrence_id = ?
ORDER BY date, start_time`
	return q.listReservations(ctx, query, recurrenceID)
}

func (q *Queries) listReservations(ctx context.Context, query string, args ...any) ([]Reservation, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

type UpdateReservationStatusParams struct {
	ID     int64
	Status string
}

func (q *Queries) UpdateReservationStatus(ctx context.Context, arg UpdateReservationStatusParams) (int64, error) {
	const query = `UPDATE reservations SET status = ? WHERE id = ?`
	result, err := q.db.ExecContext(ctx, query, arg.Status, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// MarkReservationNoShow flips a confirmed, never-checked-in reservation to
// no_show. Zero rows means it was checked in or cancelled since listing.
func (q *Queries) MarkReservationNoShow(ctx context.Context, id int64) (int64, error) {
	const query = `
UPDATE reservations SET status = 'no_show'
WHERE id = ? AND status = 'confirmed' AND checked_in_at IS NULL`
	result, err := q.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// MarkReservationCompleted flips a confirmed reservation to completed.
func (q *Queries) MarkReservationCompleted(ctx context.Context, id int64) (int64, error) {
	const query = `
UPDATE reservations SET status = 'completed'
WHERE id = ? AND status = 'confirmed'`
	result, err := q.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type MarkReservationCancelledParams struct {
	ID       int64
	FeeCents int64
}

func (q *Queries) MarkReservationCancelled(ctx context.Context, arg MarkReservationCancelledParams) (int64, error) {
	const query = `
UPDATE reservations SET status = 'cancelled', cancellation_fee_cents = ?
WHERE id = ? AND status IN ('pending', 'confirmed')`
	result, err := q.db.ExecContext(ctx, query, arg.FeeCents, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type UpdatePaymentStatusParams struct {
	ID            int64
	PaymentStatus string
}

func (q *Queries) UpdatePaymentStatus(ctx context.Context, arg UpdatePaymentStatusParams) (int64, error) {
	const query = `UPDATE reservations SET payment_status = ? WHERE id = ?`
	result, err := q.db.ExecContext(ctx, query, arg.PaymentStatus, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type SetReservationCheckedInParams struct {
	ID          int64
	CheckedInAt string
}

func (q *Queries) SetReservationCheckedIn(ctx context.Context, arg SetReservationCheckedInParams) (int64, error) {
	const query = `
UPDATE reservations SET checked_in_at = ?
WHERE id = ? AND status = 'confirmed' AND checked_in_at IS NULL`
	result, err := q.db.ExecContext(ctx, query, arg.CheckedInAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type ListSweepCandidatesParams struct {
	CutoffAt string
}

// ListNoShowCandidates returns confirmed, never-checked-in reservations whose
// start (plus the sweep's grace) has passed.
func (q *Queries) ListNoShowCandidates(ctx context.Context, arg ListSweepCandidatesParams) ([]Reservation, error) {
	query := `SELECT ` + reservationColumns + `
FROM reservations
WHERE status = 'confirmed' AND checked_in_at IS NULL AND date || 'T' || start_time <= ?
ORDER BY date, start_time`
	return q.listReservations(ctx, query, arg.CutoffAt)
}

// ListCompletableReservations returns confirmed, checked-in reservations whose
// end has passed.
func (q *Queries) ListCompletableReservations(ctx context.Context, arg ListSweepCandidatesParams) ([]Reservation, error) {
	query := `SELECT ` + reservationColumns + `
FROM reservations
WHERE status = 'confirmed' AND checked_in_at IS NOT NULL AND date || 'T' || end_time <= ?
ORDER BY date, start_time`
	return q.listReservations(ctx, query, arg.CutoffAt)
}
