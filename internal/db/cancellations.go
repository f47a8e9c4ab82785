// internal/db/cancellations.go
package db

import (
	"context"
)

type CancellationRecord struct {
	ID            int64
	ReservationID int64
	CancelledAt   string
	FeeCents      int64
	RefundCents   int64
	Reason        string
}

type CreateCancellationRecordParams struct {
	ReservationID int64
	CancelledAt   string
	FeeCents      int64
	RefundCents   int64
	Reason        string
}

func (q *Queries) CreateCancellationRecord(ctx context.Context, arg CreateCancellationRecordParams) (CancellationRecord, error) {
	const query = `
INSERT INTO cancellation_records (reservation_id, cancelled_at, fee_cents, refund_cents, reason)
VALUES (?, ?, ?, ?, ?)
RETURNING id, reservation_id, cancelled_at, fee_cents, refund_cents, reason`
	var c CancellationRecord
	err := q.db.QueryRowContext(ctx, query,
		arg.ReservationID, arg.CancelledAt, arg.FeeCents, arg.RefundCents, arg.Reason,
	).Scan(&c.ID, &c.ReservationID, &c.CancelledAt, &c.FeeCents, &c.RefundCents, &c.Reason)
	return c, err
}

func (q *Queries) GetCancellationRecordByReservation(ctx context.Context, reservationID int64) (CancellationRecord, error) {
	const query = `
SELECT id, reservation_id, cancelled_at, fee_cents, refund_cents, reason
FROM cancellation_records
WHERE reservation_id = ?`
	var c CancellationRecord
	err := q.db.QueryRowContext(ctx, query, reservationID).Scan(
		&c.ID, &c.ReservationID, &c.CancelledAt, &c.FeeCents, &c.RefundCents, &c.Reason,
	)
	return c, err
}
