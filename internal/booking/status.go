// internal/booking/status.go
package booking

// Status is a reservation's lifecycle state. Cancellation and no-show are
// explicit terminal states, never flags; rows are kept for audit and refund
// history.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Live reports whether the reservation still holds its interval.
func (s Status) Live() bool {
	return s == StatusPending || s == StatusConfirmed
}

// PaymentStatus tracks the external payment collaborator's view. It never
// influences Status; the gateway callback reconciles it later.
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentPaid          PaymentStatus = "paid"
	PaymentRefunded      PaymentStatus = "refunded"
	PaymentPartialRefund PaymentStatus = "partial_refund"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentRefunded, PaymentPartialRefund:
		return true
	}
	return false
}

// WaitlistStatus is a waitlist entry's state.
type WaitlistStatus string

const (
	WaitlistQueued    WaitlistStatus = "queued"
	WaitlistPromoted  WaitlistStatus = "promoted"
	WaitlistExpired   WaitlistStatus = "expired"
	WaitlistWithdrawn WaitlistStatus = "withdrawn"
)
