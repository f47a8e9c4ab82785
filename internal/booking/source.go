// internal/booking/source.go
package booking

import (
	"database/sql"
	"fmt"

	"github.com/nyaruka/phonenumbers"
)

// BookingSource identifies who a reservation or waitlist entry is for:
// either a registered client profile or a walk-in guest. Exactly one must be
// set.
type BookingSource struct {
	ClientID   *int64
	GuestName  string
	GuestPhone string
}

// Validate enforces the client-XOR-guest rule and checks the guest phone
// number for the given region.
func (s BookingSource) Validate(phoneRegion string) error {
	hasClient := s.ClientID != nil
	hasGuest := s.GuestName != "" || s.GuestPhone != ""

	switch {
	case hasClient && hasGuest:
		return fmt.Errorf("client_id and guest contact are mutually exclusive: %w", ErrInvalidBookingSource)
	case !hasClient && !hasGuest:
		return fmt.Errorf("client_id or guest contact is required: %w", ErrInvalidBookingSource)
	case hasClient && *s.ClientID <= 0:
		return fmt.Errorf("client_id must be a positive integer: %w", ErrInvalidBookingSource)
	case hasGuest && s.GuestName == "":
		return fmt.Errorf("guest_name is required for guest bookings: %w", ErrInvalidBookingSource)
	case hasGuest && s.GuestPhone == "":
		return fmt.Errorf("guest_phone is required for guest bookings: %w", ErrInvalidBookingSource)
	}

	if hasGuest {
		number, err := phonenumbers.Parse(s.GuestPhone, phoneRegion)
		if err != nil {
			return fmt.Errorf("guest_phone %q: %w", s.GuestPhone, ErrInvalidBookingSource)
		}
		if !phonenumbers.IsValidNumber(number) {
			return fmt.Errorf("guest_phone %q is not a valid number: %w", s.GuestPhone, ErrInvalidBookingSource)
		}
	}
	return nil
}

func (s BookingSource) clientID() sql.NullInt64 {
	if s.ClientID == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *s.ClientID, Valid: true}
}

func (s BookingSource) guestName() sql.NullString {
	if s.GuestName == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s.GuestName, Valid: true}
}

func (s BookingSource) guestPhone() sql.NullString {
	if s.GuestPhone == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s.GuestPhone, Valid: true}
}

// sourceFromWaitlist rebuilds a BookingSource from a stored waitlist entry.
func sourceFromEntry(clientID sql.NullInt64, guestName, guestPhone sql.NullString) BookingSource {
	var source BookingSource
	if clientID.Valid {
		value := clientID.Int64
		source.ClientID = &value
	}
	source.GuestName = guestName.String
	source.GuestPhone = guestPhone.String
	return source
}
