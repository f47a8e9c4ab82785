package payments

// NOTE: Tests cannot use t.Parallel() due to shared package state.

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/openclub/courtbook/internal/booking"
	"github.com/openclub/courtbook/internal/db"
	"github.com/openclub/courtbook/internal/tenant"
	"github.com/openclub/courtbook/internal/testutil"
)

func setupPaymentsTest(t *testing.T) (testutil.Fixture, *db.Reservation) {
	t.Helper()

	database := testutil.NewTestDB(t)
	fixture := testutil.SeedFixture(t, database)

	e, err := booking.NewEngine(database, nil, booking.EngineConfig{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	parse := func(value string) time.Time {
		parsed, err := time.ParseInLocation(booking.DateTimeLayout, value, time.Local)
		if err != nil {
			t.Fatalf("parse %q: %v", value, err)
		}
		return parsed
	}
	created, err := e.Reserve(context.Background(), fixture.Scope, booking.ReserveRequest{
		CourtID: fixture.CourtID,
		Start:   parse("2026-01-07T09:00"),
		End:     parse("2026-01-07T10:00"),
		Source:  booking.BookingSource{GuestName: "Alex Chen", GuestPhone: "+12125550123"},
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	engine = nil
	engineOnce = sync.Once{}
	InitHandlers(e)
	t.Cleanup(func() {
		engine = nil
		engineOnce = sync.Once{}
	})

	return fixture, created
}

func postCallback(t *testing.T, fixture testutil.Fixture, reservationID int64, status string) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	id := strconv.FormatInt(reservationID, 10)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/"+id+"/payment", bytes.NewReader(payload))
	req = req.WithContext(tenant.ContextWithScope(req.Context(), fixture.Scope))
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	HandlePaymentCallback(rec, req)
	return rec
}

func TestHandlePaymentCallback(t *testing.T) {
	fixture, created := setupPaymentsTest(t)

	rec := postCallback(t, fixture, created.ID, "paid")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp callbackResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PaymentStatus != "paid" {
		t.Errorf("payment_status = %q, want paid", resp.PaymentStatus)
	}
	if resp.ReservationID != created.ID {
		t.Errorf("reservation_id = %d, want %d", resp.ReservationID, created.ID)
	}
}

func TestHandlePaymentCallbackRejectsUnknownStatus(t *testing.T) {
	fixture, created := setupPaymentsTest(t)

	rec := postCallback(t, fixture, created.ID, "settled")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlePaymentCallbackUnknownReservation(t *testing.T) {
	fixture, _ := setupPaymentsTest(t)

	rec := postCallback(t, fixture, 424242, "paid")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}
