package availability

// NOTE: Tests cannot use t.Parallel() due to shared package state.

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/openclub/courtbook/internal/booking"
	"github.com/openclub/courtbook/internal/tenant"
	"github.com/openclub/courtbook/internal/testutil"
)

func setupAvailabilityTest(t *testing.T) testutil.Fixture {
	t.Helper()

	database := testutil.NewTestDB(t)
	fixture := testutil.SeedFixture(t, database)

	e, err := booking.NewEngine(database, nil, booking.EngineConfig{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	engine = nil
	engineOnce = sync.Once{}
	InitHandlers(e)
	t.Cleanup(func() {
		engine = nil
		engineOnce = sync.Once{}
	})

	return fixture
}

func availabilityRequest(t *testing.T, fixture testutil.Fixture, query string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability?"+query, nil)
	return req.WithContext(tenant.ContextWithScope(req.Context(), fixture.Scope))
}

func TestHandleAvailability(t *testing.T) {
	fixture := setupAvailabilityTest(t)

	query := "court_id=" + strconv.FormatInt(fixture.CourtID, 10) + "&date=2026-01-07&duration_minutes=60"
	rec := httptest.NewRecorder()
	HandleAvailability(rec, availabilityRequest(t, fixture, query))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp availabilityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Date != "2026-01-07" {
		t.Errorf("date = %q, want 2026-01-07", resp.Date)
	}
	// 08:00-22:00 on a 30 minute grid leaves 27 one-hour starts.
	if len(resp.Slots) != 27 {
		t.Fatalf("slots = %d, want 27", len(resp.Slots))
	}
	if resp.Slots[0].StartTime != "08:00" || resp.Slots[0].EndTime != "09:00" {
		t.Errorf("first slot = %s-%s, want 08:00-09:00", resp.Slots[0].StartTime, resp.Slots[0].EndTime)
	}
	for _, slot := range resp.Slots {
		if !slot.Available {
			t.Errorf("slot %s unavailable on an empty day", slot.StartTime)
		}
	}
}

func TestHandleAvailabilityMarksBookedSlots(t *testing.T) {
	fixture := setupAvailabilityTest(t)

	createReservation(t, fixture, "2026-01-07", "09:00", "10:00")

	query := "court_id=" + strconv.FormatInt(fixture.CourtID, 10) + "&date=2026-01-07&duration_minutes=60"
	rec := httptest.NewRecorder()
	HandleAvailability(rec, availabilityRequest(t, fixture, query))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp availabilityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	byStart := map[string]bool{}
	for _, slot := range resp.Slots {
		byStart[slot.StartTime] = slot.Available
	}
	for _, start := range []string{"08:30", "09:00", "09:30"} {
		if byStart[start] {
			t.Errorf("slot %s available, want taken", start)
		}
	}
	for _, start := range []string{"08:00", "10:00"} {
		if !byStart[start] {
			t.Errorf("slot %s taken, want available", start)
		}
	}
}

func TestHandleAvailabilityValidation(t *testing.T) {
	fixture := setupAvailabilityTest(t)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"missing court", "date=2026-01-07", http.StatusBadRequest},
		{"bad date", "court_id=" + strconv.FormatInt(fixture.CourtID, 10) + "&date=today", http.StatusBadRequest},
		{"unknown court", "court_id=9999&date=2026-01-07", http.StatusNotFound},
		{"unaligned duration", "court_id=" + strconv.FormatInt(fixture.CourtID, 10) + "&date=2026-01-07&duration_minutes=45", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleAvailability(rec, availabilityRequest(t, fixture, tt.query))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestHandleAvailabilityMissingScope(t *testing.T) {
	fixture := setupAvailabilityTest(t)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/availability?court_id="+strconv.FormatInt(fixture.CourtID, 10)+"&date=2026-01-07", nil)
	rec := httptest.NewRecorder()
	HandleAvailability(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func createReservation(t *testing.T, fixture testutil.Fixture, date, start, end string) {
	t.Helper()

	parse := func(clock string) time.Time {
		parsed, err := time.ParseInLocation(booking.DateTimeLayout, date+"T"+clock, time.Local)
		if err != nil {
			t.Fatalf("parse %q: %v", clock, err)
		}
		return parsed
	}
	if _, err := engine.Reserve(context.Background(), fixture.Scope, booking.ReserveRequest{
		CourtID: fixture.CourtID,
		Start:   parse(start),
		End:     parse(end),
		Source:  booking.BookingSource{GuestName: "Jordan Lee", GuestPhone: "+12125550145"},
	}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
}
