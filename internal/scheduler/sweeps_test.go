package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/openclub/courtbook/internal/booking"
	"github.com/openclub/courtbook/internal/db"
	"github.com/openclub/courtbook/internal/tenant"
	"github.com/openclub/courtbook/internal/testutil"
)

func parseClock(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation(booking.DateTimeLayout, value, time.Local)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return parsed
}

func sweepFixture(t *testing.T, clock string) (*booking.Engine, testutil.Fixture, *db.DB) {
	t.Helper()

	database := testutil.NewTestDB(t)
	fixture := testutil.SeedFixture(t, database)

	now, err := time.ParseInLocation(booking.DateTimeLayout, clock, time.Local)
	if err != nil {
		t.Fatalf("parse clock: %v", err)
	}
	engine, err := booking.NewEngine(database, nil, booking.EngineConfig{
		Now: func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine, fixture, database
}

func newSweeper(t *testing.T, database *db.DB, grace time.Duration, clock string) *Sweeper {
	t.Helper()

	now, err := time.ParseInLocation(booking.DateTimeLayout, clock, time.Local)
	if err != nil {
		t.Fatalf("parse clock: %v", err)
	}
	sweeper := NewSweeper(database, nil, grace)
	sweeper.now = func() time.Time { return now }
	return sweeper
}

func reserve(t *testing.T, engine *booking.Engine, scope tenant.Scope, courtID int64, start, end string) *db.Reservation {
	t.Helper()

	parse := func(value string) time.Time {
		parsed, err := time.ParseInLocation(booking.DateTimeLayout, value, time.Local)
		if err != nil {
			t.Fatalf("parse %q: %v", value, err)
		}
		return parsed
	}
	created, err := engine.Reserve(context.Background(), scope, booking.ReserveRequest{
		CourtID: courtID,
		Start:   parse(start),
		End:     parse(end),
		Source:  booking.BookingSource{GuestName: "Alex Chen", GuestPhone: "+12125550123"},
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	return created
}

func TestMarkNoShows(t *testing.T) {
	engine, fixture, database := sweepFixture(t, "2026-01-07T08:00")
	ctx := context.Background()

	created := reserve(t, engine, fixture.Scope, fixture.CourtID, "2026-01-07T09:00", "2026-01-07T10:00")

	// 09:20 with a 15 minute grace: the 09:00 start is past cutoff.
	sweeper := newSweeper(t, database, 15*time.Minute, "2026-01-07T09:20")
	swept, err := sweeper.MarkNoShows(ctx)
	if err != nil {
		t.Fatalf("MarkNoShows: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	reservation, err := engine.Get(ctx, fixture.Scope, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reservation.Status != string(booking.StatusNoShow) {
		t.Errorf("status = %q, want no_show", reservation.Status)
	}

	// The freed slots are bookable again.
	if _, err := engine.Reserve(ctx, fixture.Scope, booking.ReserveRequest{
		CourtID: fixture.CourtID,
		Start:   parseClock(t, "2026-01-07T09:00"),
		End:     parseClock(t, "2026-01-07T10:00"),
		Source:  booking.BookingSource{GuestName: "Sam Rivera", GuestPhone: "+12125550123"},
	}); err != nil {
		t.Errorf("rebook after no-show = %v, want success", err)
	}
}

func TestMarkNoShowsRespectsGrace(t *testing.T) {
	engine, fixture, database := sweepFixture(t, "2026-01-07T08:00")

	reserve(t, engine, fixture.Scope, fixture.CourtID, "2026-01-07T09:00", "2026-01-07T10:00")

	// 09:10 with a 15 minute grace: cutoff is 08:55, before the start.
	sweeper := newSweeper(t, database, 15*time.Minute, "2026-01-07T09:10")
	swept, err := sweeper.MarkNoShows(context.Background())
	if err != nil {
		t.Fatalf("MarkNoShows: %v", err)
	}
	if swept != 0 {
		t.Errorf("swept = %d, want 0 inside the grace period", swept)
	}
}

func TestMarkNoShowsSkipsCheckedIn(t *testing.T) {
	engine, fixture, database := sweepFixture(t, "2026-01-07T08:55")
	ctx := context.Background()

	created := reserve(t, engine, fixture.Scope, fixture.CourtID, "2026-01-07T09:00", "2026-01-07T10:00")
	if _, err := engine.CheckIn(ctx, fixture.Scope, created.ID); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	sweeper := newSweeper(t, database, 15*time.Minute, "2026-01-07T09:30")
	swept, err := sweeper.MarkNoShows(ctx)
	if err != nil {
		t.Fatalf("MarkNoShows: %v", err)
	}
	if swept != 0 {
		t.Errorf("swept = %d, want 0 for a checked-in reservation", swept)
	}
}

func TestMarkNoShowsUsesClubZone(t *testing.T) {
	engine, fixture, database := sweepFixture(t, "2026-01-07T08:00")
	ctx := context.Background()

	if _, err := database.ExecContext(ctx, `UPDATE clubs SET timezone = 'America/Denver' WHERE id = ?`, fixture.Scope.ClubID); err != nil {
		t.Fatalf("update club: %v", err)
	}

	reserve(t, engine, fixture.Scope, fixture.CourtID, "2026-01-07T09:00", "2026-01-07T10:00")

	// 16:10 UTC is 09:10 in Denver: still inside the 15 minute grace.
	sweeper := NewSweeper(database, nil, 15*time.Minute)
	sweeper.now = func() time.Time { return time.Date(2026, 1, 7, 16, 10, 0, 0, time.UTC) }
	swept, err := sweeper.MarkNoShows(ctx)
	if err != nil {
		t.Fatalf("MarkNoShows: %v", err)
	}
	if swept != 0 {
		t.Fatalf("swept = %d, want 0 inside the club-local grace", swept)
	}

	// 16:20 UTC is 09:20 in Denver: past the grace.
	sweeper.now = func() time.Time { return time.Date(2026, 1, 7, 16, 20, 0, 0, time.UTC) }
	swept, err = sweeper.MarkNoShows(ctx)
	if err != nil {
		t.Fatalf("MarkNoShows: %v", err)
	}
	if swept != 1 {
		t.Errorf("swept = %d, want 1 past the club-local grace", swept)
	}
}

func TestCompleteFinished(t *testing.T) {
	engine, fixture, database := sweepFixture(t, "2026-01-07T08:55")
	ctx := context.Background()

	created := reserve(t, engine, fixture.Scope, fixture.CourtID, "2026-01-07T09:00", "2026-01-07T10:00")
	if _, err := engine.CheckIn(ctx, fixture.Scope, created.ID); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	// Before the end time nothing happens.
	early := newSweeper(t, database, 15*time.Minute, "2026-01-07T09:45")
	swept, err := early.CompleteFinished(ctx)
	if err != nil {
		t.Fatalf("CompleteFinished: %v", err)
	}
	if swept != 0 {
		t.Fatalf("swept = %d, want 0 before the end time", swept)
	}

	late := newSweeper(t, database, 15*time.Minute, "2026-01-07T10:05")
	swept, err = late.CompleteFinished(ctx)
	if err != nil {
		t.Fatalf("CompleteFinished: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	reservation, err := engine.Get(ctx, fixture.Scope, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reservation.Status != string(booking.StatusCompleted) {
		t.Errorf("status = %q, want completed", reservation.Status)
	}
}
