package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openclub/courtbook/internal/testutil"
)

func TestSlotsFullDay(t *testing.T) {
	engine, fixture, _ := newTestEngine(t, mustTime(t, "2026-01-05T12:00"))
	ctx := context.Background()

	slots, err := engine.Availability().Slots(ctx, fixture.Scope, fixture.CourtID, mustDate(t, "2026-01-07"), time.Hour)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}

	// 08:00-22:00 with 30m steps: the last 1h slot starts at 21:00.
	if len(slots) != 27 {
		t.Fatalf("got %d slots, want 27", len(slots))
	}
	if got := slots[0].Start.Format(TimeLayout); got != "08:00" {
		t.Errorf("first slot starts %s, want 08:00", got)
	}
	if got := slots[len(slots)-1].Start.Format(TimeLayout); got != "21:00" {
		t.Errorf("last slot starts %s, want 21:00", got)
	}
	for _, slot := range slots {
		if !slot.Available {
			t.Errorf("slot %s unexpectedly taken", slot.Start.Format(TimeLayout))
		}
	}
}

func TestSlotsMarkTakenIntervals(t *testing.T) {
	engine, fixture, _ := newTestEngine(t, mustTime(t, "2026-01-05T12:00"))
	ctx := context.Background()

	if _, err := engine.Reserve(ctx, fixture.Scope, guestRequest(t, fixture.CourtID, "2026-01-07T09:00", "2026-01-07T10:30")); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	slots, err := engine.Availability().Slots(ctx, fixture.Scope, fixture.CourtID, mustDate(t, "2026-01-07"), time.Hour)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}

	for _, slot := range slots {
		overlapsBooking := slot.Start.Before(mustTime(t, "2026-01-07T10:30")) &&
			slot.End.After(mustTime(t, "2026-01-07T09:00"))
		if slot.Available == overlapsBooking {
			t.Errorf("slot %s available = %v, want %v",
				slot.Start.Format(TimeLayout), slot.Available, !overlapsBooking)
		}
	}
}

func TestSlotsDefaultDurationIsGranularity(t *testing.T) {
	engine, fixture, _ := newTestEngine(t, mustTime(t, "2026-01-05T12:00"))
	ctx := context.Background()

	slots, err := engine.Availability().Slots(ctx, fixture.Scope, fixture.CourtID, mustDate(t, "2026-01-07"), 0)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	// 14 open hours in 30m steps.
	if len(slots) != 28 {
		t.Fatalf("got %d slots, want 28", len(slots))
	}
	if got := slots[0].End.Sub(slots[0].Start); got != 30*time.Minute {
		t.Errorf("slot duration = %s, want 30m", got)
	}
}

func TestSlotsRejectUnalignedDuration(t *testing.T) {
	engine, fixture, _ := newTestEngine(t, mustTime(t, "2026-01-05T12:00"))

	_, err := engine.Availability().Slots(context.Background(), fixture.Scope, fixture.CourtID, mustDate(t, "2026-01-07"), 45*time.Minute)
	if !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("Slots with 45m duration = %v, want ErrInvalidDuration", err)
	}
}

func TestSlotsSkipBlackoutWindows(t *testing.T) {
	engine, fixture, database := newTestEngine(t, mustTime(t, "2026-01-05T12:00"))
	ctx := context.Background()

	testutil.SeedBlackout(t, database, fixture.CourtID, "2026-01-07T12:00", "2026-01-07T14:00", "maintenance")

	slots, err := engine.Availability().Slots(ctx, fixture.Scope, fixture.CourtID, mustDate(t, "2026-01-07"), time.Hour)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	for _, slot := range slots {
		if slot.Start.Before(mustTime(t, "2026-01-07T14:00")) && slot.End.After(mustTime(t, "2026-01-07T12:00")) {
			t.Errorf("slot %s-%s intersects the blackout",
				slot.Start.Format(TimeLayout), slot.End.Format(TimeLayout))
		}
	}
}

func TestIsAvailable(t *testing.T) {
	engine, fixture, _ := newTestEngine(t, mustTime(t, "2026-01-05T12:00"))
	ctx := context.Background()

	free, err := engine.Availability().IsAvailable(ctx, fixture.Scope, fixture.CourtID,
		mustTime(t, "2026-01-07T09:00"), mustTime(t, "2026-01-07T10:00"))
	if err != nil {
		t.Fatalf("IsAvailable: %v", err)
	}
	if !free {
		t.Error("empty court reported unavailable")
	}

	if _, err := engine.Reserve(ctx, fixture.Scope, guestRequest(t, fixture.CourtID, "2026-01-07T09:00", "2026-01-07T10:00")); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	free, err = engine.Availability().IsAvailable(ctx, fixture.Scope, fixture.CourtID,
		mustTime(t, "2026-01-07T09:30"), mustTime(t, "2026-01-07T10:30"))
	if err != nil {
		t.Fatalf("IsAvailable: %v", err)
	}
	if free {
		t.Error("overlapping interval reported available")
	}

	// Outside operating hours is simply not available.
	free, err = engine.Availability().IsAvailable(ctx, fixture.Scope, fixture.CourtID,
		mustTime(t, "2026-01-07T22:00"), mustTime(t, "2026-01-07T23:00"))
	if err != nil {
		t.Fatalf("IsAvailable: %v", err)
	}
	if free {
		t.Error("after-hours interval reported available")
	}
}
