package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/openclub/courtbook/internal/db"
	"github.com/openclub/courtbook/internal/tenant"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// Fixture is a seeded tenant with one court ready to book.
type Fixture struct {
	Scope   tenant.Scope
	CourtID int64
}

// SeedFixture creates an organization, a club with 30-minute granularity, and
// one active court at $500.00/hour open 08:00-22:00 every day. The club's
// zone is "Local" so tests can build expected instants with the process zone.
func SeedFixture(t *testing.T, database *db.DB) Fixture {
	t.Helper()

	orgID := insertReturningID(t, database,
		`INSERT INTO organizations (name, slug) VALUES (?, ?) RETURNING id`, "Test Org", "test-org")
	clubID := insertReturningID(t, database,
		`INSERT INTO clubs (organization_id, name, slug, timezone, slot_granularity_minutes) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		orgID, "Test Club", "test-club", "Local", 30)
	scope := tenant.Scope{OrganizationID: orgID, ClubID: clubID}

	courtID := SeedCourt(t, database, scope, 50000)
	SeedDailyHours(t, database, courtID, "08:00", "22:00")

	return Fixture{Scope: scope, CourtID: courtID}
}

// SeedCourt creates an active court with the given hourly rate.
func SeedCourt(t *testing.T, database *db.DB, scope tenant.Scope, hourlyCents int64) int64 {
	t.Helper()
	return insertReturningID(t, database,
		`INSERT INTO courts (organization_id, club_id, name, hourly_price_cents, active)
		 VALUES (?, ?, ?, ?, 1) RETURNING id`,
		scope.OrganizationID, scope.ClubID, "Court 1", hourlyCents)
}

// SeedDailyHours sets the same operating window for all seven weekdays.
func SeedDailyHours(t *testing.T, database *db.DB, courtID int64, opensAt, closesAt string) {
	t.Helper()
	for day := 0; day < 7; day++ {
		SeedHours(t, database, courtID, day, opensAt, closesAt)
	}
}

// SeedHours sets the operating window for one weekday.
func SeedHours(t *testing.T, database *db.DB, courtID int64, dayOfWeek int, opensAt, closesAt string) {
	t.Helper()
	_, err := database.ExecContext(context.Background(),
		`INSERT INTO operating_hours (court_id, day_of_week, opens_at, closes_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (court_id, day_of_week) DO UPDATE SET opens_at = excluded.opens_at, closes_at = excluded.closes_at`,
		courtID, dayOfWeek, opensAt, closesAt)
	if err != nil {
		t.Fatalf("seed operating hours: %v", err)
	}
}

// SeedBlackout adds a blackout window, datetimes in "2006-01-02T15:04" form.
func SeedBlackout(t *testing.T, database *db.DB, courtID int64, startsAt, endsAt, reason string) {
	t.Helper()
	_, err := database.ExecContext(context.Background(),
		`INSERT INTO blackouts (court_id, starts_at, ends_at, reason) VALUES (?, ?, ?, ?)`,
		courtID, startsAt, endsAt, reason)
	if err != nil {
		t.Fatalf("seed blackout: %v", err)
	}
}

func insertReturningID(t *testing.T, database *db.DB, query string, args ...any) int64 {
	t.Helper()
	var id int64
	if err := database.QueryRowContext(context.Background(), query, args...).Scan(&id); err != nil {
		t.Fatalf("seed insert: %v", err)
	}
	return id
}
