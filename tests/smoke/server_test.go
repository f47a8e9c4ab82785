//go:build smoke

package smoke

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/openclub/courtbook/internal/db"
	"github.com/openclub/courtbook/internal/testutil"
)

type smokeServer struct {
	baseURL string
	client  *http.Client
	fixture testutil.Fixture
}

func startServer(t *testing.T) *smokeServer {
	t.Helper()

	repoRoot := findRepoRoot(t)
	tempDir := t.TempDir()

	binPath := filepath.Join(tempDir, "courtbook-server")
	buildCmd := exec.Command("go", "build", "-o", binPath, "./cmd/server")
	buildCmd.Dir = repoRoot
	buildOutput, err := buildCmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build server: %v\n%s", err, buildOutput)
	}

	dbPath := filepath.Join(tempDir, "smoke.db")
	fixture := seedSmokeData(t, dbPath)

	port := reservePort(t)
	configPath := filepath.Join(tempDir, "config.yaml")
	configBody := fmt.Sprintf(`app:
  name: courtbook
  environment: development
  port: %d

database:
  driver: sqlite
  filename: "%s"

booking:
  default_granularity_minutes: 30
  no_show_grace_minutes: 15
  default_cancellation_policy: "24h:100,2h:50"

events:
  exchange: courtbook.events
  publish_amqp: false
`, port, filepath.ToSlash(dbPath))

	if err := os.WriteFile(configPath, []byte(configBody), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cmd := exec.Command(binPath, "-config", configPath)
	cmd.Dir = tempDir
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}

	waitDone := make(chan struct{})
	var waitErr error
	go func() {
		waitErr = cmd.Wait()
		close(waitDone)
	}()

	t.Cleanup(func() {
		if cmd.Process == nil {
			return
		}
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-waitDone:
			return
		case <-time.After(5 * time.Second):
		}
		_ = cmd.Process.Kill()
		select {
		case <-waitDone:
		case <-time.After(5 * time.Second):
			t.Logf("server process did not exit after kill")
		}
	})

	baseURL := fmt.Sprintf("http://localhost:%d", port)
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(10 * time.Second)

	for {
		select {
		case <-waitDone:
			t.Fatalf("server exited before health check: %v\nstdout:\n%s\nstderr:\n%s", waitErr, stdout.String(), stderr.String())
		default:
		}

		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return &smokeServer{baseURL: baseURL, client: client, fixture: fixture}
			}
		}

		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for health check\nstdout:\n%s\nstderr:\n%s", stdout.String(), stderr.String())
		}

		time.Sleep(100 * time.Millisecond)
	}
}

// seedSmokeData applies migrations and seeds one club with one court so the
// API has something to book.
func seedSmokeData(t *testing.T, dbPath string) testutil.Fixture {
	t.Helper()

	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("open smoke database: %v", err)
	}
	fixture := testutil.SeedFixture(t, database)
	if err := database.Close(); err != nil {
		t.Fatalf("close smoke database: %v", err)
	}
	return fixture
}

func (s *smokeServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, s.baseURL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Organization-ID", strconv.FormatInt(s.fixture.Scope.OrganizationID, 10))
	req.Header.Set("X-Club-ID", strconv.FormatInt(s.fixture.Scope.ClubID, 10))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func TestServerStartup(t *testing.T) {
	startServer(t)
}

func TestBookingFlow(t *testing.T) {
	server := startServer(t)

	// Pick a date far enough out that cancellation is free.
	date := time.Now().AddDate(0, 0, 14).Format("2006-01-02")
	courtID := server.fixture.CourtID

	resp, data := server.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/availability?court_id=%d&date=%s&duration_minutes=90", courtID, date), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("availability status = %d: %s", resp.StatusCode, data)
	}

	create := map[string]any{
		"court_id":    courtID,
		"date":        date,
		"start_time":  "09:00",
		"end_time":    "10:30",
		"guest_name":  "Alex Chen",
		"guest_phone": "+12125550123",
	}
	resp, data = server.do(t, http.MethodPost, "/api/v1/reservations", create)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, data)
	}
	var created struct {
		ID         int64 `json:"id"`
		PriceCents int64 `json:"price_cents"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.PriceCents != 75000 {
		t.Errorf("price_cents = %d, want 75000", created.PriceCents)
	}

	// A different guest asking for the overlapping interval conflicts.
	conflict := map[string]any{
		"court_id":    courtID,
		"date":        date,
		"start_time":  "10:00",
		"end_time":    "11:00",
		"guest_name":  "Sam Rivera",
		"guest_phone": "+13105550188",
	}
	resp, data = server.do(t, http.MethodPost, "/api/v1/reservations", conflict)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("conflicting create status = %d, want 409: %s", resp.StatusCode, data)
	}

	resp, data = server.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/reservations/%d/cancel", created.ID), map[string]any{"reason": "plans changed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d: %s", resp.StatusCode, data)
	}
	var cancelled struct {
		RefundCents int64 `json:"refund_cents"`
		FeeCents    int64 `json:"fee_cents"`
	}
	if err := json.Unmarshal(data, &cancelled); err != nil {
		t.Fatalf("decode cancel response: %v", err)
	}
	if cancelled.FeeCents != 0 || cancelled.RefundCents != 75000 {
		t.Errorf("fee/refund = %d/%d, want 0/75000", cancelled.FeeCents, cancelled.RefundCents)
	}

	// The freed interval is bookable again.
	resp, data = server.do(t, http.MethodPost, "/api/v1/reservations", conflict)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("rebook status = %d, want 201: %s", resp.StatusCode, data)
	}
}

func TestMigrationsApplied(t *testing.T) {
	database := testutil.NewTestDB(t)

	expectedTables := []string{
		"organizations",
		"clubs",
		"courts",
		"operating_hours",
		"blackouts",
		"recurrence_series",
		"reservations",
		"reservation_slots",
		"waitlist_entries",
		"cancellation_records",
	}

	for _, table := range expectedTables {
		var name string
		err := database.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name = ?",
			table,
		).Scan(&name)
		if err == sql.ErrNoRows {
			t.Fatalf("missing expected table %q after migrations", table)
		}
		if err != nil {
			t.Fatalf("query table %q existence: %v", table, err)
		}
	}
}

func reservePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}

func findRepoRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}

	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	t.Fatal("failed to locate repo root with go.mod")
	return ""
}
