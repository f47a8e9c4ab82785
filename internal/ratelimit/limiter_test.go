package ratelimit

import (
	"net/http"
	"sync"
	"testing"
	"time"
)

// mockClock is a controllable clock for testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCheckBooking_Cooldown(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		BookingCooldown:     10 * time.Second,
		BookingMaxPerHour:   30,
		BookingMaxIPPerHour: 100,
		Clock:               clock,
	})
	defer limiter.Close()

	requester := "+12125550123"
	ip := "203.0.113.9"

	// First request should be allowed
	result := limiter.CheckBooking(requester, ip)
	if !result.Allowed {
		t.Errorf("First request should be allowed, got blocked: %s", result.Reason)
	}
	limiter.RecordBooking(requester, ip)

	// Second request within cooldown should be blocked
	clock.Advance(4 * time.Second)
	result = limiter.CheckBooking(requester, ip)
	if result.Allowed {
		t.Error("Second request within cooldown should be blocked")
	}
	if result.Reason != "cooldown" {
		t.Errorf("Expected reason 'cooldown', got '%s'", result.Reason)
	}
	if result.RetryAfter != 6*time.Second {
		t.Errorf("Expected RetryAfter 6s, got %v", result.RetryAfter)
	}

	// After cooldown expires, should be allowed
	clock.Advance(7 * time.Second)
	result = limiter.CheckBooking(requester, ip)
	if !result.Allowed {
		t.Errorf("Request after cooldown should be allowed, got blocked: %s", result.Reason)
	}
}

func TestCheckBooking_HourlyLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		BookingCooldown:     1 * time.Millisecond,
		BookingMaxPerHour:   3,
		BookingMaxIPPerHour: 100,
		Clock:               clock,
	})
	defer limiter.Close()

	requester := "+12125550123"
	ip := "203.0.113.9"

	for i := 0; i < 3; i++ {
		result := limiter.CheckBooking(requester, ip)
		if !result.Allowed {
			t.Fatalf("Request %d should be allowed, got blocked: %s", i+1, result.Reason)
		}
		limiter.RecordBooking(requester, ip)
		clock.Advance(time.Second)
	}

	result := limiter.CheckBooking(requester, ip)
	if result.Allowed {
		t.Error("Fourth request should hit the hourly limit")
	}
	if result.Reason != "hourly_limit" {
		t.Errorf("Expected reason 'hourly_limit', got '%s'", result.Reason)
	}

	// A different requester on the same IP is still fine.
	result = limiter.CheckBooking("+13105550188", ip)
	if !result.Allowed {
		t.Errorf("Different requester should be allowed, got blocked: %s", result.Reason)
	}

	// After the window rolls over the original requester resets.
	clock.Advance(time.Hour)
	result = limiter.CheckBooking(requester, ip)
	if !result.Allowed {
		t.Errorf("Request after window reset should be allowed, got blocked: %s", result.Reason)
	}
}

func TestCheckBooking_IPHourlyLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		BookingCooldown:     1 * time.Millisecond,
		BookingMaxPerHour:   100,
		BookingMaxIPPerHour: 2,
		Clock:               clock,
	})
	defer limiter.Close()

	ip := "203.0.113.9"
	limiter.RecordBooking("+12125550101", ip)
	clock.Advance(time.Second)
	limiter.RecordBooking("+12125550102", ip)
	clock.Advance(time.Second)

	result := limiter.CheckBooking("+12125550103", ip)
	if result.Allowed {
		t.Error("Third requester from the same IP should be blocked")
	}
	if result.Reason != "ip_hourly_limit" {
		t.Errorf("Expected reason 'ip_hourly_limit', got '%s'", result.Reason)
	}

	result = limiter.CheckBooking("+12125550103", "198.51.100.7")
	if !result.Allowed {
		t.Errorf("Different IP should be allowed, got blocked: %s", result.Reason)
	}
}

func TestCheckBooking_IdentifierNormalization(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		BookingCooldown:     time.Minute,
		BookingMaxPerHour:   30,
		BookingMaxIPPerHour: 100,
		Clock:               clock,
	})
	defer limiter.Close()

	limiter.RecordBooking("Alex@Example.com", "203.0.113.9")
	clock.Advance(time.Second)

	result := limiter.CheckBooking("  alex@example.com ", "203.0.113.9")
	if result.Allowed {
		t.Error("Case and whitespace variants should share the cooldown window")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		trustProxy bool
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "203.0.113.9:54321",
			want:       "203.0.113.9",
		},
		{
			name:       "untrusted proxy ignores XFF",
			remoteAddr: "10.0.0.5:54321",
			xff:        "203.0.113.9",
			want:       "10.0.0.5",
		},
		{
			name:       "trusted proxy uses rightmost public IP",
			remoteAddr: "10.0.0.5:54321",
			xff:        "198.51.100.7, 203.0.113.9, 10.0.0.2",
			trustProxy: true,
			want:       "203.0.113.9",
		},
		{
			name:       "trusted proxy all private falls back to last",
			remoteAddr: "10.0.0.5:54321",
			xff:        "192.168.1.4, 10.0.0.2",
			trustProxy: true,
			want:       "10.0.0.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := http.NewRequest(http.MethodPost, "/api/v1/reservations", nil)
			if err != nil {
				t.Fatalf("NewRequest: %v", err)
			}
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := GetClientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	if got := SanitizeIdentifier("+12125550123"); got != "***0123" {
		t.Errorf("SanitizeIdentifier() = %q, want ***0123", got)
	}
	if got := SanitizeIdentifier("ab"); got != "***" {
		t.Errorf("SanitizeIdentifier() short = %q, want ***", got)
	}
}
