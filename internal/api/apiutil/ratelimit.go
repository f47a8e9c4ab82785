package apiutil

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/openclub/courtbook/internal/ratelimit"
)

var (
	writeLimiter      *ratelimit.Limiter
	limiterTrustProxy bool
	limiterOnce       sync.Once
)

// InitRateLimit installs the shared booking write limiter. A nil limiter
// disables limiting, which is what tests want.
func InitRateLimit(l *ratelimit.Limiter, trustProxy bool) {
	limiterOnce.Do(func() {
		writeLimiter = l
		limiterTrustProxy = trustProxy
	})
}

// EnforceBookingLimit checks the limiter for a booking write and writes a 429
// with Retry-After when the requester is over a limit. Returns false when the
// request was rejected.
func EnforceBookingLimit(w http.ResponseWriter, r *http.Request, identifier string) bool {
	if writeLimiter == nil {
		return true
	}

	ip := ratelimit.GetClientIP(r, limiterTrustProxy)
	result := writeLimiter.CheckBooking(identifier, ip)
	if result.Allowed {
		return true
	}

	ratelimit.LogRateLimitExceeded(identifier, ip, result.Reason)
	seconds := int(result.RetryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	_ = WriteJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
	return false
}

// RecordBookingWrite counts a successful booking write against the limiter.
func RecordBookingWrite(r *http.Request, identifier string) {
	if writeLimiter == nil {
		return
	}
	writeLimiter.RecordBooking(identifier, ratelimit.GetClientIP(r, limiterTrustProxy))
}
