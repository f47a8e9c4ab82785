// internal/booking/policy.go
package booking

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultPolicy is applied when a club configures nothing else: full refund
// up to 24h before start, half up to 2h, nothing after that.
const DefaultPolicy = "24h:100,2h:50"

// PolicyTier grants RefundPercent when cancellation happens at least Cutoff
// before the reservation starts.
type PolicyTier struct {
	Cutoff        time.Duration
	RefundPercent int64
}

// Policy is an ordered tier list, most generous (largest cutoff) first. A
// nil Policy refunds everything, matching an operator that never configured
// cancellation fees.
type Policy []PolicyTier

// ParsePolicy reads the stored descriptor form, e.g. "24h:100,2h:50".
func ParsePolicy(s string) (Policy, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var policy Policy
	for _, part := range strings.Split(s, ",") {
		cutoffValue, pctValue, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("invalid policy tier %q", part)
		}
		cutoff, err := time.ParseDuration(cutoffValue)
		if err != nil || cutoff < 0 {
			return nil, fmt.Errorf("invalid policy cutoff %q", cutoffValue)
		}
		pct, err := strconv.ParseInt(pctValue, 10, 64)
		if err != nil || pct < 0 || pct > 100 {
			return nil, fmt.Errorf("invalid policy refund percent %q", pctValue)
		}
		policy = append(policy, PolicyTier{Cutoff: cutoff, RefundPercent: pct})
	}

	sort.Slice(policy, func(i, j int) bool { return policy[i].Cutoff > policy[j].Cutoff })
	return policy, nil
}

func (p Policy) String() string {
	parts := make([]string, len(p))
	for i, tier := range p {
		parts[i] = fmt.Sprintf("%s:%d", tier.Cutoff, tier.RefundPercent)
	}
	return strings.Join(parts, ",")
}

// Assess splits the original price into fee and refund. Sitting exactly on a
// tier boundary qualifies for that tier (the caller's benefit); below every
// cutoff, or after start, nothing is refunded.
func (p Policy) Assess(priceCents int64, start, now time.Time) (feeCents, refundCents int64) {
	if len(p) == 0 {
		return 0, priceCents
	}

	lead := start.Sub(now)
	for _, tier := range p {
		if lead >= tier.Cutoff {
			refundCents = roundedPercent(priceCents, tier.RefundPercent)
			return priceCents - refundCents, refundCents
		}
	}
	return priceCents, 0
}

// Deadline returns the last instant a full-refund cancellation is possible,
// stored on the reservation as business data.
func (p Policy) Deadline(start time.Time) time.Time {
	if len(p) == 0 {
		return start
	}
	return start.Add(-p[0].Cutoff)
}
