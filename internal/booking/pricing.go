// internal/booking/pricing.go
package booking

import (
	"fmt"
	"math"
	"time"
)

// PriceRule marks a recurring clock window (optionally restricted to one
// weekday) whose minutes are billed at MultiplierPct percent of the base
// rate. 150 means peak hours at 1.5x.
type PriceRule struct {
	Name          string
	Weekday       *time.Weekday
	OpensAt       string // "15:04"
	ClosesAt      string
	MultiplierPct int64
}

type QuoteInput struct {
	HourlyPriceCents   int64
	Start              time.Time
	End                time.Time
	Granularity        time.Duration
	SpecialPriceCents  *int64
	DiscountPercentage float64
	Rules              []PriceRule
}

// Quote is a price breakdown in integer cents. Total is never negative.
type Quote struct {
	BaseCents       int64
	AdjustmentCents int64
	DiscountCents   int64
	TotalCents      int64
}

// QuotePrice computes the price for one slot. It is a pure function: the
// same input always yields the same quote.
func QuotePrice(in QuoteInput) (Quote, error) {
	interval := Interval{Start: in.Start, End: in.End}
	if interval.Empty() {
		return Quote{}, fmt.Errorf("duration must be positive: %w", ErrInvalidDuration)
	}
	if in.Granularity > 0 && !interval.AlignedTo(in.Granularity) {
		return Quote{}, fmt.Errorf("interval not aligned to %s: %w", in.Granularity, ErrInvalidDuration)
	}
	if in.DiscountPercentage < 0 || in.DiscountPercentage > 100 {
		return Quote{}, fmt.Errorf("discount %.2f outside [0,100]: %w", in.DiscountPercentage, ErrInvalidDiscount)
	}

	minutes := int64(interval.Duration() / time.Minute)

	base := prorateCents(in.HourlyPriceCents, minutes)
	if in.SpecialPriceCents != nil {
		if *in.SpecialPriceCents < 0 {
			return Quote{}, fmt.Errorf("special price must be 0 or greater: %w", ErrInvalidDuration)
		}
		base = *in.SpecialPriceCents
	}

	var adjustment int64
	if in.SpecialPriceCents == nil {
		for _, rule := range in.Rules {
			overlap, err := ruleOverlapMinutes(rule, interval)
			if err != nil {
				return Quote{}, err
			}
			if overlap == 0 || rule.MultiplierPct == 100 {
				continue
			}
			extra := prorateCents(in.HourlyPriceCents, overlap)
			adjustment += roundedPercent(extra, rule.MultiplierPct-100)
		}
	}

	subtotal := base + adjustment
	discount := int64(math.Round(float64(subtotal) * in.DiscountPercentage / 100))

	total := subtotal - discount
	if total < 0 {
		total = 0
	}

	return Quote{
		BaseCents:       base,
		AdjustmentCents: adjustment,
		DiscountCents:   discount,
		TotalCents:      total,
	}, nil
}

// prorateCents bills an hourly rate for the given minutes, rounding half up.
func prorateCents(hourlyCents, minutes int64) int64 {
	return (hourlyCents*minutes + 30) / 60
}

// roundedPercent returns pct percent of cents, rounding half up.
func roundedPercent(cents, pct int64) int64 {
	return (cents*pct + 50) / 100
}

// ruleOverlapMinutes counts the minutes of interval falling inside the
// rule's clock window on the interval's date.
func ruleOverlapMinutes(rule PriceRule, interval Interval) (int64, error) {
	if rule.Weekday != nil && *rule.Weekday != interval.Start.Weekday() {
		return 0, nil
	}

	open, err := combineDateTime(interval.Start, rule.OpensAt)
	if err != nil {
		return 0, fmt.Errorf("parse price rule %q opens_at: %w", rule.Name, err)
	}
	close, err := combineDateTime(interval.Start, rule.ClosesAt)
	if err != nil {
		return 0, fmt.Errorf("parse price rule %q closes_at: %w", rule.Name, err)
	}

	window := Interval{Start: open, End: close}
	if !interval.Overlaps(window) {
		return 0, nil
	}

	start := interval.Start
	if window.Start.After(start) {
		start = window.Start
	}
	end := interval.End
	if window.End.Before(end) {
		end = window.End
	}
	return int64(end.Sub(start) / time.Minute), nil
}

// FormatPriceCents renders cents as a dollar amount for logs and responses.
func FormatPriceCents(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}
