// internal/booking/interval.go
package booking

import (
	"sort"
	"time"
)

// Layouts shared by the engine and the sqlite columns. Date and datetime
// strings compare lexicographically in the same order as the instants they
// encode, which the blackout and sweep queries rely on.
const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04"
	DateTimeLayout = "2006-01-02T15:04"
)

// Interval is a half-open [Start, End) time range. An interval whose end
// equals another's start does not overlap it.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Empty() bool {
	return !iv.Start.Before(iv.End)
}

func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// AlignedTo reports whether both endpoints sit on the granularity grid
// anchored at midnight of the interval's date.
func (iv Interval) AlignedTo(granularity time.Duration) bool {
	if granularity <= 0 {
		return false
	}
	midnight := time.Date(iv.Start.Year(), iv.Start.Month(), iv.Start.Day(), 0, 0, 0, 0, iv.Start.Location())
	return iv.Start.Sub(midnight)%granularity == 0 && iv.End.Sub(midnight)%granularity == 0
}

// subtractAll removes every hole from every window, keeping half-open
// semantics: a hole that only touches a window boundary removes nothing.
// The result is ordered and disjoint.
func subtractAll(windows, holes []Interval) []Interval {
	result := windows
	for _, hole := range holes {
		result = subtractOne(result, hole)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Start.Before(result[j].Start) })
	return result
}

func subtractOne(windows []Interval, hole Interval) []Interval {
	if hole.Empty() {
		return windows
	}
	var result []Interval
	for _, window := range windows {
		if !window.Overlaps(hole) {
			result = append(result, window)
			continue
		}
		if hole.Start.After(window.Start) {
			result = append(result, Interval{Start: window.Start, End: hole.Start})
		}
		if hole.End.Before(window.End) {
			result = append(result, Interval{Start: hole.End, End: window.End})
		}
	}
	return result
}

// combineDateTime places a clock time expressed as "15:04" on the given
// date.
func combineDateTime(date time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse(TimeLayout, clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, date.Location()), nil
}

// rebase reinterprets t's wall-clock reading in loc. The printed time is
// unchanged; the instant it names moves to the new zone.
func rebase(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func midnightOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
