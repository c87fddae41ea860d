// Package recurrence implements the schedule recurrence descriptors and
// the pay-period math built on top of them. Everything here is pure:
// descriptors are immutable values and all computations take the
// reference time as an argument.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Frequency string

const (
	FrequencyOneTime Frequency = "one_time"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

var ErrInvalidDescriptor = errors.New("invalid_recurrence_descriptor")

// Descriptor anchors a cadence at a single UTC instant. The anchor
// carries the time-of-day, and for weekly/monthly cadences the
// day-of-week/day-of-month as well. Months shorter than the anchor day
// clamp to their last day.
type Descriptor struct {
	Frequency Frequency
	Anchor    time.Time
}

// FromOneTime builds a descriptor that fires exactly once, at whenUTC.
func FromOneTime(whenUTC time.Time) (Descriptor, error) {
	if whenUTC.IsZero() {
		return Descriptor{}, ErrInvalidDescriptor
	}
	return Descriptor{Frequency: FrequencyOneTime, Anchor: whenUTC.UTC()}, nil
}

// FromRecurring builds a descriptor anchored at whenUTC recurring at
// the given cadence indefinitely.
func FromRecurring(whenUTC time.Time, freq Frequency) (Descriptor, error) {
	if whenUTC.IsZero() {
		return Descriptor{}, ErrInvalidDescriptor
	}
	switch freq {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return Descriptor{Frequency: freq, Anchor: whenUTC.UTC()}, nil
	default:
		return Descriptor{}, ErrInvalidDescriptor
	}
}

// String renders the descriptor in its storage form,
// "<frequency>@<RFC3339 anchor>".
func (d Descriptor) String() string {
	return fmt.Sprintf("%s@%s", d.Frequency, d.Anchor.UTC().Format(time.RFC3339))
}

// Parse is the inverse of String. Hand-authored inputs that do not
// round-trip are rejected, never guessed at.
func Parse(s string) (Descriptor, error) {
	freq, anchor, ok := strings.Cut(s, "@")
	if !ok {
		return Descriptor{}, ErrInvalidDescriptor
	}
	at, err := time.Parse(time.RFC3339, anchor)
	if err != nil {
		return Descriptor{}, ErrInvalidDescriptor
	}
	switch Frequency(freq) {
	case FrequencyOneTime:
		return FromOneTime(at)
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return FromRecurring(at, Frequency(freq))
	default:
		return Descriptor{}, ErrInvalidDescriptor
	}
}

// NextRun returns the first occurrence strictly after afterUTC. The
// second return is false when the descriptor is exhausted, which only
// happens for one-time descriptors whose occurrence has passed.
func NextRun(d Descriptor, afterUTC time.Time) (time.Time, bool) {
	after := afterUTC.UTC()
	anchor := d.Anchor.UTC()

	switch d.Frequency {
	case FrequencyOneTime:
		if anchor.After(after) {
			return anchor, true
		}
		return time.Time{}, false

	case FrequencyDaily:
		return nextByStep(anchor, after, 24*time.Hour), true

	case FrequencyWeekly:
		return nextByStep(anchor, after, 7*24*time.Hour), true

	case FrequencyMonthly:
		t := anchor
		for !t.After(after) {
			t = addMonthClamped(t, anchor.Day())
		}
		return t, true
	}

	return time.Time{}, false
}

func nextByStep(anchor, after time.Time, step time.Duration) time.Time {
	if anchor.After(after) {
		return anchor
	}
	k := after.Sub(anchor)/step + 1
	return anchor.Add(time.Duration(k) * step)
}

// addMonthClamped advances t by one month, restoring the anchor day
// where the target month is long enough and clamping to the last day
// where it is not.
func addMonthClamped(t time.Time, anchorDay int) time.Time {
	year, month := t.Year(), t.Month()+1
	if month > time.December {
		year, month = year+1, time.January
	}
	day := anchorDay
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Period is an inclusive day-granular window. Start and End are both
// midnight UTC of their respective days.
type Period struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two inclusive periods share at least one day.
func (p Period) Overlaps(other Period) bool {
	return !p.Start.After(other.End) && !p.End.Before(other.Start)
}

// PayPeriod returns the window a given occurrence covers: the single
// day for daily and one-time cadences, the 7-day window ending at the
// occurrence for weekly, and the calendar month containing the
// occurrence for monthly.
func PayPeriod(d Descriptor, occurrenceUTC time.Time) Period {
	occ := occurrenceUTC.UTC()
	day := time.Date(occ.Year(), occ.Month(), occ.Day(), 0, 0, 0, 0, time.UTC)

	switch d.Frequency {
	case FrequencyWeekly:
		return Period{Start: day.AddDate(0, 0, -6), End: day}
	case FrequencyMonthly:
		start := time.Date(occ.Year(), occ.Month(), 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(occ.Year(), occ.Month(), daysIn(occ.Year(), occ.Month()), 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: end}
	default:
		return Period{Start: day, End: day}
	}
}

// Decomposed is the editable form of a descriptor.
type Decomposed struct {
	Date      string // 2006-01-02
	Time      string // 15:04
	Frequency Frequency
}

// Decompose splits a descriptor back into date, time and frequency for
// editing. It reports false instead of guessing when the descriptor
// does not carry a recognizable cadence.
func Decompose(d Descriptor) (Decomposed, bool) {
	switch d.Frequency {
	case FrequencyOneTime, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return Decomposed{}, false
	}
	if d.Anchor.IsZero() {
		return Decomposed{}, false
	}
	anchor := d.Anchor.UTC()
	return Decomposed{
		Date:      anchor.Format("2006-01-02"),
		Time:      anchor.Format("15:04"),
		Frequency: d.Frequency,
	}, true
}
