package availability

import (
	"fmt"
	"time"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// Slot is a bookable candidate offered to the client. Slots are derived
// on every call and never persisted or cached.
type Slot struct {
	Start time.Time
	End   time.Time
	Label string
}

// Overlaps reports whether the half-open intervals [aStart,aEnd) and
// [bStart,bEnd) share any instant. Back-to-back intervals
// (aEnd == bStart) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func OverlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// Slots returns candidate slots within [windowStart, windowEnd) where a
// booking of length duration would not overlap any busy interval.
// Candidates start only at step multiples from windowStart, so slot
// boundaries stay on the grid even when duration is not a multiple of
// step. A candidate whose end would pass windowEnd is discarded. Slots
// starting before now are skipped; pass the zero time to disable that
// filter.
//
// All times are expected to be in the same location (timezone).
func Slots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []Slot {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}

	var slots []Slot
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		end := t.Add(duration)
		if OverlapsAny(t, end, busy) {
			continue
		}
		slots = append(slots, Slot{
			Start: t,
			End:   end,
			Label: fmt.Sprintf("%s - %s", FormatClock(t), FormatClock(end)),
		})
	}
	return slots
}

// FormatClock renders a wall-clock time the way the booking UI shows it,
// e.g. "9:00 AM".
func FormatClock(t time.Time) string {
	return t.Format("3:04 PM")
}
