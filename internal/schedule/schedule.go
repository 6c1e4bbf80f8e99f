// Package schedule computes recurrence timestamps for recurring mails.
//
// The calculation deliberately walks forward minute by minute and renders
// each candidate in the target timezone instead of doing offset arithmetic.
// DST transitions and non-hour offsets are handled by the time package this
// way, at the cost of a bounded scan.
package schedule

import (
	"fmt"
	"time"
)

// scanLimit bounds the forward scan to 8 days of minutes. Any well-formed
// schedule with at least one weekday matches within 7 days; the extra day
// absorbs DST edges.
const scanLimit = 60 * 24 * 8

// fallbackDelay is returned when no candidate matches within the scan
// window, which only happens for malformed schedules. It keeps the
// definition alive instead of stalling it forever.
const fallbackDelay = 5 * time.Minute

// NextRun returns the next instant strictly after from whose weekday and
// local time, rendered in the given IANA timezone, match the schedule.
// daysOfWeek uses 0=Sunday..6=Saturday, timeOfDay is "HH:MM" in 24h form.
//
// The result is always strictly after from, so feeding a result back in as
// the new from yields a strictly increasing sequence.
func NextRun(from time.Time, daysOfWeek []int, timeOfDay, timezone string) time.Time {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}

	hour, minute, err := parseTimeOfDay(timeOfDay)
	if err != nil {
		return from.Add(fallbackDelay)
	}

	days := make(map[time.Weekday]struct{}, len(daysOfWeek))
	for _, d := range daysOfWeek {
		if d >= 0 && d <= 6 {
			days[time.Weekday(d)] = struct{}{}
		}
	}

	// Start one minute ahead on a whole-minute boundary. Zone offsets are
	// whole minutes, so truncating the absolute instant keeps local minutes
	// aligned.
	candidate := from.Truncate(time.Minute).Add(time.Minute)

	for i := 0; i < scanLimit; i++ {
		local := candidate.In(loc)
		if _, ok := days[local.Weekday()]; ok && local.Hour() == hour && local.Minute() == minute {
			return candidate
		}
		candidate = candidate.Add(time.Minute)
	}

	return from.Add(fallbackDelay)
}

// Validate checks schedule fields before they are persisted. Empty weekday
// sets are rejected here rather than silently degrading to the calculator's
// fallback.
func Validate(daysOfWeek []int, timeOfDay, timezone string) error {
	if len(daysOfWeek) == 0 {
		return fmt.Errorf("days_of_week must not be empty")
	}
	for _, d := range daysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("days_of_week entries must be 0..6, got %d", d)
		}
	}
	if _, _, err := parseTimeOfDay(timeOfDay); err != nil {
		return err
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return nil
}

func parseTimeOfDay(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("time_of_day must be \"HH:MM\": %w", err)
	}
	return t.Hour(), t.Minute(), nil
}
