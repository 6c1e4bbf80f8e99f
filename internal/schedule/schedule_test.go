package schedule

import (
	"testing"
	"time"
)

func TestNextRunMatchesScheduleInZone(t *testing.T) {
	tests := []struct {
		name      string
		from      time.Time
		days      []int
		timeOfDay string
		timezone  string
	}{
		{
			name:      "weekday morning UTC",
			from:      time.Date(2025, 3, 3, 8, 30, 0, 0, time.UTC), // Monday
			days:      []int{1, 2, 3, 4, 5},
			timeOfDay: "09:00",
			timezone:  "UTC",
		},
		{
			name:      "single day in IST",
			from:      time.Date(2025, 3, 3, 8, 30, 0, 0, time.UTC),
			days:      []int{0}, // Sunday
			timeOfDay: "18:45",
			timezone:  "Asia/Kolkata",
		},
		{
			name:      "across DST spring forward",
			from:      time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC), // day before US DST
			days:      []int{0, 1},
			timeOfDay: "02:30",
			timezone:  "America/New_York",
		},
		{
			name:      "late evening in Tokyo",
			from:      time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC),
			days:      []int{3},
			timeOfDay: "23:15",
			timezone:  "Asia/Tokyo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextRun(tt.from, tt.days, tt.timeOfDay, tt.timezone)

			if !got.After(tt.from) {
				t.Fatalf("NextRun returned %v, not after from %v", got, tt.from)
			}

			loc, err := time.LoadLocation(tt.timezone)
			if err != nil {
				t.Fatalf("LoadLocation: %v", err)
			}
			local := got.In(loc)

			dayOK := false
			for _, d := range tt.days {
				if int(local.Weekday()) == d {
					dayOK = true
					break
				}
			}
			if !dayOK {
				t.Errorf("weekday %d not in allowed set %v", local.Weekday(), tt.days)
			}

			want := local.Format("15:04")
			if want != tt.timeOfDay {
				t.Errorf("local time %s, want %s", want, tt.timeOfDay)
			}
		})
	}
}

func TestNextRunStrictlyIncreasing(t *testing.T) {
	from := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	days := []int{1, 3, 5}

	prev := from
	for i := 0; i < 10; i++ {
		next := NextRun(prev, days, "10:00", "Europe/Berlin")
		if !next.After(prev) {
			t.Fatalf("iteration %d: %v is not after %v", i, next, prev)
		}
		prev = next
	}
}

func TestNextRunSameMinuteMovesForward(t *testing.T) {
	// from is exactly a matching instant; the next run must be the
	// following week, never the same minute.
	loc, _ := time.LoadLocation("UTC")
	from := time.Date(2025, 3, 5, 9, 0, 0, 0, loc) // Wednesday 09:00

	got := NextRun(from, []int{3}, "09:00", "UTC")

	want := from.AddDate(0, 0, 7)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNextRunEmptyDaysFallsBack(t *testing.T) {
	from := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

	got := NextRun(from, nil, "09:00", "UTC")

	if !got.Equal(from.Add(5 * time.Minute)) {
		t.Errorf("expected from+5m fallback, got %v", got)
	}
}

func TestNextRunBadTimeOfDayFallsBack(t *testing.T) {
	from := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

	got := NextRun(from, []int{1}, "25:99", "UTC")

	if !got.Equal(from.Add(5 * time.Minute)) {
		t.Errorf("expected from+5m fallback, got %v", got)
	}
}

func TestNextRunUnknownZoneUsesUTC(t *testing.T) {
	from := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC) // Monday

	got := NextRun(from, []int{1}, "09:00", "Not/AZone")

	want := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNextRunSubMinuteFrom(t *testing.T) {
	// A from with seconds still lands on a whole-minute boundary.
	from := time.Date(2025, 3, 3, 8, 59, 42, 0, time.UTC) // Monday

	got := NextRun(from, []int{1}, "09:00", "UTC")

	want := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		days      []int
		timeOfDay string
		timezone  string
		wantErr   bool
	}{
		{"valid", []int{1, 5}, "09:30", "Asia/Kolkata", false},
		{"empty days", nil, "09:30", "UTC", true},
		{"day out of range", []int{7}, "09:30", "UTC", true},
		{"negative day", []int{-1}, "09:30", "UTC", true},
		{"bad time", []int{1}, "9am", "UTC", true},
		{"bad zone", []int{1}, "09:30", "Mars/Olympus", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.days, tt.timeOfDay, tt.timezone)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
