package ratelimit

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func testLimiter(t *testing.T, path string, perHour, perDay int) *Limiter {
	t.Helper()
	l, err := New(path, perHour, perDay, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to create limiter: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestAllowWithinLimits(t *testing.T) {
	l := testLimiter(t, filepath.Join(t.TempDir(), "rl.db"), 3, 10)

	for i := 0; i < 3; i++ {
		if !l.Allow("u1") {
			t.Fatalf("send %d should be allowed", i+1)
		}
	}
	if l.Allow("u1") {
		t.Fatal("fourth send should exceed the hourly limit")
	}
	// Other users are unaffected.
	if !l.Allow("u2") {
		t.Fatal("separate user should have a fresh allowance")
	}
}

func TestHourlyWindowReset(t *testing.T) {
	l := testLimiter(t, filepath.Join(t.TempDir(), "rl.db"), 2, 100)

	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("u1")
	l.Allow("u1")
	if l.Allow("u1") {
		t.Fatal("hourly limit should be exhausted")
	}

	now = now.Add(time.Hour)
	if !l.Allow("u1") {
		t.Fatal("allowance should reset after the hour window")
	}
}

func TestDailyLimitOutlastsHourlyReset(t *testing.T) {
	l := testLimiter(t, filepath.Join(t.TempDir(), "rl.db"), 100, 2)

	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("u1")
	l.Allow("u1")

	now = now.Add(2 * time.Hour)
	if l.Allow("u1") {
		t.Fatal("daily limit should still hold after the hourly window")
	}

	now = now.Add(24 * time.Hour)
	if !l.Allow("u1") {
		t.Fatal("allowance should reset after the day window")
	}
}

func TestCountersSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rl.db")

	l := testLimiter(t, path, 2, 100)
	l.Allow("u1")
	l.Allow("u1")
	if err := l.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened := testLimiter(t, path, 2, 100)
	if reopened.Allow("u1") {
		t.Fatal("exhausted allowance should persist across restarts")
	}
}

func TestRemaining(t *testing.T) {
	l := testLimiter(t, filepath.Join(t.TempDir(), "rl.db"), 5, 3)

	if got := l.Remaining("u1"); got != 3 {
		t.Fatalf("fresh user remaining should be the tighter window, got %d", got)
	}
	l.Allow("u1")
	if got := l.Remaining("u1"); got != 2 {
		t.Fatalf("expected 2 remaining, got %d", got)
	}
}
