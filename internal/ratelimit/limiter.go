// Package ratelimit enforces per-user hourly and daily send allowances.
// Counters live in memory and are persisted to a bbolt file so limits
// survive restarts.
package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketCounters = []byte("counters")

type counter struct {
	HourStart time.Time `json:"hour_start"`
	HourCount int       `json:"hour_count"`
	DayStart  time.Time `json:"day_start"`
	DayCount  int       `json:"day_count"`
}

type Limiter struct {
	db      *bolt.DB
	perHour int
	perDay  int
	logger  *slog.Logger

	mu       sync.Mutex
	counters map[string]*counter

	now func() time.Time
}

// New opens the counter store at path and loads existing counters.
// A zero perHour or perDay disables that window.
func New(path string, perHour, perDay int, logger *slog.Logger) (*Limiter, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open rate limit store: %w", err)
	}

	l := &Limiter{
		db:       db,
		perHour:  perHour,
		perDay:   perDay,
		logger:   logger.With("component", "ratelimit"),
		counters: map[string]*counter{},
		now:      time.Now,
	}

	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketCounters)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			c := &counter{}
			if err := json.Unmarshal(v, c); err != nil {
				l.logger.Warn("dropping corrupt counter", "user_id", string(k))
				return nil
			}
			l.counters[string(k)] = c
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load rate limit counters: %w", err)
	}

	return l, nil
}

// Allow consumes one send from the user's allowance. It returns false
// without consuming anything when either window is exhausted.
func (l *Limiter) Allow(userID string) bool {
	now := l.now()

	l.mu.Lock()
	c, ok := l.counters[userID]
	if !ok {
		c = &counter{HourStart: now, DayStart: now}
		l.counters[userID] = c
	}

	if now.Sub(c.HourStart) >= time.Hour {
		c.HourStart = now
		c.HourCount = 0
	}
	if now.Sub(c.DayStart) >= 24*time.Hour {
		c.DayStart = now
		c.DayCount = 0
	}

	if (l.perHour > 0 && c.HourCount >= l.perHour) || (l.perDay > 0 && c.DayCount >= l.perDay) {
		hour, day := c.HourCount, c.DayCount
		l.mu.Unlock()
		l.logger.Warn("send rate limit hit", "user_id", userID, "hour", hour, "day", day)
		return false
	}

	c.HourCount++
	c.DayCount++
	snapshot := *c
	l.mu.Unlock()

	if err := l.persist(userID, &snapshot); err != nil {
		l.logger.Error("failed to persist rate limit counter", "user_id", userID, "error", err)
	}
	return true
}

// Remaining reports how many sends the user has left in the tighter of
// the two windows.
func (l *Limiter) Remaining(userID string) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[userID]
	if !ok {
		return l.min(l.perHour, l.perDay)
	}

	hourUsed, dayUsed := c.HourCount, c.DayCount
	if now.Sub(c.HourStart) >= time.Hour {
		hourUsed = 0
	}
	if now.Sub(c.DayStart) >= 24*time.Hour {
		dayUsed = 0
	}

	remaining := l.min(l.perHour-hourUsed, l.perDay-dayUsed)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (l *Limiter) min(hour, day int) int {
	if l.perHour == 0 {
		return day
	}
	if l.perDay == 0 {
		return hour
	}
	if hour < day {
		return hour
	}
	return day
}

func (l *Limiter) persist(userID string, c *counter) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCounters).Put([]byte(userID), data)
	})
}

// Close flushes and closes the counter store
func (l *Limiter) Close() error {
	return l.db.Close()
}
