package models

import "time"

// RecurringMail is a recurrence definition: the same email delivered to a
// list of recipients on a weekday/time-of-day schedule in a given timezone.
type RecurringMail struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	From       string     `json:"from"`
	To         []string   `json:"to"`
	Cc         []string   `json:"cc,omitempty"`
	Bcc        []string   `json:"bcc,omitempty"`
	Subject    string     `json:"subject"`
	Content    string     `json:"content"`
	DaysOfWeek []int      `json:"days_of_week"` // 0=Sunday .. 6=Saturday
	TimeOfDay  string     `json:"time_of_day"`  // "HH:MM", 24h
	Timezone   string     `json:"timezone"`     // IANA name, e.g. "Asia/Kolkata"
	IsActive   bool       `json:"is_active"`
	LastSentAt *time.Time `json:"last_sent_at,omitempty"`
	NextRunAt  time.Time  `json:"next_run_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
