package models

import "time"

// MessageStatus represents the delivery status of an outbound message
type MessageStatus string

const (
	StatusPending MessageStatus = "pending"
	StatusSent    MessageStatus = "sent"
	StatusFailed  MessageStatus = "failed"
)

// Message represents one outbound email instance. Recipient fields hold a
// single address or a comma-delimited list; recurring mails collapse their
// recipient lists to this form when fanning out.
type Message struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	From        string        `json:"from"`
	To          string        `json:"to"`
	Cc          string        `json:"cc,omitempty"`
	Bcc         string        `json:"bcc,omitempty"`
	Subject     string        `json:"subject"`
	Content     string        `json:"content"` // HTML body
	Status      MessageStatus `json:"status"`
	ScheduledAt *time.Time    `json:"scheduled_at,omitempty"`
	OpenedAt    *time.Time    `json:"opened_at,omitempty"`
	RepliedAt   *time.Time    `json:"replied_at,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// MessageListFilter holds filter options for listing messages
type MessageListFilter struct {
	Status MessageStatus
	Limit  int
	Offset int
}
