package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nithindas-k/lazydraft/internal/models"
)

type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create persists a new message. The ID and timestamps are assigned here;
// the status defaults to pending unless already set.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	msg.ID = uuid.New().String()
	if msg.Status == "" {
		msg.Status = models.StatusPending
	}
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = msg.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, user_id, from_addr, to_addr, cc_addr, bcc_addr, subject, content, status, scheduled_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.UserID, msg.From, msg.To, msg.Cc, msg.Bcc, msg.Subject, msg.Content, msg.Status, msg.ScheduledAt, msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetByID returns a message by ID, or nil if it does not exist
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	row := r.db.QueryRowContext(ctx, selectMessage+" WHERE id = ?", id)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return msg, err
}

// ListByUser returns the user's messages, newest first
func (r *MessageRepository) ListByUser(ctx context.Context, userID string, filter models.MessageListFilter) ([]models.Message, error) {
	query := selectMessage + " WHERE user_id = ?"
	args := []any{userID}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

// FindDueScheduled returns up to limit pending messages whose scheduled_at
// has passed, earliest due first.
func (r *MessageRepository) FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, selectMessage+`
		WHERE status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?
		ORDER BY scheduled_at ASC
		LIMIT ?`,
		models.StatusPending, now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

// UpdateStatus moves a message to a new status. Pending is terminal-exempt:
// once a message is sent or failed it stays there.
func (r *MessageRepository) UpdateStatus(ctx context.Context, id string, status models.MessageStatus, lastError string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET status = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		status, lastError, time.Now(), id, models.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("message %s not found or not pending", id)
	}
	return nil
}

// DeleteByIDAndUser removes a message owned by the user. Returns false
// when no matching row exists.
func (r *MessageRepository) DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkOpened records the first open of a message. Later hits are no-ops.
func (r *MessageRepository) MarkOpened(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET opened_at = ?, updated_at = ?
		WHERE id = ? AND opened_at IS NULL`,
		at, time.Now(), id,
	)
	return err
}

// MarkReplied records the first detected reply to a message
func (r *MessageRepository) MarkReplied(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET replied_at = ?, updated_at = ?
		WHERE id = ? AND replied_at IS NULL`,
		at, time.Now(), id,
	)
	return err
}

const selectMessage = `
	SELECT id, user_id, from_addr, to_addr, cc_addr, bcc_addr, subject, content,
		status, scheduled_at, opened_at, replied_at, last_error, created_at, updated_at
	FROM messages`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	msg := &models.Message{}
	var cc, bcc, lastError sql.NullString
	var scheduledAt, openedAt, repliedAt sql.NullTime

	err := row.Scan(&msg.ID, &msg.UserID, &msg.From, &msg.To, &cc, &bcc, &msg.Subject, &msg.Content,
		&msg.Status, &scheduledAt, &openedAt, &repliedAt, &lastError, &msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		return nil, err
	}

	msg.Cc = cc.String
	msg.Bcc = bcc.String
	msg.LastError = lastError.String
	if scheduledAt.Valid {
		msg.ScheduledAt = &scheduledAt.Time
	}
	if openedAt.Valid {
		msg.OpenedAt = &openedAt.Time
	}
	if repliedAt.Valid {
		msg.RepliedAt = &repliedAt.Time
	}

	return msg, nil
}

func collectMessages(rows *sql.Rows) ([]models.Message, error) {
	messages := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}
