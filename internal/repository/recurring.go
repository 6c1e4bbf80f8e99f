package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nithindas-k/lazydraft/internal/models"
)

type RecurringRepository struct {
	db *sql.DB
}

func NewRecurringRepository(db *sql.DB) *RecurringRepository {
	return &RecurringRepository{db: db}
}

// Create persists a new recurring mail definition
func (r *RecurringRepository) Create(ctx context.Context, rm *models.RecurringMail) error {
	rm.ID = uuid.New().String()
	rm.CreatedAt = time.Now()
	rm.UpdatedAt = rm.CreatedAt

	to, cc, bcc, days, err := marshalListFields(rm)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO recurring_mails (id, user_id, name, from_addr, to_addrs, cc_addrs, bcc_addrs, subject, content, days_of_week, time_of_day, timezone, is_active, last_sent_at, next_run_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rm.ID, rm.UserID, rm.Name, rm.From, to, cc, bcc, rm.Subject, rm.Content, days, rm.TimeOfDay, rm.Timezone, rm.IsActive, rm.LastSentAt, rm.NextRunAt, rm.CreatedAt, rm.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create recurring mail: %w", err)
	}
	return nil
}

// GetByIDAndUser returns a definition scoped to its owner, or nil
func (r *RecurringRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*models.RecurringMail, error) {
	row := r.db.QueryRowContext(ctx, selectRecurring+" WHERE id = ? AND user_id = ?", id, userID)
	rm, err := scanRecurring(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rm, err
}

// ListByUser returns the user's definitions, newest first
func (r *RecurringRepository) ListByUser(ctx context.Context, userID string) ([]models.RecurringMail, error) {
	rows, err := r.db.QueryContext(ctx, selectRecurring+" WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecurring(rows)
}

// Update rewrites all mutable fields of a definition, scoped to its owner.
// Returns false if no row matched.
func (r *RecurringRepository) Update(ctx context.Context, rm *models.RecurringMail) (bool, error) {
	rm.UpdatedAt = time.Now()

	to, cc, bcc, days, err := marshalListFields(rm)
	if err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_mails
		SET name = ?, from_addr = ?, to_addrs = ?, cc_addrs = ?, bcc_addrs = ?, subject = ?, content = ?,
			days_of_week = ?, time_of_day = ?, timezone = ?, is_active = ?, last_sent_at = ?, next_run_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		rm.Name, rm.From, to, cc, bcc, rm.Subject, rm.Content,
		days, rm.TimeOfDay, rm.Timezone, rm.IsActive, rm.LastSentAt, rm.NextRunAt, rm.UpdatedAt,
		rm.ID, rm.UserID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update recurring mail: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateRunState advances last_sent_at and next_run_at after a sweep run
// without touching any user-editable field.
func (r *RecurringRepository) UpdateRunState(ctx context.Context, id string, lastSentAt, nextRunAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE recurring_mails SET last_sent_at = ?, next_run_at = ?, updated_at = ?
		WHERE id = ?`,
		lastSentAt, nextRunAt, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update run state: %w", err)
	}
	return nil
}

// DeleteByIDAndUser removes a definition scoped to its owner
func (r *RecurringRepository) DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM recurring_mails WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete recurring mail: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindDueActive returns up to limit active definitions whose next_run_at has
// passed, earliest due first.
func (r *RecurringRepository) FindDueActive(ctx context.Context, now time.Time, limit int) ([]models.RecurringMail, error) {
	rows, err := r.db.QueryContext(ctx, selectRecurring+`
		WHERE is_active = 1 AND next_run_at <= ?
		ORDER BY next_run_at ASC
		LIMIT ?`,
		now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecurring(rows)
}

const selectRecurring = `
	SELECT id, user_id, name, from_addr, to_addrs, cc_addrs, bcc_addrs, subject, content,
		days_of_week, time_of_day, timezone, is_active, last_sent_at, next_run_at, created_at, updated_at
	FROM recurring_mails`

func marshalListFields(rm *models.RecurringMail) (to, cc, bcc, days string, err error) {
	toB, err := json.Marshal(rm.To)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to marshal recipients: %w", err)
	}
	ccB, err := json.Marshal(rm.Cc)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to marshal cc: %w", err)
	}
	bccB, err := json.Marshal(rm.Bcc)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to marshal bcc: %w", err)
	}
	daysB, err := json.Marshal(rm.DaysOfWeek)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to marshal days: %w", err)
	}
	return string(toB), string(ccB), string(bccB), string(daysB), nil
}

func scanRecurring(row rowScanner) (*models.RecurringMail, error) {
	rm := &models.RecurringMail{}
	var to, days string
	var cc, bcc sql.NullString
	var lastSentAt sql.NullTime

	err := row.Scan(&rm.ID, &rm.UserID, &rm.Name, &rm.From, &to, &cc, &bcc, &rm.Subject, &rm.Content,
		&days, &rm.TimeOfDay, &rm.Timezone, &rm.IsActive, &lastSentAt, &rm.NextRunAt, &rm.CreatedAt, &rm.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(to), &rm.To); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipients: %w", err)
	}
	if cc.Valid && cc.String != "" {
		if err := json.Unmarshal([]byte(cc.String), &rm.Cc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cc: %w", err)
		}
	}
	if bcc.Valid && bcc.String != "" {
		if err := json.Unmarshal([]byte(bcc.String), &rm.Bcc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bcc: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(days), &rm.DaysOfWeek); err != nil {
		return nil, fmt.Errorf("failed to unmarshal days: %w", err)
	}
	if lastSentAt.Valid {
		rm.LastSentAt = &lastSentAt.Time
	}

	return rm, nil
}

func collectRecurring(rows *sql.Rows) ([]models.RecurringMail, error) {
	mails := []models.RecurringMail{}
	for rows.Next() {
		rm, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		mails = append(mails, *rm)
	}
	return mails, rows.Err()
}
