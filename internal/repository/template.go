package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nithindas-k/lazydraft/internal/models"
)

type TemplateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Create(ctx context.Context, tmpl *models.Template) error {
	tmpl.ID = uuid.New().String()
	tmpl.CreatedAt = time.Now()
	tmpl.UpdatedAt = tmpl.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO templates (id, user_id, name, subject, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tmpl.ID, tmpl.UserID, tmpl.Name, tmpl.Subject, tmpl.Content, tmpl.CreatedAt, tmpl.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*models.Template, error) {
	tmpl := &models.Template{}
	var content sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, subject, content, created_at, updated_at
		FROM templates WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&tmpl.ID, &tmpl.UserID, &tmpl.Name, &tmpl.Subject, &content, &tmpl.CreatedAt, &tmpl.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tmpl.Content = content.String
	return tmpl, nil
}

func (r *TemplateRepository) ListByUser(ctx context.Context, userID string) ([]models.Template, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, subject, content, created_at, updated_at
		FROM templates WHERE user_id = ? ORDER BY name ASC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []models.Template{}
	for rows.Next() {
		var tmpl models.Template
		var content sql.NullString
		if err := rows.Scan(&tmpl.ID, &tmpl.UserID, &tmpl.Name, &tmpl.Subject, &content, &tmpl.CreatedAt, &tmpl.UpdatedAt); err != nil {
			return nil, err
		}
		tmpl.Content = content.String
		templates = append(templates, tmpl)
	}
	return templates, rows.Err()
}

func (r *TemplateRepository) Update(ctx context.Context, tmpl *models.Template) (bool, error) {
	tmpl.UpdatedAt = time.Now()

	res, err := r.db.ExecContext(ctx, `
		UPDATE templates SET name = ?, subject = ?, content = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		tmpl.Name, tmpl.Subject, tmpl.Content, tmpl.UpdatedAt, tmpl.ID, tmpl.UserID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *TemplateRepository) DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM templates WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
