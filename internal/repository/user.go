package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nithindas-k/lazydraft/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert creates the user on first sign-in and refreshes profile fields on
// later ones. A non-empty refresh token always replaces the stored one;
// Google only returns it on consent, so an empty value must not clobber a
// previously granted credential.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	existing, err := r.GetByEmail(ctx, user.Email)
	if err != nil {
		return err
	}

	now := time.Now()
	if existing == nil {
		user.ID = uuid.New().String()
		user.CreatedAt = now
		user.UpdatedAt = now
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO users (id, email, name, picture, refresh_token, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			user.ID, user.Email, user.Name, user.Picture, user.RefreshToken, user.CreatedAt, user.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	}

	user.ID = existing.ID
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = now
	if user.RefreshToken == "" {
		user.RefreshToken = existing.RefreshToken
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE users SET name = ?, picture = ?, refresh_token = ?, updated_at = ?
		WHERE id = ?`,
		user.Name, user.Picture, user.RefreshToken, user.UpdatedAt, user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// GetByID returns a user by ID, or nil
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getBy(ctx, "id", id)
}

// GetByEmail returns a user by email, or nil
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*models.User, error) {
	user := &models.User{}
	var name, picture, refreshToken sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, picture, refresh_token, created_at, updated_at
		FROM users WHERE `+column+` = ?`, value,
	).Scan(&user.ID, &user.Email, &name, &picture, &refreshToken, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user.Name = name.String
	user.Picture = picture.String
	user.RefreshToken = refreshToken.String
	return user, nil
}

// RefreshToken resolves the Gmail refresh credential for a user. Returns an
// empty string when the user is unknown or never granted the send scope.
func (r *UserRepository) RefreshToken(ctx context.Context, userID string) (string, error) {
	var token sql.NullString
	err := r.db.QueryRowContext(ctx, "SELECT refresh_token FROM users WHERE id = ?", userID).Scan(&token)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token.String, nil
}

// ClearRefreshToken drops the stored credential, e.g. after Google reports
// it revoked.
func (r *UserRepository) ClearRefreshToken(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE users SET refresh_token = '', updated_at = ? WHERE id = ?", time.Now(), userID)
	return err
}
