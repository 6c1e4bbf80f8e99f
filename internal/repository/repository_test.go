package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/nithindas-k/lazydraft/internal/db"
	"github.com/nithindas-k/lazydraft/internal/models"
)

// setupTestDB creates a SQLite database with all migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return database.DB
}

// createTestUser inserts a user and returns its ID
func createTestUser(t *testing.T, d *sql.DB, email, refreshToken string) string {
	t.Helper()

	users := NewUserRepository(d)
	user := &models.User{
		Email:        email,
		Name:         "Test User",
		RefreshToken: refreshToken,
	}
	if err := users.Upsert(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user.ID
}

func TestUserUpsert(t *testing.T) {
	d := setupTestDB(t)
	users := NewUserRepository(d)
	ctx := context.Background()

	id := createTestUser(t, d, "a@example.com", "rt-1")

	// Second sign-in without a refresh token must keep the stored one
	again := &models.User{Email: "a@example.com", Name: "Renamed"}
	if err := users.Upsert(ctx, again); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if again.ID != id {
		t.Errorf("expected same user ID %s, got %s", id, again.ID)
	}

	token, err := users.RefreshToken(ctx, id)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if token != "rt-1" {
		t.Errorf("expected refresh token preserved, got %q", token)
	}

	// A new refresh token replaces the stored one
	rotated := &models.User{Email: "a@example.com", RefreshToken: "rt-2"}
	if err := users.Upsert(ctx, rotated); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	token, _ = users.RefreshToken(ctx, id)
	if token != "rt-2" {
		t.Errorf("expected rotated token rt-2, got %q", token)
	}
}

func TestUserRefreshTokenUnknownUser(t *testing.T) {
	d := setupTestDB(t)
	users := NewUserRepository(d)

	token, err := users.RefreshToken(context.Background(), "no-such-user")
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if token != "" {
		t.Errorf("expected empty token for unknown user, got %q", token)
	}
}

func TestSessionLifecycle(t *testing.T) {
	d := setupTestDB(t)
	sessions := NewSessionRepository(d)
	ctx := context.Background()

	userID := createTestUser(t, d, "s@example.com", "")

	session, err := sessions.Create(ctx, userID, time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := sessions.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.UserID != userID {
		t.Fatalf("expected session for user %s, got %+v", userID, got)
	}

	if err := sessions.Delete(ctx, session.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err = sessions.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get after delete: %v", err)
	}
	if got != nil {
		t.Error("expected nil session after delete")
	}
}

func TestSessionExpiry(t *testing.T) {
	d := setupTestDB(t)
	sessions := NewSessionRepository(d)
	ctx := context.Background()

	userID := createTestUser(t, d, "e@example.com", "")

	session, err := sessions.Create(ctx, userID, -time.Second)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := sessions.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Error("expected expired session to read as nil")
	}

	n, err := sessions.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 expired session deleted, got %d", n)
	}
}

func TestTemplateCRUD(t *testing.T) {
	d := setupTestDB(t)
	templates := NewTemplateRepository(d)
	ctx := context.Background()

	userID := createTestUser(t, d, "t@example.com", "")
	otherID := createTestUser(t, d, "other@example.com", "")

	tmpl := &models.Template{
		UserID:  userID,
		Name:    "intro",
		Subject: "Hello",
		Content: "<p>Hi there</p>",
	}
	if err := templates.Create(ctx, tmpl); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Ownership scoping: another user cannot read it
	got, err := templates.GetByIDAndUser(ctx, tmpl.ID, otherID)
	if err != nil {
		t.Fatalf("GetByIDAndUser: %v", err)
	}
	if got != nil {
		t.Error("expected nil for other user's lookup")
	}

	tmpl.Subject = "Hello again"
	ok, err := templates.Update(ctx, tmpl)
	if err != nil || !ok {
		t.Fatalf("Update: ok=%v err=%v", ok, err)
	}

	list, err := templates.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 1 || list[0].Subject != "Hello again" {
		t.Errorf("unexpected list result: %+v", list)
	}

	ok, err = templates.DeleteByIDAndUser(ctx, tmpl.ID, userID)
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
}
