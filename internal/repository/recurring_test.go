package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nithindas-k/lazydraft/internal/models"
)

func newTestRecurring(userID string, nextRun time.Time, active bool) *models.RecurringMail {
	return &models.RecurringMail{
		UserID:     userID,
		Name:       "weekly digest",
		From:       "me@example.com",
		To:         []string{"a@x.com", "b@x.com"},
		Cc:         []string{"c@x.com"},
		Subject:    "Digest",
		Content:    "<p>News</p>",
		DaysOfWeek: []int{1, 4},
		TimeOfDay:  "09:00",
		Timezone:   "Asia/Kolkata",
		IsActive:   active,
		NextRunAt:  nextRun,
	}
}

func TestRecurringCreateAndGet(t *testing.T) {
	d := setupTestDB(t)
	recurring := NewRecurringRepository(d)
	ctx := context.Background()

	userID := createTestUser(t, d, "r@example.com", "rt")

	rm := newTestRecurring(userID, time.Now().Add(time.Hour), true)
	if err := recurring.Create(ctx, rm); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rm.ID == "" {
		t.Fatal("expected ID to be assigned")
	}

	got, err := recurring.GetByIDAndUser(ctx, rm.ID, userID)
	if err != nil {
		t.Fatalf("GetByIDAndUser: %v", err)
	}
	if got == nil {
		t.Fatal("expected recurring mail, got nil")
	}
	if len(got.To) != 2 || got.To[0] != "a@x.com" {
		t.Errorf("recipient list did not round-trip: %+v", got.To)
	}
	if len(got.DaysOfWeek) != 2 || got.DaysOfWeek[1] != 4 {
		t.Errorf("days did not round-trip: %+v", got.DaysOfWeek)
	}
	if got.LastSentAt != nil {
		t.Errorf("expected nil last_sent_at, got %v", got.LastSentAt)
	}

	// Scoped to owner
	got, err = recurring.GetByIDAndUser(ctx, rm.ID, "someone-else")
	if err != nil {
		t.Fatalf("GetByIDAndUser: %v", err)
	}
	if got != nil {
		t.Error("expected nil for non-owner lookup")
	}
}

func TestRecurringFindDueActive(t *testing.T) {
	d := setupTestDB(t)
	recurring := NewRecurringRepository(d)
	ctx := context.Background()

	userID := createTestUser(t, d, "r2@example.com", "rt")
	now := time.Now()

	dueLater := newTestRecurring(userID, now.Add(-time.Hour), true)
	dueEarlier := newTestRecurring(userID, now.Add(-2*time.Hour), true)
	notDue := newTestRecurring(userID, now.Add(time.Hour), true)
	inactive := newTestRecurring(userID, now.Add(-3*time.Hour), false)

	for _, rm := range []*models.RecurringMail{dueLater, dueEarlier, notDue, inactive} {
		if err := recurring.Create(ctx, rm); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	due, err := recurring.FindDueActive(ctx, now, 25)
	if err != nil {
		t.Fatalf("FindDueActive: %v", err)
	}

	if len(due) != 2 {
		t.Fatalf("expected 2 due definitions, got %d", len(due))
	}
	if due[0].ID != dueEarlier.ID || due[1].ID != dueLater.ID {
		t.Error("expected earliest next_run_at first")
	}
}

func TestRecurringUpdateRunState(t *testing.T) {
	d := setupTestDB(t)
	recurring := NewRecurringRepository(d)
	ctx := context.Background()

	userID := createTestUser(t, d, "r3@example.com", "rt")
	rm := newTestRecurring(userID, time.Now().Add(-time.Minute), true)
	if err := recurring.Create(ctx, rm); err != nil {
		t.Fatalf("Create: %v", err)
	}

	lastSent := time.Now().UTC().Truncate(time.Second)
	nextRun := lastSent.Add(48 * time.Hour)
	if err := recurring.UpdateRunState(ctx, rm.ID, lastSent, nextRun); err != nil {
		t.Fatalf("UpdateRunState: %v", err)
	}

	got, _ := recurring.GetByIDAndUser(ctx, rm.ID, userID)
	if got.LastSentAt == nil || !got.LastSentAt.Equal(lastSent) {
		t.Errorf("expected last_sent_at %v, got %v", lastSent, got.LastSentAt)
	}
	if !got.NextRunAt.Equal(nextRun) {
		t.Errorf("expected next_run_at %v, got %v", nextRun, got.NextRunAt)
	}
	// Name untouched by the run-state update
	if got.Name != "weekly digest" {
		t.Errorf("unexpected name change: %s", got.Name)
	}
}

func TestRecurringUpdateAndDelete(t *testing.T) {
	d := setupTestDB(t)
	recurring := NewRecurringRepository(d)
	ctx := context.Background()

	userID := createTestUser(t, d, "r4@example.com", "rt")
	rm := newTestRecurring(userID, time.Now().Add(time.Hour), true)
	if err := recurring.Create(ctx, rm); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rm.Name = "renamed"
	rm.To = []string{"only@x.com"}
	rm.IsActive = false
	ok, err := recurring.Update(ctx, rm)
	if err != nil || !ok {
		t.Fatalf("Update: ok=%v err=%v", ok, err)
	}

	got, _ := recurring.GetByIDAndUser(ctx, rm.ID, userID)
	if got.Name != "renamed" || len(got.To) != 1 || got.IsActive {
		t.Errorf("update did not apply: %+v", got)
	}

	// Delete scoped to owner
	ok, err = recurring.DeleteByIDAndUser(ctx, rm.ID, "someone-else")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok {
		t.Error("expected delete by non-owner to match nothing")
	}

	ok, err = recurring.DeleteByIDAndUser(ctx, rm.ID, userID)
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
}
