package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/hray3182/SonarBot/internal/database"
	"github.com/hray3182/SonarBot/internal/history"
	"github.com/hray3182/SonarBot/internal/models"
)

// testDB connects to TEST_DATABASE_URI and migrates it. Tests use user ids
// far outside the Telegram range and clean up after themselves.
func testDB(t *testing.T) *database.DB {
	t.Helper()
	uri := os.Getenv("TEST_DATABASE_URI")
	if uri == "" {
		t.Skip("TEST_DATABASE_URI not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, uri)
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func testUser(t *testing.T, db *database.DB, id int64) *models.User {
	t.Helper()
	ctx := context.Background()
	t.Cleanup(func() {
		db.Pool.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, id)
	})
	user, err := NewUserRepository(db).GetOrCreate(ctx, &models.User{UserID: id, UserName: "tester", FirstName: "Test"})
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	return user
}

func TestUserRepository(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)

	user := testUser(t, db, -1001)
	if user.PreferredModel != "sonar-pro" || user.ThinkingMode || len(user.History) != 0 {
		t.Errorf("new user = %+v, want defaults", user)
	}

	if err := repo.SetPreferredModel(ctx, user.UserID, "sonar"); err != nil {
		t.Fatalf("SetPreferredModel() error = %v", err)
	}
	if err := repo.SetThinkingMode(ctx, user.UserID, true); err != nil {
		t.Fatalf("SetThinkingMode() error = %v", err)
	}
	log := []history.Entry{{Role: history.RoleUser, Content: "hi"}, {Role: history.RoleAssistant, Content: "hello"}}
	if err := repo.SaveHistory(ctx, user.UserID, log); err != nil {
		t.Fatalf("SaveHistory() error = %v", err)
	}

	got, err := repo.GetByID(ctx, user.UserID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.PreferredModel != "sonar" || !got.ThinkingMode || len(got.History) != 2 || got.History[1].Content != "hello" {
		t.Errorf("GetByID() = %+v", got)
	}

	if err := repo.ClearHistory(ctx, user.UserID); err != nil {
		t.Fatalf("ClearHistory() error = %v", err)
	}
	got, _ = repo.GetByID(ctx, user.UserID)
	if len(got.History) != 0 {
		t.Errorf("history after clear = %v", got.History)
	}

	if _, err := repo.GetByID(ctx, -999999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestReminderRepository(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewReminderRepository(db)
	users := NewUserRepository(db)
	user := testUser(t, db, -1002)

	reminder := &models.Reminder{
		UserID:      user.UserID,
		Text:        "water the plants",
		ScheduledAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		IsActive:    true,
	}
	if err := repo.Create(ctx, reminder); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if reminder.ReminderID == 0 {
		t.Fatal("Create() did not assign an id")
	}

	if u, _ := users.GetByID(ctx, user.UserID); u.RemindersCount != 1 {
		t.Errorf("reminders_count = %d, want 1", u.RemindersCount)
	}

	active, err := repo.ListActiveByUser(ctx, user.UserID)
	if err != nil || len(active) != 1 || active[0].Text != "water the plants" {
		t.Fatalf("ListActiveByUser() = %v, %v", active, err)
	}

	if ok, err := repo.Delete(ctx, reminder.ReminderID, user.UserID+1); err != nil || ok {
		t.Errorf("Delete(other user) = %v, %v, want false", ok, err)
	}

	if err := repo.Deactivate(ctx, reminder.ReminderID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	if got, _ := repo.GetByID(ctx, reminder.ReminderID); got.IsActive {
		t.Error("reminder still active after Deactivate()")
	}
	if u, _ := users.GetByID(ctx, user.UserID); u.RemindersCount != 0 {
		t.Errorf("reminders_count after Deactivate() = %d, want 0", u.RemindersCount)
	}
	if err := repo.Deactivate(ctx, reminder.ReminderID); err != nil {
		t.Fatalf("second Deactivate() error = %v", err)
	}

	if ok, err := repo.Delete(ctx, reminder.ReminderID, user.UserID); err != nil || !ok {
		t.Fatalf("Delete() = %v, %v, want true", ok, err)
	}
	if ok, _ := repo.Delete(ctx, reminder.ReminderID, user.UserID); ok {
		t.Error("second Delete() reported true")
	}
	if u, _ := users.GetByID(ctx, user.UserID); u.RemindersCount != 0 {
		t.Errorf("reminders_count = %d, want 0", u.RemindersCount)
	}
	if _, err := repo.GetByID(ctx, reminder.ReminderID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestReminderCountTracksActive(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewReminderRepository(db)
	users := NewUserRepository(db)
	user := testUser(t, db, -1005)

	past := &models.Reminder{
		UserID:      user.UserID,
		Text:        "already gone",
		ScheduledAt: time.Now().Add(-time.Hour).UTC().Truncate(time.Second),
		IsActive:    false,
	}
	if err := repo.Create(ctx, past); err != nil {
		t.Fatalf("Create(inactive) error = %v", err)
	}
	if u, _ := users.GetByID(ctx, user.UserID); u.RemindersCount != 0 {
		t.Errorf("reminders_count after inactive Create() = %d, want 0", u.RemindersCount)
	}

	live := &models.Reminder{
		UserID:      user.UserID,
		Text:        "still ahead",
		ScheduledAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		IsActive:    true,
	}
	if err := repo.Create(ctx, live); err != nil {
		t.Fatalf("Create(active) error = %v", err)
	}

	// deleting the inactive one leaves the active count alone
	if ok, err := repo.Delete(ctx, past.ReminderID, user.UserID); err != nil || !ok {
		t.Fatalf("Delete(inactive) = %v, %v, want true", ok, err)
	}
	if u, _ := users.GetByID(ctx, user.UserID); u.RemindersCount != 1 {
		t.Errorf("reminders_count = %d, want 1", u.RemindersCount)
	}

	if ok, err := repo.Delete(ctx, live.ReminderID, user.UserID); err != nil || !ok {
		t.Fatalf("Delete(active) = %v, %v, want true", ok, err)
	}
	if u, _ := users.GetByID(ctx, user.UserID); u.RemindersCount != 0 {
		t.Errorf("reminders_count = %d, want 0", u.RemindersCount)
	}
}

func TestSubscriptionRepository(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewSubscriptionRepository(db)
	user := testUser(t, db, -1003)

	now := time.Now().UTC().Truncate(time.Second)
	sub := &models.TopicSubscription{
		UserID:    user.UserID,
		Topic:     "fusion energy",
		Frequency: models.FrequencyDaily,
		NextRun:   now.Add(-time.Minute),
		IsActive:  true,
	}
	if err := repo.Create(ctx, sub); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	found, err := repo.FindByUserTopic(ctx, user.UserID, "fusion energy")
	if err != nil || found.SubscriptionID != sub.SubscriptionID || found.Frequency != models.FrequencyDaily {
		t.Fatalf("FindByUserTopic() = %+v, %v", found, err)
	}

	due, err := repo.ListDue(ctx, now)
	if err != nil {
		t.Fatalf("ListDue() error = %v", err)
	}
	var isDue bool
	for _, d := range due {
		isDue = isDue || d.SubscriptionID == sub.SubscriptionID
	}
	if !isDue {
		t.Error("subscription not listed as due")
	}

	next := now.Add(24 * time.Hour)
	if ok, err := repo.ClaimNextRun(ctx, sub.SubscriptionID, sub.NextRun, next); err != nil || !ok {
		t.Fatalf("ClaimNextRun() = %v, %v, want true", ok, err)
	}
	if ok, _ := repo.ClaimNextRun(ctx, sub.SubscriptionID, sub.NextRun, next); ok {
		t.Error("second ClaimNextRun() with stale value succeeded")
	}

	if err := repo.MarkProcessed(ctx, sub.SubscriptionID, now, next); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	got, _ := repo.GetByID(ctx, sub.SubscriptionID)
	if got.LastRun == nil || !got.LastRun.Equal(now) || !got.NextRun.Equal(next) {
		t.Errorf("after MarkProcessed = %+v", got)
	}

	if ok, err := repo.Deactivate(ctx, user.UserID, sub.SubscriptionID); err != nil || !ok {
		t.Fatalf("Deactivate() = %v, %v", ok, err)
	}
	if ok, _ := repo.Deactivate(ctx, user.UserID, sub.SubscriptionID); ok {
		t.Error("Deactivate() on inactive subscription reported true")
	}
	if subs, _ := repo.ListByUser(ctx, user.UserID); len(subs) != 0 {
		t.Errorf("ListByUser() = %v, want none", subs)
	}
}

func TestChatMessageRepository(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewChatMessageRepository(db)
	user := testUser(t, db, -1004)

	for _, role := range []string{history.RoleUser, history.RoleAssistant} {
		if err := repo.Save(ctx, &models.ChatMessage{UserID: user.UserID, Role: role, Content: "x", Model: "sonar"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	n, err := repo.DeleteByUser(ctx, user.UserID)
	if err != nil || n != 2 {
		t.Errorf("DeleteByUser() = %d, %v, want 2", n, err)
	}
}
