package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/hray3182/SonarBot/internal/database"
	"github.com/hray3182/SonarBot/internal/models"
)

const reminderColumns = `reminder_id, user_id, reminder_text, scheduled_at, is_recurring,
	recurrence_rule, is_active, created_at, updated_at`

type ReminderRepository struct {
	db *database.DB
}

func NewReminderRepository(db *database.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Create stores the reminder. reminders_count tracks active reminders only,
// so it is bumped in the same transaction when the reminder is active.
func (r *ReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO reminders (user_id, reminder_text, scheduled_at, is_recurring, recurrence_rule, is_active)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING reminder_id, created_at, updated_at`,
			reminder.UserID, reminder.Text, reminder.ScheduledAt, reminder.IsRecurring,
			reminder.RecurrenceRule, reminder.IsActive,
		).Scan(&reminder.ReminderID, &reminder.CreatedAt, &reminder.UpdatedAt)
		if err != nil {
			return err
		}
		if !reminder.IsActive {
			return nil
		}
		return adjustReminderCount(ctx, tx, reminder.UserID, 1)
	})
}

func (r *ReminderRepository) GetByID(ctx context.Context, reminderID int) (*models.Reminder, error) {
	reminder := &models.Reminder{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE reminder_id = $1`,
		reminderID,
	).Scan(&reminder.ReminderID, &reminder.UserID, &reminder.Text, &reminder.ScheduledAt,
		&reminder.IsRecurring, &reminder.RecurrenceRule, &reminder.IsActive,
		&reminder.CreatedAt, &reminder.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return reminder, nil
}

func (r *ReminderRepository) ListActive(ctx context.Context) ([]*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE is_active = TRUE ORDER BY scheduled_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminders(rows)
}

func (r *ReminderRepository) ListActiveByUser(ctx context.Context, userID int64) ([]*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE user_id = $1 AND is_active = TRUE
		 ORDER BY scheduled_at ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminders(rows)
}

// Deactivate marks a reminder inactive. Deactivating an inactive or missing
// reminder is a no-op.
func (r *ReminderRepository) Deactivate(ctx context.Context, reminderID int) error {
	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		var userID int64
		err := tx.QueryRow(ctx,
			`UPDATE reminders SET is_active = FALSE, updated_at = NOW()
			 WHERE reminder_id = $1 AND is_active
			 RETURNING user_id`,
			reminderID,
		).Scan(&userID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		return adjustReminderCount(ctx, tx, userID, -1)
	})
}

// Delete removes a reminder owned by userID. It reports false when no such
// reminder exists for that user.
func (r *ReminderRepository) Delete(ctx context.Context, reminderID int, userID int64) (bool, error) {
	var deleted bool
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		var wasActive bool
		err := tx.QueryRow(ctx,
			`DELETE FROM reminders WHERE reminder_id = $1 AND user_id = $2 RETURNING is_active`,
			reminderID, userID,
		).Scan(&wasActive)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		deleted = true
		if !wasActive {
			return nil
		}
		return adjustReminderCount(ctx, tx, userID, -1)
	})
	return deleted, err
}

// adjustReminderCount moves the user's active-reminder counter by delta,
// never below zero.
func adjustReminderCount(ctx context.Context, tx pgx.Tx, userID int64, delta int) error {
	_, err := tx.Exec(ctx,
		`UPDATE users SET reminders_count = GREATEST(reminders_count + $2, 0), updated_at = NOW()
		 WHERE user_id = $1`,
		userID, delta,
	)
	return err
}

func scanReminders(rows pgx.Rows) ([]*models.Reminder, error) {
	var reminders []*models.Reminder
	for rows.Next() {
		reminder := &models.Reminder{}
		if err := rows.Scan(&reminder.ReminderID, &reminder.UserID, &reminder.Text, &reminder.ScheduledAt,
			&reminder.IsRecurring, &reminder.RecurrenceRule, &reminder.IsActive,
			&reminder.CreatedAt, &reminder.UpdatedAt); err != nil {
			return nil, err
		}
		reminders = append(reminders, reminder)
	}
	return reminders, rows.Err()
}
