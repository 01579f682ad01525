package models

import "time"

type Reminder struct {
	ReminderID     int       `json:"reminder_id"`
	UserID         int64     `json:"user_id"`
	Text           string    `json:"reminder_text"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	IsRecurring    bool      `json:"is_recurring"`
	RecurrenceRule string    `json:"recurrence_rule"` // 5-field cron expression
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
