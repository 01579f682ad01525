package models

import (
	"time"

	"github.com/hray3182/SonarBot/internal/history"
)

type User struct {
	UserID         int64           `json:"user_id"`
	UserName       string          `json:"user_name"`
	FirstName      string          `json:"first_name"`
	LastName       string          `json:"last_name"`
	IsActive       bool            `json:"is_active"`
	PreferredModel string          `json:"preferred_model"`
	ThinkingMode   bool            `json:"thinking_mode"`
	RemindersCount int             `json:"reminders_count"`
	History        []history.Entry `json:"conversation_history"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// DisplayName is the name used to greet the user.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.UserName != "" {
		return u.UserName
	}
	return "there"
}
