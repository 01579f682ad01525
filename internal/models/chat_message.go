package models

import "time"

// ChatMessage is an audit row for one exchanged message.
type ChatMessage struct {
	MessageID int64     `json:"message_id"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}
