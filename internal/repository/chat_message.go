package repository

import (
	"context"

	"github.com/hray3182/SonarBot/internal/database"
	"github.com/hray3182/SonarBot/internal/models"
)

type ChatMessageRepository struct {
	db *database.DB
}

func NewChatMessageRepository(db *database.DB) *ChatMessageRepository {
	return &ChatMessageRepository{db: db}
}

func (r *ChatMessageRepository) Save(ctx context.Context, msg *models.ChatMessage) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO chat_messages (user_id, role, content, model) VALUES ($1, $2, $3, $4)
		 RETURNING message_id, created_at`,
		msg.UserID, msg.Role, msg.Content, msg.Model,
	).Scan(&msg.MessageID, &msg.CreatedAt)
}

func (r *ChatMessageRepository) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM chat_messages WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
