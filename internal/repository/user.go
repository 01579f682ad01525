package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hray3182/SonarBot/internal/database"
	"github.com/hray3182/SonarBot/internal/history"
	"github.com/hray3182/SonarBot/internal/models"
)

const userColumns = `user_id, user_name, first_name, last_name, is_active, preferred_model,
	thinking_mode, reminders_count, conversation_history, created_at, updated_at`

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreate registers the user on first contact and refreshes their names
// afterwards.
func (r *UserRepository) GetOrCreate(ctx context.Context, user *models.User) (*models.User, error) {
	return scanUser(r.db.Pool.QueryRow(ctx,
		`INSERT INTO users (user_id, user_name, first_name, last_name) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET user_name = EXCLUDED.user_name,
		   first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, updated_at = NOW()
		 RETURNING `+userColumns,
		user.UserID, user.UserName, user.FirstName, user.LastName,
	))
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	return scanUser(r.db.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1`,
		userID,
	))
}

func (r *UserRepository) SetPreferredModel(ctx context.Context, userID int64, model string) error {
	return r.exec(ctx,
		`UPDATE users SET preferred_model = $1, updated_at = NOW() WHERE user_id = $2`,
		model, userID,
	)
}

func (r *UserRepository) SetThinkingMode(ctx context.Context, userID int64, enabled bool) error {
	return r.exec(ctx,
		`UPDATE users SET thinking_mode = $1, updated_at = NOW() WHERE user_id = $2`,
		enabled, userID,
	)
}

func (r *UserRepository) SaveHistory(ctx context.Context, userID int64, log []history.Entry) error {
	if log == nil {
		log = []history.Entry{}
	}
	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	return r.exec(ctx,
		`UPDATE users SET conversation_history = $1::jsonb, updated_at = NOW() WHERE user_id = $2`,
		string(data), userID,
	)
}

func (r *UserRepository) ClearHistory(ctx context.Context, userID int64) error {
	return r.exec(ctx,
		`UPDATE users SET conversation_history = '[]'::jsonb, updated_at = NOW() WHERE user_id = $1`,
		userID,
	)
}

func (r *UserRepository) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	var historyJSON []byte
	err := row.Scan(&user.UserID, &user.UserName, &user.FirstName, &user.LastName, &user.IsActive,
		&user.PreferredModel, &user.ThinkingMode, &user.RemindersCount, &historyJSON,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &user.History); err != nil {
			return nil, fmt.Errorf("failed to decode history of user %d: %w", user.UserID, err)
		}
	}
	return user, nil
}
