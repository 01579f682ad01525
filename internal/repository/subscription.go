package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hray3182/SonarBot/internal/database"
	"github.com/hray3182/SonarBot/internal/models"
)

const subscriptionColumns = `subscription_id, user_id, topic, frequency, last_run, next_run,
	is_active, created_at, updated_at`

type SubscriptionRepository struct {
	db *database.DB
}

func NewSubscriptionRepository(db *database.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// FindByUserTopic returns the user's subscription to topic, active or not.
func (r *SubscriptionRepository) FindByUserTopic(ctx context.Context, userID int64, topic string) (*models.TopicSubscription, error) {
	return scanSubscription(r.db.Pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM topic_subscriptions WHERE user_id = $1 AND topic = $2`,
		userID, topic,
	))
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, subscriptionID int) (*models.TopicSubscription, error) {
	return scanSubscription(r.db.Pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM topic_subscriptions WHERE subscription_id = $1`,
		subscriptionID,
	))
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *models.TopicSubscription) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO topic_subscriptions (user_id, topic, frequency, next_run, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING subscription_id, created_at, updated_at`,
		sub.UserID, sub.Topic, string(sub.Frequency), sub.NextRun, sub.IsActive,
	).Scan(&sub.SubscriptionID, &sub.CreatedAt, &sub.UpdatedAt)
}

func (r *SubscriptionRepository) Update(ctx context.Context, sub *models.TopicSubscription) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE topic_subscriptions SET frequency = $1, next_run = $2, is_active = $3, updated_at = NOW()
		 WHERE subscription_id = $4`,
		string(sub.Frequency), sub.NextRun, sub.IsActive, sub.SubscriptionID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate stops an active subscription owned by userID. It reports false
// when there is nothing to stop.
func (r *SubscriptionRepository) Deactivate(ctx context.Context, userID int64, subscriptionID int) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE topic_subscriptions SET is_active = FALSE, updated_at = NOW()
		 WHERE subscription_id = $1 AND user_id = $2 AND is_active = TRUE`,
		subscriptionID, userID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *SubscriptionRepository) ListDue(ctx context.Context, now time.Time) ([]*models.TopicSubscription, error) {
	return r.list(ctx,
		`SELECT `+subscriptionColumns+` FROM topic_subscriptions
		 WHERE is_active = TRUE AND next_run <= $1 ORDER BY next_run ASC`,
		now,
	)
}

func (r *SubscriptionRepository) ListByFrequency(ctx context.Context, freq models.Frequency) ([]*models.TopicSubscription, error) {
	return r.list(ctx,
		`SELECT `+subscriptionColumns+` FROM topic_subscriptions
		 WHERE is_active = TRUE AND frequency = $1 ORDER BY subscription_id ASC`,
		string(freq),
	)
}

func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID int64) ([]*models.TopicSubscription, error) {
	return r.list(ctx,
		`SELECT `+subscriptionColumns+` FROM topic_subscriptions
		 WHERE user_id = $1 AND is_active = TRUE ORDER BY topic ASC`,
		userID,
	)
}

func (r *SubscriptionRepository) MarkProcessed(ctx context.Context, subscriptionID int, lastRun, nextRun time.Time) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE topic_subscriptions SET last_run = $1, next_run = $2, updated_at = NOW()
		 WHERE subscription_id = $3`,
		lastRun, nextRun, subscriptionID,
	)
	return err
}

// ClaimNextRun moves next_run from one value to another only if nobody else
// moved it first. It reports whether this caller won.
func (r *SubscriptionRepository) ClaimNextRun(ctx context.Context, subscriptionID int, from, to time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE topic_subscriptions SET next_run = $1, updated_at = NOW()
		 WHERE subscription_id = $2 AND next_run = $3 AND is_active = TRUE`,
		to, subscriptionID, from,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SubscriptionRepository) list(ctx context.Context, sql string, args ...any) ([]*models.TopicSubscription, error) {
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.TopicSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func scanSubscription(row pgx.Row) (*models.TopicSubscription, error) {
	sub := &models.TopicSubscription{}
	var frequency string
	err := row.Scan(&sub.SubscriptionID, &sub.UserID, &sub.Topic, &frequency, &sub.LastRun,
		&sub.NextRun, &sub.IsActive, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	sub.Frequency = models.Frequency(frequency)
	return sub, nil
}
