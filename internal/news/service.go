package news

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hray3182/SonarBot/internal/ai"
	"github.com/hray3182/SonarBot/internal/models"
	"github.com/hray3182/SonarBot/internal/repository"
)

// NewsModel has live web search, which headline digests need.
const NewsModel = "sonar-pro"

// ErrClaimed is returned by Process when another worker already took the run.
var ErrClaimed = errors.New("subscription run already claimed")

type SubscriptionStore interface {
	FindByUserTopic(ctx context.Context, userID int64, topic string) (*models.TopicSubscription, error)
	Create(ctx context.Context, sub *models.TopicSubscription) error
	Update(ctx context.Context, sub *models.TopicSubscription) error
	Deactivate(ctx context.Context, userID int64, subscriptionID int) (bool, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.TopicSubscription, error)
	ListByFrequency(ctx context.Context, freq models.Frequency) ([]*models.TopicSubscription, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.TopicSubscription, error)
	MarkProcessed(ctx context.Context, subscriptionID int, lastRun, nextRun time.Time) error
	ClaimNextRun(ctx context.Context, subscriptionID int, from, to time.Time) (bool, error)
}

type UserStore interface {
	GetByID(ctx context.Context, userID int64) (*models.User, error)
}

type Asker interface {
	Ask(ctx context.Context, req ai.Request) (*ai.Response, error)
}

type Messenger interface {
	SendMarkdown(ctx context.Context, chatID int64, text string) error
}

type Service struct {
	store     SubscriptionStore
	users     UserStore
	asker     Asker
	messenger Messenger
	loc       *time.Location
	now       func() time.Time

	// ExactlyOnce claims each run in the store before sending so concurrent
	// workers cannot deliver the same update twice.
	ExactlyOnce bool
}

func NewService(store SubscriptionStore, users UserStore, asker Asker, messenger Messenger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:     store,
		users:     users,
		asker:     asker,
		messenger: messenger,
		loc:       loc,
		now:       time.Now,
	}
}

// Subscribe creates the subscription or brings an existing one in line with
// freq. A reactivated subscription or changed frequency restarts the period.
func (s *Service) Subscribe(ctx context.Context, userID int64, topic string, freq models.Frequency) (*models.TopicSubscription, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("topic is empty")
	}
	if _, err := models.ParseFrequency(string(freq)); err != nil {
		return nil, err
	}
	nextRun := s.now().Add(freq.Period())

	existing, err := s.store.FindByUserTopic(ctx, userID, topic)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		sub := &models.TopicSubscription{
			UserID:    userID,
			Topic:     topic,
			Frequency: freq,
			NextRun:   nextRun,
			IsActive:  true,
		}
		if err := s.store.Create(ctx, sub); err != nil {
			return nil, fmt.Errorf("failed to create subscription: %w", err)
		}
		logrus.WithFields(logrus.Fields{"user_id": userID, "topic": topic, "frequency": freq}).Info("Subscribed to topic")
		return sub, nil
	case err != nil:
		return nil, fmt.Errorf("failed to look up subscription: %w", err)
	}

	if existing.IsActive && existing.Frequency == freq {
		return existing, nil
	}
	existing.IsActive = true
	existing.Frequency = freq
	existing.NextRun = nextRun
	if err := s.store.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "topic": topic, "frequency": freq}).Info("Subscription updated")
	return existing, nil
}

// Unsubscribe reports false when the user has no such active subscription.
func (s *Service) Unsubscribe(ctx context.Context, userID int64, subscriptionID int) (bool, error) {
	return s.store.Deactivate(ctx, userID, subscriptionID)
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]*models.TopicSubscription, error) {
	return s.store.ListByUser(ctx, userID)
}

// DueScan processes every active subscription whose next run has come. It
// returns how many updates were delivered.
func (s *Service) DueScan(ctx context.Context, now time.Time) int {
	subs, err := s.store.ListDue(ctx, now)
	if err != nil {
		logrus.WithError(err).Error("Failed to list due subscriptions")
		return 0
	}
	return s.processAll(ctx, subs)
}

// TierScan processes every active subscription of one frequency, due or not.
func (s *Service) TierScan(ctx context.Context, freq models.Frequency) int {
	subs, err := s.store.ListByFrequency(ctx, freq)
	if err != nil {
		logrus.WithError(err).WithField("frequency", freq).Error("Failed to list subscriptions")
		return 0
	}
	return s.processAll(ctx, subs)
}

func (s *Service) processAll(ctx context.Context, subs []*models.TopicSubscription) int {
	delivered := 0
	for _, sub := range subs {
		if ctx.Err() != nil {
			break
		}
		err := s.Process(ctx, sub)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrClaimed):
			logrus.WithField("subscription_id", sub.SubscriptionID).Debug("Subscription run claimed elsewhere")
		default:
			logrus.WithError(err).WithField("subscription_id", sub.SubscriptionID).Error("Failed to process subscription")
		}
	}
	return delivered
}

// Process fetches the latest news on the topic and pushes it to the user.
// next_run only moves forward when the update was delivered.
func (s *Service) Process(ctx context.Context, sub *models.TopicSubscription) (err error) {
	now := s.now()
	nextRun := now.Add(sub.Frequency.Period())

	if s.ExactlyOnce {
		claimed, cerr := s.store.ClaimNextRun(ctx, sub.SubscriptionID, sub.NextRun, nextRun)
		if cerr != nil {
			return fmt.Errorf("failed to claim subscription: %w", cerr)
		}
		if !claimed {
			return ErrClaimed
		}
		defer func() {
			if err == nil {
				return
			}
			if _, rerr := s.store.ClaimNextRun(ctx, sub.SubscriptionID, nextRun, sub.NextRun); rerr != nil {
				logrus.WithError(rerr).WithField("subscription_id", sub.SubscriptionID).Error("Failed to release subscription claim")
			}
		}()
	}

	user, err := s.users.GetByID(ctx, sub.UserID)
	if err != nil {
		return fmt.Errorf("user %d not found: %w", sub.UserID, err)
	}

	resp, err := s.asker.Ask(ctx, ai.Request{Query: Query(sub.Topic, now.In(s.loc)), Model: NewsModel})
	if err != nil {
		return fmt.Errorf("failed to get news for %q: %w", sub.Topic, err)
	}

	text := fmt.Sprintf("📰 **Breaking News Update: %s**\n\n%s", sub.Topic, resp.Answer)
	if err := s.messenger.SendMarkdown(ctx, user.UserID, text); err != nil {
		return fmt.Errorf("failed to deliver news: %w", err)
	}

	if err := s.store.MarkProcessed(ctx, sub.SubscriptionID, now, nextRun); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	sub.LastRun = &now
	sub.NextRun = nextRun

	logrus.WithFields(logrus.Fields{
		"subscription_id": sub.SubscriptionID,
		"user_id":         sub.UserID,
		"topic":           sub.Topic,
	}).Info("Sent news update")
	return nil
}

// Query is the question sent for a topic digest.
func Query(topic string, now time.Time) string {
	return fmt.Sprintf("What are the latest breaking news or developments about '%s' as of %s? "+
		"Please provide a concise summary of the 2-3 most significant recent developments, "+
		"including only factual information. Focus on events from the last 24 hours if available.",
		topic, now.Format("2006-01-02"))
}
