package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hray3182/SonarBot/internal/models"
	"github.com/hray3182/SonarBot/internal/repository"
	"github.com/hray3182/SonarBot/internal/rrule"
)

const (
	DefaultReconcileInterval = 10 * time.Minute
	fireTimeout              = 30 * time.Second
)

type ReminderStore interface {
	Create(ctx context.Context, reminder *models.Reminder) error
	GetByID(ctx context.Context, reminderID int) (*models.Reminder, error)
	ListActive(ctx context.Context) ([]*models.Reminder, error)
	ListActiveByUser(ctx context.Context, userID int64) ([]*models.Reminder, error)
	Deactivate(ctx context.Context, reminderID int) error
	Delete(ctx context.Context, reminderID int, userID int64) (bool, error)
}

type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// trigger is the live timer of one reminder. token changes on every arm so a
// callback from a replaced timer can tell it is stale.
type trigger struct {
	timer *time.Timer
	token uuid.UUID
	gen   uint64
	at    time.Time
}

// Scheduler fires reminders at their scheduled time. The store is the source
// of truth; the trigger map is rebuilt from it by Recover.
type Scheduler struct {
	store     ReminderStore
	messenger Messenger
	loc       *time.Location

	reconcileInterval time.Duration
	notifyCh          chan struct{}
	now               func() time.Time

	mu       sync.Mutex
	triggers map[int]*trigger
	gen      uint64
}

type Option func(*Scheduler)

func WithReconcileInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.reconcileInterval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(store ReminderStore, messenger Messenger, loc *time.Location, opts ...Option) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		store:             store,
		messenger:         messenger,
		loc:               loc,
		reconcileInterval: DefaultReconcileInterval,
		notifyCh:          make(chan struct{}, 1),
		now:               time.Now,
		triggers:          make(map[int]*trigger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify triggers an immediate reconcile. Non-blocking if one is already pending.
func (s *Scheduler) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	logrus.Info("Scheduler started")
	ticker := time.NewTicker(s.reconcileInterval)
	defer ticker.Stop()
	defer s.stopAll()

	if err := s.Recover(ctx); err != nil {
		logrus.WithError(err).Error("Failed to recover reminders")
	}

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Scheduler stopped")
			return
		case <-ticker.C:
		case <-s.notifyCh:
			logrus.Debug("Scheduler triggered by notification")
		}
		if err := s.Recover(ctx); err != nil {
			logrus.WithError(err).Error("Failed to reconcile reminders")
		}
	}
}

// Create stores a reminder and arms it. A one-shot reminder whose time has
// already passed is stored inactive and never fires.
func (s *Scheduler) Create(ctx context.Context, userID int64, text string, scheduledAt time.Time, recurring bool, rule string) (*models.Reminder, error) {
	if recurring {
		if _, err := rrule.ParseCron(rule); err != nil {
			return nil, err
		}
	} else {
		rule = ""
	}

	reminder := &models.Reminder{
		UserID:         userID,
		Text:           text,
		ScheduledAt:    scheduledAt.UTC(),
		IsRecurring:    recurring,
		RecurrenceRule: rule,
		IsActive:       recurring || scheduledAt.After(s.now()),
	}
	if err := s.store.Create(ctx, reminder); err != nil {
		return nil, fmt.Errorf("failed to save reminder: %w", err)
	}

	log := logrus.WithFields(logrus.Fields{"reminder_id": reminder.ReminderID, "user_id": userID})
	if !reminder.IsActive {
		log.Warn("Reminder scheduled in the past, stored inactive")
		return reminder, nil
	}
	if err := s.Arm(reminder); err != nil {
		return reminder, err
	}
	log.WithField("recurring", recurring).Info("Reminder created")
	return reminder, nil
}

// Arm installs the trigger for a reminder, replacing any existing one.
func (s *Scheduler) Arm(reminder *models.Reminder) error {
	_, err := s.arm(reminder, uuid.Nil)
	return err
}

// arm computes the next fire time and installs a fresh trigger. With a
// non-nil expect it only replaces a trigger still holding that token, which
// keeps a firing callback from resurrecting a reminder deleted meanwhile.
func (s *Scheduler) arm(reminder *models.Reminder, expect uuid.UUID) (bool, error) {
	now := s.now()
	at := reminder.ScheduledAt
	if reminder.IsRecurring {
		next, err := rrule.NextCron(reminder.RecurrenceRule, now, s.loc)
		if err != nil {
			return false, fmt.Errorf("reminder %d: %w", reminder.ReminderID, err)
		}
		at = next
	}
	delay := at.Sub(now)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.triggers[reminder.ReminderID]
	if expect != uuid.Nil && (old == nil || old.token != expect) {
		return false, nil
	}
	if old != nil {
		old.timer.Stop()
	}

	s.gen++
	id, token := reminder.ReminderID, uuid.New()
	t := &trigger{token: token, gen: s.gen, at: at}
	t.timer = time.AfterFunc(delay, func() { s.fire(id, token) })
	s.triggers[id] = t

	logrus.WithFields(logrus.Fields{"reminder_id": id, "fire_at": at.Format(time.RFC3339)}).Debug("Reminder armed")
	return true, nil
}

func (s *Scheduler) fire(id int, token uuid.UUID) {
	log := logrus.WithField("reminder_id", id)
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Reminder callback panicked")
		}
	}()

	if !s.current(id, token) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	reminder, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		log.WithField("inconsistency", true).Error("Armed reminder missing from store")
		s.disarm(id, token)
		return
	}
	if err != nil {
		// the next reconcile re-arms it
		log.WithError(err).Error("Failed to load reminder")
		s.disarm(id, token)
		return
	}
	if !reminder.IsActive {
		s.disarm(id, token)
		return
	}

	sendErr := s.messenger.SendText(ctx, reminder.UserID, "🔔 Reminder: "+reminder.Text)
	if sendErr != nil {
		log.WithError(sendErr).WithField("user_id", reminder.UserID).Error("Failed to send reminder")
	} else {
		log.WithField("user_id", reminder.UserID).Info("Sent reminder")
	}

	if !reminder.IsRecurring {
		if sendErr != nil {
			// left active; the next reconcile expires it as missed
			s.disarm(id, token)
			return
		}
		if err := s.store.Deactivate(ctx, id); err != nil {
			log.WithError(err).Error("Failed to deactivate reminder")
		}
		s.disarm(id, token)
		return
	}

	if _, err := s.arm(reminder, token); err != nil {
		log.WithError(err).Error("Failed to re-arm recurring reminder")
		s.disarm(id, token)
	}
}

func (s *Scheduler) current(id int, token uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.triggers[id]
	return ok && t.token == token
}

// disarm removes the trigger for id. With a non-nil token only that exact
// trigger is removed.
func (s *Scheduler) disarm(id int, token uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.triggers[id]
	if !ok || (token != uuid.Nil && t.token != token) {
		return
	}
	t.timer.Stop()
	delete(s.triggers, id)
}

// Delete removes the user's reminder and its trigger. It reports false when
// the user has no such reminder.
func (s *Scheduler) Delete(ctx context.Context, userID int64, reminderID int) (bool, error) {
	deleted, err := s.store.Delete(ctx, reminderID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete reminder: %w", err)
	}
	if deleted {
		s.disarm(reminderID, uuid.Nil)
		logrus.WithFields(logrus.Fields{"reminder_id": reminderID, "user_id": userID}).Info("Reminder deleted")
	}
	return deleted, nil
}

func (s *Scheduler) ListActive(ctx context.Context, userID int64) ([]*models.Reminder, error) {
	return s.store.ListActiveByUser(ctx, userID)
}

// Recover brings the triggers in line with the store: one-shots missed while
// the process was down are deactivated, active reminders without a trigger
// are armed and triggers of reminders no longer active are dropped.
func (s *Scheduler) Recover(ctx context.Context) error {
	s.mu.Lock()
	listedAt := s.gen
	s.mu.Unlock()

	reminders, err := s.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active reminders: %w", err)
	}

	now := s.now()
	active := make(map[int]bool, len(reminders))
	armed, expired := 0, 0
	for _, reminder := range reminders {
		active[reminder.ReminderID] = true
		if s.armed(reminder.ReminderID) {
			continue
		}

		if !reminder.IsRecurring && !reminder.ScheduledAt.After(now) {
			if err := s.store.Deactivate(ctx, reminder.ReminderID); err != nil {
				logrus.WithError(err).WithField("reminder_id", reminder.ReminderID).Error("Failed to deactivate missed reminder")
				continue
			}
			expired++
			continue
		}

		if err := s.Arm(reminder); err != nil {
			logrus.WithError(err).WithField("reminder_id", reminder.ReminderID).Error("Failed to arm reminder")
			continue
		}
		armed++
	}

	dropped := 0
	s.mu.Lock()
	for id, t := range s.triggers {
		// triggers armed after the listing may belong to rows it could not see
		if !active[id] && t.gen <= listedAt {
			t.timer.Stop()
			delete(s.triggers, id)
			dropped++
		}
	}
	s.mu.Unlock()

	if armed+expired+dropped > 0 {
		logrus.WithFields(logrus.Fields{"armed": armed, "expired": expired, "dropped": dropped}).Info("Reminders reconciled")
	}
	return nil
}

func (s *Scheduler) armed(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.triggers[id]
	return ok
}

// NextFire returns when the reminder's trigger is due, if it is armed.
func (s *Scheduler) NextFire(id int) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.triggers[id]
	if !ok {
		return time.Time{}, false
	}
	return t.at, true
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.triggers {
		t.timer.Stop()
		delete(s.triggers, id)
	}
}
