package handlers

import (
	"sync"
	"time"
)

// pendingTTL bounds how long a question asked with a keyboard stays answerable.
const pendingTTL = 10 * time.Minute

type pendingReminder struct {
	Text      string
	At        time.Time
	Recurring bool
	Rule      string
}

type pendingEntry[T any] struct {
	value   T
	expires time.Time
}

// pendingStore holds per-user state between a prompt and the button press
// that answers it. Each user has at most one pending reminder and one
// pending topic; a newer prompt replaces the older one.
type pendingStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	reminders map[int64]pendingEntry[pendingReminder]
	topics    map[int64]pendingEntry[string]
}

func newPendingStore(ttl time.Duration) *pendingStore {
	return &pendingStore{
		ttl:       ttl,
		now:       time.Now,
		reminders: make(map[int64]pendingEntry[pendingReminder]),
		topics:    make(map[int64]pendingEntry[string]),
	}
}

func (s *pendingStore) putReminder(userID int64, r pendingReminder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.reminders[userID] = pendingEntry[pendingReminder]{value: r, expires: s.now().Add(s.ttl)}
}

// takeReminder removes and returns the user's pending reminder.
func (s *pendingStore) takeReminder(userID int64) (pendingReminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.reminders[userID]
	delete(s.reminders, userID)
	if !ok || s.now().After(e.expires) {
		return pendingReminder{}, false
	}
	return e.value, true
}

func (s *pendingStore) putTopic(userID int64, topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.topics[userID] = pendingEntry[string]{value: topic, expires: s.now().Add(s.ttl)}
}

func (s *pendingStore) takeTopic(userID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.topics[userID]
	delete(s.topics, userID)
	if !ok || s.now().After(e.expires) {
		return "", false
	}
	return e.value, true
}

// sweep drops expired entries. Caller holds mu.
func (s *pendingStore) sweep() {
	now := s.now()
	for id, e := range s.reminders {
		if now.After(e.expires) {
			delete(s.reminders, id)
		}
	}
	for id, e := range s.topics {
		if now.After(e.expires) {
			delete(s.topics, id)
		}
	}
}
