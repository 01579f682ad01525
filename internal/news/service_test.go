package news

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hray3182/SonarBot/internal/ai"
	"github.com/hray3182/SonarBot/internal/models"
	"github.com/hray3182/SonarBot/internal/repository"
)

type fakeStore struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*models.TopicSubscription
	claims int
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, subs: make(map[int]*models.TopicSubscription)}
}

func (f *fakeStore) FindByUserTopic(_ context.Context, userID int64, topic string) (*models.TopicSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.UserID == userID && s.Topic == topic {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) Create(_ context.Context, sub *models.TopicSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub.SubscriptionID = f.nextID
	f.nextID++
	cp := *sub
	f.subs[sub.SubscriptionID] = &cp
	return nil
}

func (f *fakeStore) Update(_ context.Context, sub *models.TopicSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *sub
	f.subs[sub.SubscriptionID] = &cp
	return nil
}

func (f *fakeStore) Deactivate(_ context.Context, userID int64, id int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok || s.UserID != userID || !s.IsActive {
		return false, nil
	}
	s.IsActive = false
	return true, nil
}

func (f *fakeStore) filter(keep func(*models.TopicSubscription) bool) []*models.TopicSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.TopicSubscription
	for id := 1; id < f.nextID; id++ {
		if s, ok := f.subs[id]; ok && s.IsActive && keep(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}

func (f *fakeStore) ListDue(_ context.Context, now time.Time) ([]*models.TopicSubscription, error) {
	return f.filter(func(s *models.TopicSubscription) bool { return !s.NextRun.After(now) }), nil
}

func (f *fakeStore) ListByFrequency(_ context.Context, freq models.Frequency) ([]*models.TopicSubscription, error) {
	return f.filter(func(s *models.TopicSubscription) bool { return s.Frequency == freq }), nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID int64) ([]*models.TopicSubscription, error) {
	return f.filter(func(s *models.TopicSubscription) bool { return s.UserID == userID }), nil
}

func (f *fakeStore) MarkProcessed(_ context.Context, id int, lastRun, nextRun time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.subs[id]
	s.LastRun = &lastRun
	s.NextRun = nextRun
	return nil
}

func (f *fakeStore) ClaimNextRun(_ context.Context, id int, from, to time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok || !s.NextRun.Equal(from) {
		return false, nil
	}
	f.claims++
	s.NextRun = to
	return true, nil
}

func (f *fakeStore) get(id int) models.TopicSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.subs[id]
}

type fakeUsers map[int64]*models.User

func (f fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

type fakeAsker struct {
	mu      sync.Mutex
	queries []ai.Request
	err     error
}

func (a *fakeAsker) Ask(_ context.Context, req ai.Request) (*ai.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queries = append(a.queries, req)
	if a.err != nil {
		return nil, a.err
	}
	return &ai.Response{Answer: "Three things happened."}, nil
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *fakeMessenger) SendMarkdown(_ context.Context, _ int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, text)
	return nil
}

var start = time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc   *Service
	store *fakeStore
	asker *fakeAsker
	msgr  *fakeMessenger
	now   time.Time
}

func newFixture() *fixture {
	f := &fixture{store: newFakeStore(), asker: &fakeAsker{}, msgr: &fakeMessenger{}, now: start}
	users := fakeUsers{1: {UserID: 1}, 2: {UserID: 2}}
	f.svc = NewService(f.store, users, f.asker, f.msgr, time.UTC)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestSubscribe(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	sub, err := f.svc.Subscribe(ctx, 1, "  fusion energy ", models.FrequencyDaily)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if sub.Topic != "fusion energy" || !sub.NextRun.Equal(start.Add(24*time.Hour)) || !sub.IsActive {
		t.Errorf("new subscription = %+v", sub)
	}

	// same frequency again is a no-op
	f.now = start.Add(time.Hour)
	again, _ := f.svc.Subscribe(ctx, 1, "fusion energy", models.FrequencyDaily)
	if again.SubscriptionID != sub.SubscriptionID || !again.NextRun.Equal(start.Add(24*time.Hour)) {
		t.Errorf("resubscribe changed the subscription: %+v", again)
	}

	// frequency change restarts the period
	changed, _ := f.svc.Subscribe(ctx, 1, "fusion energy", models.FrequencyHourly)
	if changed.Frequency != models.FrequencyHourly || !changed.NextRun.Equal(f.now.Add(time.Hour)) {
		t.Errorf("frequency change = %+v", changed)
	}

	// reactivation
	if ok, _ := f.svc.Unsubscribe(ctx, 1, sub.SubscriptionID); !ok {
		t.Fatal("Unsubscribe() = false")
	}
	f.now = start.Add(2 * time.Hour)
	back, _ := f.svc.Subscribe(ctx, 1, "fusion energy", models.FrequencyWeekly)
	if !back.IsActive || back.SubscriptionID != sub.SubscriptionID || !back.NextRun.Equal(f.now.Add(7*24*time.Hour)) {
		t.Errorf("reactivated = %+v", back)
	}

	if _, err := f.svc.Subscribe(ctx, 1, "x", models.Frequency("monthly")); err == nil {
		t.Error("Subscribe() with unknown frequency should fail")
	}
	if _, err := f.svc.Subscribe(ctx, 1, "   ", models.FrequencyDaily); err == nil {
		t.Error("Subscribe() with empty topic should fail")
	}
}

func TestUnsubscribe(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sub, _ := f.svc.Subscribe(ctx, 1, "ai", models.FrequencyDaily)

	if ok, _ := f.svc.Unsubscribe(ctx, 2, sub.SubscriptionID); ok {
		t.Error("another user unsubscribed")
	}
	if ok, _ := f.svc.Unsubscribe(ctx, 1, sub.SubscriptionID); !ok {
		t.Error("first Unsubscribe() = false")
	}
	if ok, _ := f.svc.Unsubscribe(ctx, 1, sub.SubscriptionID); ok {
		t.Error("second Unsubscribe() = true")
	}
	if subs, _ := f.svc.ListByUser(ctx, 1); len(subs) != 0 {
		t.Errorf("ListByUser() = %v", subs)
	}
}

func TestProcessAdvancesNextRun(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sub, _ := f.svc.Subscribe(ctx, 1, "mars rover", models.FrequencyDaily)

	f.now = start.Add(25 * time.Hour)
	if err := f.svc.Process(ctx, sub); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	got := f.store.get(sub.SubscriptionID)
	if got.LastRun == nil || !got.LastRun.Equal(f.now) {
		t.Errorf("LastRun = %v, want %v", got.LastRun, f.now)
	}
	if !got.NextRun.Equal(f.now.Add(24 * time.Hour)) {
		t.Errorf("NextRun = %v, want process time + 1 day", got.NextRun)
	}

	if len(f.asker.queries) != 1 {
		t.Fatalf("asked %d times", len(f.asker.queries))
	}
	q := f.asker.queries[0]
	if q.Model != NewsModel || !strings.Contains(q.Query, "'mars rover' as of 2025-03-13") {
		t.Errorf("request = %+v", q)
	}
	if len(f.msgr.sent) != 1 || f.msgr.sent[0] != "📰 **Breaking News Update: mars rover**\n\nThree things happened." {
		t.Errorf("sent = %q", f.msgr.sent)
	}
}

func TestProcessFailureKeepsNextRun(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		user  int64
	}{
		{"remote error", func(f *fixture) { f.asker.err = &ai.RemoteError{StatusCode: 500, Message: "boom"} }, 1},
		{"delivery error", func(f *fixture) { f.msgr.err = errors.New("forbidden") }, 1},
		{"missing user", func(f *fixture) {}, 99},
	}

	for _, tt := range tests {
		for _, once := range []bool{false, true} {
			name := tt.name
			if once {
				name += " with claim"
			}
			t.Run(name, func(t *testing.T) {
				f := newFixture()
				f.svc.ExactlyOnce = once
				tt.setup(f)
				ctx := context.Background()
				sub, _ := f.svc.Subscribe(ctx, tt.user, "topic", models.FrequencyHourly)
				before := sub.NextRun

				f.now = start.Add(2 * time.Hour)
				if err := f.svc.Process(ctx, sub); err == nil {
					t.Fatal("Process() error = nil")
				}
				got := f.store.get(sub.SubscriptionID)
				if !got.NextRun.Equal(before) || got.LastRun != nil {
					t.Errorf("after failure NextRun = %v LastRun = %v, want %v and nil", got.NextRun, got.LastRun, before)
				}
			})
		}
	}
}

func TestProcessRetriesAfterReleasedClaim(t *testing.T) {
	f := newFixture()
	f.svc.ExactlyOnce = true
	f.msgr.err = errors.New("forbidden")
	ctx := context.Background()
	sub, _ := f.svc.Subscribe(ctx, 1, "topic", models.FrequencyHourly)

	f.now = start.Add(2 * time.Hour)
	if err := f.svc.Process(ctx, sub); err == nil {
		t.Fatal("Process() error = nil")
	}

	// the failed run gave the claim back, so the next scan can take it
	f.msgr.err = nil
	if err := f.svc.Process(ctx, sub); err != nil {
		t.Fatalf("retry Process() error = %v", err)
	}
	if got := f.store.get(sub.SubscriptionID); !got.NextRun.Equal(f.now.Add(time.Hour)) {
		t.Errorf("NextRun = %v, want %v", got.NextRun, f.now.Add(time.Hour))
	}
}

func TestProcessClaim(t *testing.T) {
	f := newFixture()
	f.svc.ExactlyOnce = true
	ctx := context.Background()
	sub, _ := f.svc.Subscribe(ctx, 1, "topic", models.FrequencyHourly)
	stale := *sub

	f.now = start.Add(2 * time.Hour)
	if err := f.svc.Process(ctx, sub); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	// a second worker holding the old row loses
	if err := f.svc.Process(ctx, &stale); !errors.Is(err, ErrClaimed) {
		t.Errorf("second Process() error = %v, want ErrClaimed", err)
	}
	if len(f.msgr.sent) != 1 {
		t.Errorf("delivered %d updates, want 1", len(f.msgr.sent))
	}
}

func TestDueScan(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.svc.Subscribe(ctx, 1, "hourly topic", models.FrequencyHourly)
	f.svc.Subscribe(ctx, 2, "daily topic", models.FrequencyDaily)

	if n := f.svc.DueScan(ctx, start.Add(30*time.Minute)); n != 0 {
		t.Errorf("DueScan() before anything is due = %d", n)
	}

	f.now = start.Add(90 * time.Minute)
	if n := f.svc.DueScan(ctx, f.now); n != 1 {
		t.Errorf("DueScan() = %d, want 1", n)
	}
	if len(f.msgr.sent) != 1 || !strings.Contains(f.msgr.sent[0], "hourly topic") {
		t.Errorf("sent = %q", f.msgr.sent)
	}
}

func TestTierScan(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.svc.Subscribe(ctx, 1, "a", models.FrequencyWeekly)
	f.svc.Subscribe(ctx, 2, "b", models.FrequencyWeekly)
	f.svc.Subscribe(ctx, 1, "c", models.FrequencyDaily)

	if n := f.svc.TierScan(ctx, models.FrequencyWeekly); n != 2 {
		t.Errorf("TierScan(weekly) = %d, want 2", n)
	}
}

func TestRunnerSweeps(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.svc.now = time.Now
	sub, _ := f.svc.Subscribe(ctx, 1, "topic", models.FrequencyHourly)
	f.store.MarkProcessed(ctx, sub.SubscriptionID, time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))

	r := NewRunner(f.svc, 10*time.Millisecond)
	r.tiers = map[models.Frequency]time.Duration{}
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		f.msgr.mu.Lock()
		n := len(f.msgr.sent)
		f.msgr.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("runner never delivered the due subscription")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}
