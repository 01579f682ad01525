package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	updates []tgbotapi.Update
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, update tgbotapi.Update) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, update)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.updates)
}

func TestHealth(t *testing.T) {
	srv := New(":0", "", &tgbotapi.BotAPI{}, &recordingDispatcher{})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body %q: %v", rec.Body.String(), err)
	}
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestWebhook(t *testing.T) {
	const update = `{"update_id": 42, "message": {"message_id": 7, "text": "hello", "chat": {"id": 99, "type": "private"}, "from": {"id": 99, "first_name": "Ada"}}}`

	tests := []struct {
		name       string
		secret     string
		header     string
		body       string
		wantStatus int
		wantCount  int
	}{
		{"no secret configured", "", "", update, http.StatusOK, 1},
		{"matching secret", "s3cret", "s3cret", update, http.StatusOK, 1},
		{"wrong secret", "s3cret", "nope", update, http.StatusUnauthorized, 0},
		{"missing secret", "s3cret", "", update, http.StatusUnauthorized, 0},
		{"malformed body", "", "", "{not json", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &recordingDispatcher{}
			srv := New(":0", tt.secret, &tgbotapi.BotAPI{}, d)

			req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(tt.body))
			if tt.header != "" {
				req.Header.Set(secretHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := d.count(); got != tt.wantCount {
				t.Fatalf("dispatched %d updates, want %d", got, tt.wantCount)
			}
			if tt.wantCount == 1 {
				if d.updates[0].UpdateID != 42 || d.updates[0].Message.Text != "hello" {
					t.Errorf("dispatched update = %+v", d.updates[0])
				}
				if !strings.Contains(rec.Body.String(), `"ok"`) {
					t.Errorf("body = %q, want status ok", rec.Body.String())
				}
			}
		})
	}
}

func TestWebhookRejectsGet(t *testing.T) {
	srv := New(":0", "", &tgbotapi.BotAPI{}, &recordingDispatcher{})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, WebhookPath, nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
