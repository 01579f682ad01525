// Package server exposes the Telegram webhook and a health probe over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const (
	WebhookPath  = "/telegram/webhook"
	secretHeader = "X-Telegram-Bot-Api-Secret-Token"

	shutdownTimeout = 10 * time.Second
)

// UpdateParser decodes a webhook delivery. *tgbotapi.BotAPI implements it.
type UpdateParser interface {
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// Dispatcher processes an update asynchronously.
type Dispatcher interface {
	Dispatch(ctx context.Context, update tgbotapi.Update)
}

type Server struct {
	addr       string
	secret     string
	parser     UpdateParser
	dispatcher Dispatcher

	// baseCtx outlives the request so dispatched work is not cancelled when
	// the webhook call returns.
	baseCtx context.Context
}

func New(addr, secret string, parser UpdateParser, dispatcher Dispatcher) *Server {
	return &Server{
		addr:       addr,
		secret:     secret,
		parser:     parser,
		dispatcher: dispatcher,
		baseCtx:    context.Background(),
	}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.With(SecretToken(s.secret)).Post(WebhookPath, s.webhook)
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", s.addr).Info("Webhook server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logrus.Info("Webhook server stopped")
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	update, err := s.parser.HandleUpdate(r)
	if err != nil {
		logrus.WithError(err).Warn("Failed to parse webhook update")
		writeError(w, http.StatusBadRequest, "invalid update")
		return
	}
	s.dispatcher.Dispatch(s.baseCtx, *update)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
