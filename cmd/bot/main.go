package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/hray3182/SonarBot/internal/ai"
	"github.com/hray3182/SonarBot/internal/bot"
	"github.com/hray3182/SonarBot/internal/bot/handlers"
	"github.com/hray3182/SonarBot/internal/config"
	"github.com/hray3182/SonarBot/internal/database"
	"github.com/hray3182/SonarBot/internal/history"
	"github.com/hray3182/SonarBot/internal/news"
	"github.com/hray3182/SonarBot/internal/repository"
	"github.com/hray3182/SonarBot/internal/scheduler"
	"github.com/hray3182/SonarBot/internal/server"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid config: %v", err)
	}
	setupLogging(cfg)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logrus.Info("Connected to database")

	// Run migrations
	if err := db.Migrate(ctx); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}
	logrus.Info("Database migrations completed")

	// Initialize AI client
	catalog, err := ai.LoadCatalog(cfg.ModelCatalog)
	if err != nil {
		logrus.Fatalf("Failed to load model catalog: %v", err)
	}
	if cfg.AIAPIKey == "" {
		logrus.Warn("AI_API_KEY is not set, questions will fail")
	}
	aiClient := ai.New(ai.Options{
		APIKey:  cfg.AIAPIKey,
		BaseURL: cfg.AIBaseURL,
		Model:   cfg.AIModel,
		Timeout: cfg.AITimeout,
		Catalog: catalog,
	})
	logrus.WithField("model", cfg.AIModel).Info("AI client initialized")

	tgAPI, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logrus.Fatalf("Failed to create Telegram API: %v", err)
	}
	messenger := bot.NewMessenger(tgAPI, cfg.MaxMessageLength)

	// Create repositories
	userRepo := repository.NewUserRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	chatRepo := repository.NewChatMessageRepository(db)

	// Create and start reminder scheduler
	sched := scheduler.New(reminderRepo, messenger, cfg.Timezone,
		scheduler.WithReconcileInterval(cfg.ReconcileInterval))
	go sched.Start(ctx)

	// Create and start news runner
	newsService := news.NewService(subscriptionRepo, userRepo, aiClient, messenger, cfg.Timezone)
	newsService.ExactlyOnce = cfg.NewsExactlyOnce
	go news.NewRunner(newsService, cfg.NewsSweepInterval).Start(ctx)

	h := handlers.New(tgAPI, messenger, &handlers.Services{
		Users:         userRepo,
		ChatLog:       chatRepo,
		Reminders:     sched,
		Subscriptions: newsService,
		AI:            aiClient,
	}, handlers.Options{
		Catalog:  aiClient.Catalog(),
		History:  history.NewManager(history.ParsePolicy(cfg.HistoryPolicy), cfg.HistoryStoreLimit, cfg.HistoryRequestLimit),
		Location: cfg.Timezone,
		DevMode:  cfg.DevMode,
	})
	b := bot.New(tgAPI, h)
	if err := b.RegisterCommands(); err != nil {
		logrus.WithError(err).Warn("Failed to register bot commands")
	}

	// Handle graceful shutdown; SIGHUP reloads reminders edited in the database
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		for sig := range sigCh {
			if sig == syscall.SIGHUP {
				logrus.Info("Reconciling reminders")
				sched.Notify()
				continue
			}
			logrus.Info("Shutting down...")
			cancel()
			return
		}
	}()

	if cfg.WebhookURL != "" {
		runWebhook(ctx, cfg, tgAPI, b)
	} else {
		logrus.Info("Starting bot in polling mode...")
		if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logrus.Fatalf("Bot error: %v", err)
		}
	}

	waitForUpdates(b, 10*time.Second)
	logrus.Info("Bot stopped")
}

func runWebhook(ctx context.Context, cfg *config.Config, tgAPI *tgbotapi.BotAPI, b *bot.Bot) {
	url := cfg.WebhookURL + server.WebhookPath
	if err := b.SetWebhook(url, cfg.WebhookSecret); err != nil {
		logrus.Fatalf("Failed to set webhook: %v", err)
	}
	defer func() {
		if err := b.DeleteWebhook(); err != nil {
			logrus.WithError(err).Warn("Failed to remove webhook")
		}
	}()

	srv := server.New(cfg.ListenAddr, cfg.WebhookSecret, tgAPI, b)
	if err := srv.Start(ctx); err != nil {
		logrus.WithError(err).Error("Webhook server error")
	}
}

// waitForUpdates gives in-flight updates a bounded amount of time to finish.
func waitForUpdates(b *bot.Bot, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		b.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		logrus.Warn("Timed out waiting for in-flight updates")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	if cfg.DevMode && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)

	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
