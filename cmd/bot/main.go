package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gpt-qa-tgbot-go/internal/config"
	"github.com/gpt-qa-tgbot-go/internal/database"
	"github.com/gpt-qa-tgbot-go/internal/handlers"
	"github.com/gpt-qa-tgbot-go/internal/i18n"
	"github.com/gpt-qa-tgbot-go/internal/middleware"
	"github.com/gpt-qa-tgbot-go/internal/services/cache"
	"github.com/gpt-qa-tgbot-go/internal/services/history"
	"github.com/gpt-qa-tgbot-go/internal/services/openai"
	"github.com/gpt-qa-tgbot-go/internal/services/session"
	"github.com/gpt-qa-tgbot-go/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// It's okay if .env doesn't exist; secrets may come from the
	// real environment. Missing secrets fail config validation below.
	if err := godotenv.Load(*envFile); err != nil {
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting Q&A bot...")

	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.WithError(err).Fatal("Failed to create bot")
	}

	bot.Debug = cfg.Logging.Level == "debug"
	log.WithField("username", bot.Self.UserName).Info("Bot authorized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Init(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}

	historyService := history.NewService(db, log)

	sessions, err := session.NewManager(&cfg.Session, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize session store")
	}

	aiClient := openai.NewClient(&cfg.OpenAI, log)
	cacheService := cache.NewCache(&cfg.Cache, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	metrics := middleware.NewMetrics()

	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	commandHandler := handlers.NewCommandHandler(
		bot, cfg, historyService, sessions, aiClient, cacheService, rateLimiter, metrics, localizer, log,
	)
	messageHandler := handlers.NewMessageHandler(
		bot, cfg, historyService, sessions, aiClient, cacheService, rateLimiter, metrics, localizer, log,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go runWithBackoff(ctx, bot, cfg, commandHandler, messageHandler, metrics, log)

	<-sigChan
	log.Info("Shutdown signal received")

	cancel()
	bot.StopReceivingUpdates()

	// Give in-flight handlers time to finish
	time.Sleep(2 * time.Second)

	log.Info("Bot stopped")
}

// runWithBackoff keeps the update loop alive. A crashed or drained
// loop restarts with exponential backoff instead of spinning; the
// backoff resets after a healthy run.
func runWithBackoff(
	ctx context.Context,
	bot *tgbotapi.BotAPI,
	cfg *config.Config,
	commandHandler *handlers.CommandHandler,
	messageHandler *handlers.MessageHandler,
	metrics *middleware.Metrics,
	log *logrus.Logger,
) {
	const maxBackoff = 60 * time.Second
	backoff := time.Second

	for {
		started := time.Now()
		err := consumeUpdates(ctx, bot, cfg, commandHandler, messageHandler, metrics, log)
		if ctx.Err() != nil {
			return
		}

		if time.Since(started) > time.Minute {
			backoff = time.Second
		}

		log.WithError(err).WithField("backoff", backoff.String()).Error("Update loop stopped, restarting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// consumeUpdates runs one long-polling session until the context is
// cancelled, the channel drains or a handler panics.
func consumeUpdates(
	ctx context.Context,
	bot *tgbotapi.BotAPI,
	cfg *config.Config,
	commandHandler *handlers.CommandHandler,
	messageHandler *handlers.MessageHandler,
	metrics *middleware.Metrics,
	log *logrus.Logger,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("update loop panic: %v", r)
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.Bot.UpdateTimeout

	updates := bot.GetUpdatesChan(u)
	log.Info("Using long polling")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("update channel closed")
			}

			if update.CallbackQuery != nil {
				metrics.RecordMessageReceived("callback")
				if err := commandHandler.HandleCallbackQuery(ctx, update.CallbackQuery); err != nil {
					log.WithError(err).Error("Failed to handle callback query")
					metrics.RecordMessageProcessed("error")
				} else {
					metrics.RecordMessageProcessed("success")
				}
				continue
			}

			if update.Message == nil {
				continue
			}

			if update.Message.IsCommand() {
				metrics.RecordMessageReceived("command")
				metrics.RecordCommandExecuted(update.Message.Command())

				if err := commandHandler.HandleCommand(ctx, update.Message); err != nil {
					log.WithError(err).Error("Failed to handle command")
					metrics.RecordMessageProcessed("error")
				} else {
					metrics.RecordMessageProcessed("success")
				}
				continue
			}

			metrics.RecordMessageReceived("message")
			if err := messageHandler.HandleMessage(ctx, update.Message); err != nil {
				log.WithError(err).Error("Failed to handle message")
				metrics.RecordMessageProcessed("error")
			} else {
				metrics.RecordMessageProcessed("success")
			}
		}
	}
}
