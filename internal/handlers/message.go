package handlers

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gpt-qa-tgbot-go/internal/config"
	"github.com/gpt-qa-tgbot-go/internal/i18n"
	"github.com/gpt-qa-tgbot-go/internal/middleware"
	"github.com/gpt-qa-tgbot-go/internal/services/cache"
	"github.com/gpt-qa-tgbot-go/internal/services/history"
	"github.com/gpt-qa-tgbot-go/internal/services/openai"
	"github.com/gpt-qa-tgbot-go/internal/services/session"
	"github.com/gpt-qa-tgbot-go/pkg/logger"
	"github.com/gpt-qa-tgbot-go/pkg/markdown"
	"github.com/sirupsen/logrus"
)

// MessageHandler routes free-text messages to the pending one-shot
// continuation of their chat. Free text with no pending continuation
// is ignored.
type MessageHandler struct {
	base
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(
	bot sender,
	cfg *config.Config,
	historyService history.Service,
	sessions *session.Manager,
	aiClient openai.Service,
	cacheService cache.Service,
	limiter middleware.RateLimiter,
	metrics *middleware.Metrics,
	localizer *i18n.Localizer,
	logger *logrus.Logger,
) *MessageHandler {
	return &MessageHandler{
		base: base{
			bot:       bot,
			config:    cfg,
			history:   historyService,
			sessions:  sessions,
			ai:        aiClient,
			cache:     cacheService,
			limiter:   limiter,
			metrics:   metrics,
			localizer: localizer,
			logger:    logger,
		},
	}
}

// HandleMessage consumes one free-text message. The pending state is
// read and cleared atomically, so a continuation fires at most once.
func (h *MessageHandler) HandleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if message.IsCommand() || message.Text == "" {
		return nil
	}

	chatID := message.Chat.ID

	pending, err := h.sessions.TakePending(ctx, chatID)
	if err != nil {
		h.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to read pending state")
		return err
	}

	switch pending {
	case session.AwaitingPassword:
		return h.handlePassword(ctx, message)
	case session.AwaitingQuestion:
		return h.handleQuestion(ctx, message)
	case session.AwaitingSearch:
		return h.handleSearchTerm(ctx, message)
	default:
		return nil
	}
}

// handlePassword checks the shared password. A correct password
// verifies an existing user or creates a new verified one; a wrong
// password leaves the user to re-trigger /start.
func (h *MessageHandler) handlePassword(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	userID := message.From.ID
	input := strings.TrimSpace(message.Text)

	if subtle.ConstantTimeCompare([]byte(input), []byte(h.config.Auth.Password)) != 1 {
		h.metrics.RecordVerificationAttempt("failure")
		h.logger.WithField("user_id", userID).Warn("Password check failed")
		h.sendText(chatID, h.text(i18n.MsgWrongPassword, nil))
		return nil
	}

	h.metrics.RecordVerificationAttempt("success")

	user, err := h.history.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	if user != nil {
		if err := h.history.SetVerified(ctx, userID); err != nil {
			return err
		}
	} else {
		if err := h.history.CreateUser(ctx, userID, h.displayName(message.From), chatID, true); err != nil {
			return err
		}
	}

	h.sendText(chatID, h.text(i18n.MsgWelcome, map[string]interface{}{
		"Name": h.displayName(message.From),
	}))
	h.sendMenu(chatID)
	return nil
}

// handleQuestion persists the question, asks the completion service
// and persists the answer. The remote call runs on its own goroutine;
// a chat has at most one pending question, so the prompt -> answer ->
// menu order within a chat is preserved.
func (h *MessageHandler) handleQuestion(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	userID := message.From.ID

	if !h.ensureVerified(ctx, userID, chatID) {
		return nil
	}

	if !h.limiter.Allow(userID) {
		h.sendText(chatID, h.text(i18n.MsgRateLimited, nil))
		h.sendMenu(chatID)
		return nil
	}

	h.sendText(chatID, h.text(i18n.MsgThinking, nil))

	go h.processQuestion(userID, chatID, message.Text)

	return nil
}

func (h *MessageHandler) processQuestion(userID, chatID int64, question string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.OpenAI.Timeout)
	defer cancel()

	log := logger.WithChat(h.logger, chatID, userID)

	questionID, err := h.history.RecordQuestion(ctx, userID, question)
	if err != nil {
		h.metrics.RecordHistoryOperation("record_question", "error")
		log.WithError(err).Error("Failed to record question")
	} else {
		h.metrics.RecordHistoryOperation("record_question", "success")
	}

	answer, cached := h.cache.Get(ctx, question, h.config.OpenAI.Model)
	if cached {
		h.metrics.RecordCacheHit()
	} else {
		h.metrics.RecordCacheMiss()

		start := time.Now()
		answer, err = h.ai.SendQuestion(ctx, question)
		if err != nil {
			h.metrics.RecordCompletionRequest("error", time.Since(start))
			log.WithError(err).Error("Completion request failed")
			answer = ""
		} else {
			h.metrics.RecordCompletionRequest("success", time.Since(start))
		}
	}

	// An empty answer, whether from a failed call or an empty choice
	// set, renders as the apology copy. It is still part of history.
	if answer == "" {
		answer = h.text(i18n.MsgApology, nil)
	} else if !cached {
		if err := h.cache.Set(ctx, question, h.config.OpenAI.Model, answer); err != nil {
			log.WithError(err).Warn("Failed to cache answer")
		}
	}

	// The answer belongs to exactly one question; skip the insert when
	// the question row never made it in.
	if questionID != 0 {
		if err := h.history.RecordAnswer(ctx, questionID, answer); err != nil {
			h.metrics.RecordHistoryOperation("record_answer", "error")
			log.WithError(err).Error("Failed to record answer")
		} else {
			h.metrics.RecordHistoryOperation("record_answer", "success")
		}
	}

	h.sendAnswer(chatID, answer)
	h.sendMenu(chatID)
}

// sendAnswer renders the completion as Telegram HTML, falling back to
// plain text when Telegram rejects the markup.
func (h *MessageHandler) sendAnswer(chatID int64, answer string) {
	msg := tgbotapi.NewMessage(chatID, markdown.ToTelegramHTML(answer))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := h.bot.Send(msg); err != nil {
		h.logger.WithError(err).Warn("Failed to send HTML answer, trying plain text")
		h.sendText(chatID, answer)
	}
}

// handleSearchTerm consumes the search phrase and renders matching
// questions from the user's history.
func (h *MessageHandler) handleSearchTerm(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	userID := message.From.ID

	if !h.ensureVerified(ctx, userID, chatID) {
		return nil
	}

	records, err := h.history.Search(ctx, userID, message.Text)
	if err != nil {
		h.metrics.RecordHistoryOperation("search", "error")
		h.sendText(chatID, h.text(i18n.MsgNothingFound, nil))
		h.sendMenu(chatID)
		return nil
	}
	h.metrics.RecordHistoryOperation("search", "success")

	if len(records) == 0 {
		h.sendText(chatID, h.text(i18n.MsgNothingFound, nil))
	} else {
		h.sendText(chatID, h.formatSearchResults(records))
	}
	h.sendMenu(chatID)
	return nil
}
