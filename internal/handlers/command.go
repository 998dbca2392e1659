package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gpt-qa-tgbot-go/internal/config"
	"github.com/gpt-qa-tgbot-go/internal/i18n"
	"github.com/gpt-qa-tgbot-go/internal/middleware"
	"github.com/gpt-qa-tgbot-go/internal/services/cache"
	"github.com/gpt-qa-tgbot-go/internal/services/history"
	"github.com/gpt-qa-tgbot-go/internal/services/openai"
	"github.com/gpt-qa-tgbot-go/internal/services/session"
	"github.com/sirupsen/logrus"
)

// CommandHandler handles commands and menu callbacks
type CommandHandler struct {
	base
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(
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
) *CommandHandler {
	return &CommandHandler{
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

// HandleCommand processes bot commands
func (h *CommandHandler) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	switch message.Command() {
	case "start":
		return h.handleStart(ctx, message)
	case "help":
		h.sendText(message.Chat.ID, h.text(i18n.MsgHelp, nil))
		return nil
	default:
		return nil
	}
}

// handleStart runs the verification check: known verified users get a
// welcome-back and the menu, everyone else enters the password flow.
func (h *CommandHandler) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	userID := message.From.ID

	user, err := h.history.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	if user != nil && user.IsVerified {
		h.sendText(chatID, h.text(i18n.MsgWelcomeBack, map[string]interface{}{
			"Name": h.displayName(message.From),
		}))
		h.sendMenu(chatID)
		return nil
	}

	h.askForPassword(ctx, chatID)
	return nil
}

// HandleCallbackQuery dispatches the menu action tokens.
func (h *CommandHandler) HandleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback.Message == nil {
		return nil
	}

	action := callback.Data
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID

	// Stop the button's loading spinner.
	if _, err := h.bot.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		h.logger.WithError(err).Debug("Failed to answer callback")
	}

	if !h.ensureVerified(ctx, userID, chatID) {
		return nil
	}

	// The menu message that carried the button is consumed by the action.
	if _, err := h.bot.Request(tgbotapi.NewDeleteMessage(chatID, callback.Message.MessageID)); err != nil {
		h.logger.WithError(err).Debug("Failed to delete menu message")
	}

	switch action {
	case "ask":
		return h.handleAsk(ctx, chatID)
	case "history":
		return h.handleHistory(ctx, userID, chatID)
	case "search":
		return h.handleSearch(ctx, chatID)
	case "clear":
		return h.handleClear(ctx, userID, chatID)
	case "tokens":
		return h.handleTokens(ctx, chatID)
	default:
		h.logger.WithField("action", action).Warn("Unknown callback action")
		return nil
	}
}

func (h *CommandHandler) handleAsk(ctx context.Context, chatID int64) error {
	h.sendText(chatID, h.text(i18n.MsgEnterQuestion, nil))
	return h.sessions.SetPending(ctx, chatID, session.AwaitingQuestion)
}

func (h *CommandHandler) handleSearch(ctx context.Context, chatID int64) error {
	h.sendText(chatID, h.text(i18n.MsgEnterSearch, nil))
	return h.sessions.SetPending(ctx, chatID, session.AwaitingSearch)
}

func (h *CommandHandler) handleHistory(ctx context.Context, userID, chatID int64) error {
	records, err := h.history.View(ctx, userID)
	if err != nil {
		h.metrics.RecordHistoryOperation("view", "error")
		h.sendText(chatID, h.text(i18n.MsgHistoryEmpty, nil))
		h.sendMenu(chatID)
		return nil
	}
	h.metrics.RecordHistoryOperation("view", "success")

	if len(records) == 0 {
		h.sendText(chatID, h.text(i18n.MsgHistoryEmpty, nil))
	} else {
		h.sendText(chatID, h.formatHistory(records))
	}
	h.sendMenu(chatID)
	return nil
}

func (h *CommandHandler) handleClear(ctx context.Context, userID, chatID int64) error {
	if err := h.history.ClearHistory(ctx, userID); err != nil {
		h.metrics.RecordHistoryOperation("clear", "error")
		h.sendText(chatID, h.text(i18n.MsgHistoryFailed, nil))
		h.sendMenu(chatID)
		return nil
	}
	h.metrics.RecordHistoryOperation("clear", "success")

	h.sendText(chatID, h.text(i18n.MsgHistoryCleared, nil))
	h.sendMenu(chatID)
	return nil
}

func (h *CommandHandler) handleTokens(ctx context.Context, chatID int64) error {
	tokens, err := h.ai.TokensRemaining(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Billing lookup failed")
		h.sendText(chatID, h.text(i18n.MsgTokensFailed, nil))
		h.sendMenu(chatID)
		return nil
	}

	h.sendText(chatID, h.text(i18n.MsgTokensLeft, map[string]interface{}{
		"Tokens": fmt.Sprintf("%g", tokens),
	}))
	h.sendMenu(chatID)
	return nil
}
