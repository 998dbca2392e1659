package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gpt-qa-tgbot-go/internal/config"
	"github.com/gpt-qa-tgbot-go/internal/i18n"
	"github.com/gpt-qa-tgbot-go/internal/middleware"
	"github.com/gpt-qa-tgbot-go/internal/models"
	"github.com/gpt-qa-tgbot-go/internal/services/cache"
	"github.com/gpt-qa-tgbot-go/internal/services/history"
	"github.com/gpt-qa-tgbot-go/internal/services/openai"
	"github.com/gpt-qa-tgbot-go/internal/services/session"
	"github.com/sirupsen/logrus"
)

// historyDateFormat matches the bot's history rendering.
const historyDateFormat = "2006.01.02, 15:04:05"

// sender is the minimal bot API surface the handlers use, so tests can
// capture outbound traffic.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// base carries the collaborators shared by the command and message
// handlers. The controller holds no state of its own beyond the
// pending continuation kept in the session manager.
type base struct {
	bot       sender
	config    *config.Config
	history   history.Service
	sessions  *session.Manager
	ai        openai.Service
	cache     cache.Service
	limiter   middleware.RateLimiter
	metrics   *middleware.Metrics
	localizer *i18n.Localizer
	logger    *logrus.Logger
}

func (b *base) lang() string {
	return b.config.I18n.DefaultLanguage
}

func (b *base) text(messageID string, data map[string]interface{}) string {
	return b.localizer.Get(b.lang(), messageID, data)
}

func (b *base) sendText(chatID int64, text string) {
	if _, err := b.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
	}
}

// sendMenu renders the persistent main menu.
func (b *base) sendMenu(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, b.text(i18n.MsgChooseAction, nil))
	msg.ReplyMarkup = b.mainMenuKeyboard()
	if _, err := b.bot.Send(msg); err != nil {
		b.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to send menu")
	}
}

func (b *base) mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.text(i18n.BtnAsk, nil), "ask"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.text(i18n.BtnHistory, nil), "history"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.text(i18n.BtnSearch, nil), "search"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.text(i18n.BtnClear, nil), "clear"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.text(i18n.BtnTokens, nil), "tokens"),
		),
	)
}

// askForPassword prompts for the shared password and registers the
// one-shot continuation for the next free-text message.
func (b *base) askForPassword(ctx context.Context, chatID int64) {
	b.sendText(chatID, b.text(i18n.MsgEnterPassword, nil))
	if err := b.sessions.SetPending(ctx, chatID, session.AwaitingPassword); err != nil {
		b.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to register password continuation")
	}
}

// ensureVerified gates every action. An unknown or unverified user is
// pushed into the password flow and the action is dropped.
func (b *base) ensureVerified(ctx context.Context, userID, chatID int64) bool {
	user, err := b.history.GetUser(ctx, userID)
	if err == nil && user != nil && user.IsVerified {
		return true
	}
	if err != nil {
		b.logger.WithError(err).WithField("user_id", userID).Error("Verification lookup failed")
	}

	b.sendText(chatID, b.text(i18n.MsgNotVerified, nil))
	b.askForPassword(ctx, chatID)
	return false
}

func (b *base) formatSearchResults(records []models.QuestionRecord) string {
	var sb strings.Builder
	for i, record := range records {
		sb.WriteString(b.text(i18n.MsgSearchEntry, map[string]interface{}{
			"Index":    i + 1,
			"Asked":    record.Asked.Format(historyDateFormat),
			"Question": record.Text,
		}))
	}
	return sb.String()
}

func (b *base) formatHistory(records []models.HistoryRecord) string {
	var sb strings.Builder
	for i, record := range records {
		sb.WriteString(b.text(i18n.MsgHistoryEntry, map[string]interface{}{
			"Index":    i + 1,
			"Asked":    record.Asked.Format(historyDateFormat),
			"Question": record.Question,
			"Answered": record.Answered.Format(historyDateFormat),
			"Answer":   record.Answer,
		}))
	}
	return sb.String()
}

func (b *base) displayName(from *tgbotapi.User) string {
	if from.FirstName != "" {
		return from.FirstName
	}
	if from.UserName != "" {
		return from.UserName
	}
	return fmt.Sprintf("%d", from.ID)
}
