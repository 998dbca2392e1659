package i18n

import (
	"encoding/json"
	"fmt"

	"github.com/gpt-qa-tgbot-go/internal/config"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Localizer manages internationalization
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, lang := range cfg.Languages {
		if _, err := bundle.LoadMessageFile(fmt.Sprintf("%s/%s.json", cfg.Directory, lang)); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range cfg.Languages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: cfg.DefaultLanguage,
		localizers:      localizers,
	}, nil
}

// Get returns localized message
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID // Fallback to message ID
	}

	return msg
}

// Message IDs
const (
	MsgWelcome        = "welcome"
	MsgWelcomeBack    = "welcome_back"
	MsgHelp           = "help"
	MsgChooseAction   = "choose_action"
	MsgEnterPassword  = "enter_password"
	MsgWrongPassword  = "wrong_password"
	MsgNotVerified    = "not_verified"
	MsgEnterQuestion  = "enter_question"
	MsgThinking       = "thinking"
	MsgApology        = "apology"
	MsgEnterSearch    = "enter_search"
	MsgNothingFound   = "nothing_found"
	MsgHistoryEmpty   = "history_empty"
	MsgHistoryCleared = "history_cleared"
	MsgHistoryFailed  = "history_failed"
	MsgTokensLeft     = "tokens_left"
	MsgTokensFailed   = "tokens_failed"
	MsgRateLimited    = "rate_limited"
	MsgSearchEntry    = "search_entry"
	MsgHistoryEntry   = "history_entry"

	BtnAsk     = "button.ask"
	BtnHistory = "button.history"
	BtnSearch  = "button.search"
	BtnClear   = "button.clear"
	BtnTokens  = "button.tokens"
)
