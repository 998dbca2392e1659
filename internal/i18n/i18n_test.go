package i18n

import (
	"testing"

	"github.com/gpt-qa-tgbot-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalizer(t *testing.T) *Localizer {
	t.Helper()

	localizer, err := NewLocalizer(&config.I18nConfig{
		DefaultLanguage: "en",
		Directory:       "../../configs/i18n",
		Languages:       []string{"en", "ru"},
	})
	require.NoError(t, err)
	return localizer
}

func TestGetLocalizedMessage(t *testing.T) {
	l := newTestLocalizer(t)

	assert.Equal(t, "Please choose the action", l.Get("en", MsgChooseAction, nil))
	assert.Equal(t, "Пожалуйста, выберите действие", l.Get("ru", MsgChooseAction, nil))
}

func TestGetWithTemplateData(t *testing.T) {
	l := newTestLocalizer(t)

	msg := l.Get("en", MsgWelcome, map[string]interface{}{"Name": "Alice"})
	assert.Contains(t, msg, "Welcome, Alice")
}

func TestGetUnknownLanguageFallsBack(t *testing.T) {
	l := newTestLocalizer(t)

	assert.Equal(t, "Please choose the action", l.Get("de", MsgChooseAction, nil))
}

func TestGetUnknownMessageFallsBackToID(t *testing.T) {
	l := newTestLocalizer(t)

	assert.Equal(t, "no_such_message", l.Get("en", "no_such_message", nil))
}

func TestMissingLanguageFile(t *testing.T) {
	_, err := NewLocalizer(&config.I18nConfig{
		DefaultLanguage: "en",
		Directory:       "../../configs/i18n",
		Languages:       []string{"en", "xx"},
	})
	assert.Error(t, err)
}
