package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gpt-qa-tgbot-go/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	log := logrus.New()
	log.SetLevel(logrus.FatalLevel)

	return NewClient(&config.OpenAIConfig{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "gpt-3.5-turbo-instruct",
		MaxTokens:   500,
		Temperature: 0.7,
		Timeout:     5 * time.Second,
	}, log)
}

func TestSendQuestion(t *testing.T) {
	var captured completionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"text":"\n\n4"}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	answer, err := client.SendQuestion(context.Background(), "What is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4", answer)

	assert.Equal(t, "gpt-3.5-turbo-instruct", captured.Model)
	assert.Equal(t, "What is 2+2?", captured.Prompt)
	assert.Equal(t, 500, captured.MaxTokens)
	assert.Equal(t, 1, captured.N)
}

func TestSendQuestionEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	answer, err := client.SendQuestion(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, answer)
}

func TestSendQuestionBlankChoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"text":"   \n "}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	answer, err := client.SendQuestion(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, answer)
}

func TestSendQuestionServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.SendQuestion(context.Background(), "anything")
	assert.Error(t, err)
}

func TestSendQuestionAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.SendQuestion(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestTokensRemaining(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/dashboard/billing/subscription", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"hard_limit":120000}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	remaining, err := client.TokensRemaining(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(120000), remaining)
}

func TestTokensRemainingBillingFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	// A failed billing lookup must surface a message, never a silent zero.
	_, err := client.TokensRemaining(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "try again later")
}
