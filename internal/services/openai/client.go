package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gpt-qa-tgbot-go/internal/config"
	"github.com/sirupsen/logrus"
)

// Service wraps the completion and billing endpoints.
type Service interface {
	SendQuestion(ctx context.Context, question string) (string, error)
	TokensRemaining(ctx context.Context) (float64, error)
}

// Client implements Service against the OpenAI HTTP API.
type Client struct {
	config     *config.OpenAIConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a new OpenAI client
func NewClient(cfg *config.OpenAIConfig, logger *logrus.Logger) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

type completionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	N           int     `json:"n"`
	Temperature float64 `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SendQuestion issues one synchronous completion request with the
// configured model and a single candidate. An empty choice set is not
// an error; the handler shows the apology copy for it.
func (c *Client) SendQuestion(ctx context.Context, question string) (string, error) {
	reqBody := completionRequest{
		Model:       c.config.Model,
		Prompt:      question,
		MaxTokens:   c.config.MaxTokens,
		N:           1,
		Temperature: c.config.Temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/completions", strings.TrimSuffix(c.config.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.config.APIKey))

	c.logger.WithField("model", c.config.Model).Debug("Sending completion request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(body),
		}).Error("Completion request failed")
		return "", fmt.Errorf("completion request failed with status %d", resp.StatusCode)
	}

	var result completionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Error.Message != "" {
		return "", fmt.Errorf("completion error: %s", result.Error.Message)
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Text) == "" {
		c.logger.Warn("Completion returned no text")
		return "", nil
	}

	return strings.TrimSpace(result.Choices[0].Text), nil
}

type subscriptionResponse struct {
	HardLimit float64 `json:"hard_limit"`
}

// TokensRemaining looks up the account's hard usage limit. A non-200
// response yields an error with an informative message, so the caller
// always has something to show.
func (c *Client) TokensRemaining(ctx context.Context) (float64, error) {
	url := fmt.Sprintf("%s/dashboard/billing/subscription", strings.TrimSuffix(c.config.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.config.APIKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to reach billing endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WithField("status", resp.StatusCode).Error("Billing request failed")
		return 0, fmt.Errorf("billing lookup failed with status %d: try again later", resp.StatusCode)
	}

	var result subscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to parse billing response: %w", err)
	}

	return result.HardLimit, nil
}
