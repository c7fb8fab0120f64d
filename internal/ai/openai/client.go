package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yegors/geofs-atc/internal/ai"
	"github.com/yegors/geofs-atc/pkg/logger"
)

// Client talks to an OpenAI-compatible chat completions endpoint
type Client struct {
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
	baseURL    string // Stored without trailing slash
	maxRetries int

	chatCompletionsPath string
}

// NewClient creates a new OpenAI client
func NewClient(apiKey string, log *logger.Logger, baseURL string, maxRetries int) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "https://api.openai.com"
	}

	return &Client{
		apiKey:  apiKey,
		logger:  log.Named("openai"),
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		maxRetries:          maxRetries,
		chatCompletionsPath: "/v1/chat/completions",
	}
}

// SetChatCompletionsPath overrides the endpoint path for proxies that mount it elsewhere
func (c *Client) SetChatCompletionsPath(path string) {
	if path != "" {
		c.chatCompletionsPath = path
	}
}

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []ai.ChatMessage `json:"messages"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature float64          `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatCompletion implements ai.ChatProvider
func (c *Client) ChatCompletion(ctx context.Context, messages []ai.ChatMessage, config ai.ChatConfig) (string, error) {
	jsonData, err := json.Marshal(chatRequest{
		Model:       config.Model,
		Messages:    messages,
		MaxTokens:   config.MaxTokens,
		Temperature: config.Temperature,
	})
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff between retries
			backoff := time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
			c.logger.Info("Retrying chat completion",
				logger.Int("attempt", attempt),
				logger.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		content, err := c.doChat(ctx, jsonData)
		if err == nil {
			return content, nil
		}
		lastErr = err

		var statusErr *ai.StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		c.logger.Warn("Chat completion failed, may retry",
			logger.Error(err),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", c.maxRetries+1))
	}

	return "", lastErr
}

func (c *Client) doChat(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.chatCompletionsPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &ai.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode chat completion: %w", err)
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", ai.ErrEmptyResponse
	}

	return result.Choices[0].Message.Content, nil
}
