package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/yegors/geofs-atc/internal/ai"
	"github.com/yegors/geofs-atc/pkg/logger"
)

// Client implements ai.ChatProvider on top of the Gemini API
type Client struct {
	client *genai.Client
	logger *logger.Logger
}

// Options tweak client construction. Zero values use the SDK defaults.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, apiKey string, log *logger.Logger, opts Options) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Client{
		client: client,
		logger: log.Named("gemini"),
	}, nil
}

// ChatCompletion implements ai.ChatProvider
func (c *Client) ChatCompletion(ctx context.Context, messages []ai.ChatMessage, config ai.ChatConfig) (string, error) {
	system, contents := toContents(messages)
	if len(contents) == 0 {
		return "", fmt.Errorf("gemini needs at least one user turn")
	}

	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(config.Temperature)),
	}
	if config.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(config.MaxTokens)
	}
	if system != "" {
		gc.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, config.Model, contents, gc)
	if err != nil {
		return "", fmt.Errorf("gemini generate content failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ai.ErrEmptyResponse
	}
	return text, nil
}

// toContents maps the chat log onto Gemini's two-role model. The leading
// system messages become the system instruction; later system messages are
// situational updates and travel as user-side notes. Consecutive turns with
// the same role are merged since the API expects alternating roles.
func toContents(messages []ai.ChatMessage) (string, []*genai.Content) {
	var system []string
	i := 0
	for ; i < len(messages) && messages[i].Role == ai.RoleSystem; i++ {
		system = append(system, messages[i].Content)
	}

	var contents []*genai.Content
	for _, m := range messages[i:] {
		role := genai.Role(genai.RoleUser)
		text := m.Content
		switch m.Role {
		case ai.RoleAssistant:
			role = genai.RoleModel
		case ai.RoleSystem:
			text = "[Situation update] " + m.Content
		}

		if n := len(contents); n > 0 && contents[n-1].Role == string(role) {
			contents[n-1].Parts = append(contents[n-1].Parts, genai.NewPartFromText(text))
			continue
		}
		contents = append(contents, genai.NewContentFromText(text, role))
	}

	return strings.Join(system, "\n\n"), contents
}
