package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/yungbote/peai-backend/internal/platform/logger"
)

const (
	DefaultModel     = "gemini-2.5-flash"
	defaultMaxTokens = 8192
)

type Config struct {
	APIKey          string
	Model           string
	Temperature     *float32
	MaxOutputTokens int
}

// Client calls GenerateContent with a JSON response MIME type.
type Client struct {
	log       *logger.Logger
	sdk       *genai.Client
	model     string
	temp      *float32
	maxTokens int32
}

func NewClient(ctx context.Context, baseLog *logger.Logger, cfg Config) (*Client, error) {
	if baseLog == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = defaultMaxTokens
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Client{
		log:       baseLog.With("service", "GeminiClient", "model", model),
		sdk:       client,
		model:     model,
		temp:      cfg.Temperature,
		maxTokens: int32(cfg.MaxOutputTokens),
	}, nil
}

func (c *Client) Provider() string { return "gemini" }
func (c *Client) Model() string    { return c.model }

func (c *Client) Generate(ctx context.Context, prompt, systemInstruction string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      c.temp,
		MaxOutputTokens:  c.maxTokens,
		ResponseMIMEType: "application/json",
	}
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}
	result, err := c.sdk.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if result == nil {
		return "", fmt.Errorf("empty response from Gemini API")
	}
	return result.Text(), nil
}
