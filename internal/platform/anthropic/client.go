package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/yungbote/peai-backend/internal/platform/logger"
)

const (
	DefaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 8192
)

type Config struct {
	APIKey          string
	Model           string
	Temperature     *float64
	MaxOutputTokens int
	Timeout         time.Duration
}

type Client struct {
	log       *logger.Logger
	sdk       sdk.Client
	model     sdk.Model
	temp      *float64
	maxTokens int64
}

func NewClient(baseLog *logger.Logger, cfg Config) (*Client, error) {
	if baseLog == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing ANTHROPIC_API_KEY")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = defaultMaxTokens
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &Client{
		log:       baseLog.With("service", "AnthropicClient", "model", model),
		sdk:       sdk.NewClient(opts...),
		model:     sdk.Model(model),
		temp:      cfg.Temperature,
		maxTokens: int64(cfg.MaxOutputTokens),
	}, nil
}

func (c *Client) Provider() string { return "anthropic" }
func (c *Client) Model() string    { return string(c.model) }

func (c *Client) Generate(ctx context.Context, prompt, systemInstruction string) (string, error) {
	params := sdk.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	}
	if systemInstruction != "" {
		params.System = []sdk.TextBlockParam{{Text: systemInstruction}}
	}
	if c.temp != nil {
		params.Temperature = sdk.Float(*c.temp)
	}
	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return "", fmt.Errorf("empty response from Anthropic API")
	}
	var b strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	return b.String(), nil
}
