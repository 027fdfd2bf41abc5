package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/yungbote/peai-backend/internal/platform/logger"
)

const (
	DefaultModel     = "gpt-4.1-mini"
	defaultMaxTokens = 8192
)

type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     *float64
	MaxOutputTokens int
	Timeout         time.Duration
}

// Client wraps the Responses API for single-turn text generation.
type Client struct {
	log       *logger.Logger
	sdk       sdk.Client
	model     string
	temp      *float64
	maxTokens int
}

func NewClient(baseLog *logger.Logger, cfg Config) (*Client, error) {
	if baseLog == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = defaultMaxTokens
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// One best-effort call per generation; callers own any retry decision.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &Client{
		log:       baseLog.With("service", "OpenAIClient", "model", model),
		sdk:       sdk.NewClient(opts...),
		model:     model,
		temp:      cfg.Temperature,
		maxTokens: cfg.MaxOutputTokens,
	}, nil
}

func (c *Client) Provider() string { return "openai" }
func (c *Client) Model() string    { return c.model }

func (c *Client) Generate(ctx context.Context, prompt, systemInstruction string) (string, error) {
	params := responses.ResponseNewParams{
		Model:           c.model,
		Input:           responses.ResponseNewParamsInputUnion{OfString: sdk.String(prompt)},
		MaxOutputTokens: sdk.Int(int64(c.maxTokens)),
	}
	if systemInstruction != "" {
		params.Instructions = sdk.String(systemInstruction)
	}
	if c.temp != nil {
		params.Temperature = sdk.Float(*c.temp)
	}
	resp, err := c.sdk.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai responses: %w", err)
	}
	text := resp.OutputText()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no output_text found in response")
	}
	return text, nil
}
